package importer

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dShard/lib/executor"
	"github.com/ValentinKolb/dShard/lib/pipeline"
	"github.com/ValentinKolb/dShard/lib/storage/memstore"
	"github.com/cespare/xxhash/v2"
	"sort"
	"strings"
	"sync/atomic"
)

// Router returns the id of the data source a record belongs to
type Router func(record *pipeline.DataRecord) string

// ModRouter distributes records over n data sources named "<prefix><i>" by the hash of
// their table and unique key
func ModRouter(prefix string, n int) Router {
	n = max(n, 1)
	return func(record *pipeline.DataRecord) string {
		h := xxhash.Sum64String(RowKey(record.Table, record.UniqueKey()))
		return fmt.Sprintf("%s%d", prefix, h%uint64(n))
	}
}

// RowKey is the storage key of a row
func RowKey(table string, key []any) string {
	parts := make([]string, 0, len(key)+1)
	parts = append(parts, table)
	for _, k := range key {
		parts = append(parts, fmt.Sprint(k))
	}
	return strings.Join(parts, ":")
}

// RowValue is the stored form of a row image, columns sorted by name
func RowValue(image map[string]any) string {
	names := make([]string, 0, len(image))
	for name := range image {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, image[name])
	}
	return strings.Join(parts, " ")
}

// --------------------------------------------------------------------------
// Executor Sink
// --------------------------------------------------------------------------

// ExecutorSink writes data records to memstore connections through the executor engine.
// The records of a batch are grouped by data source and applied in two executions, both in
// transaction mode: the first opens a transaction per data source and applies the row
// changes, the second commits all of them. Nothing is committed if the first execution
// fails. A failure while committing leaves the data sources committed so far applied.
type ExecutorSink struct {
	engine   *executor.Engine
	registry *memstore.Registry
	route    Router

	batches atomic.Uint64
}

// NewExecutorSink creates a sink writing through engine to the connections of registry
func NewExecutorSink(engine *executor.Engine, registry *memstore.Registry, route Router) *ExecutorSink {
	return &ExecutorSink{
		engine:   engine,
		registry: registry,
		route:    route,
	}
}

// Write applies records. Records of the same data source are applied in order.
func (s *ExecutorSink) Write(ctx context.Context, records []*pipeline.DataRecord) error {
	apply := s.plan(records)
	if _, err := executor.Execute[*memstore.Conn, memstore.Result](ctx, s.engine, apply, nil, memstore.Callback, true); err != nil {
		s.rollback(context.WithoutCancel(ctx), apply)
		return err
	}

	commit := commitPlan(apply)
	if _, err := executor.Execute[*memstore.Conn, memstore.Result](ctx, s.engine, commit, nil, memstore.Callback, true); err != nil {
		s.rollback(context.WithoutCancel(ctx), commit)
		return fmt.Errorf("commit of %s failed: %w", commit.ExecutionID, err)
	}
	return nil
}

// plan builds one group per data source: BEGIN followed by the row changes
func (s *ExecutorSink) plan(records []*pipeline.DataRecord) *executor.ExecutionGroupContext[*memstore.Conn] {
	var groups []*executor.ExecutionGroup[*memstore.Conn]
	byID := make(map[string]*executor.ExecutionGroup[*memstore.Conn])

	for _, r := range records {
		id := s.route(r)
		group, ok := byID[id]
		if !ok {
			group = executor.NewExecutionGroup(id, s.registry.Conn(id), executor.NewExecutionUnit(id, "BEGIN"))
			byID[id] = group
			groups = append(groups, group)
		}
		group.Units = append(group.Units, units(id, r)...)
	}

	executionID := fmt.Sprintf("import-%d", s.batches.Add(1))
	return executor.NewExecutionGroupContext(executionID, groups...)
}

// commitPlan builds a single COMMIT group for every group of apply
func commitPlan(apply *executor.ExecutionGroupContext[*memstore.Conn]) *executor.ExecutionGroupContext[*memstore.Conn] {
	groups := make([]*executor.ExecutionGroup[*memstore.Conn], len(apply.Groups))
	for i, group := range apply.Groups {
		groups[i] = executor.NewExecutionGroup(group.ConnectionID, group.Conn,
			executor.NewExecutionUnit(group.ConnectionID, "COMMIT"))
	}
	return executor.NewExecutionGroupContext(apply.ExecutionID+"-commit", groups...)
}

// units translates one row change into memstore statements
func units(id string, r *pipeline.DataRecord) []executor.ExecutionUnit {
	key := RowKey(r.Table, r.UniqueKey())
	switch r.Operation {
	case pipeline.OpDelete:
		return []executor.ExecutionUnit{executor.NewExecutionUnit(id, "DEL", key)}
	case pipeline.OpUpdate:
		out := make([]executor.ExecutionUnit, 0, 2)
		if newKey := RowKey(r.Table, newUniqueKey(r)); newKey != key {
			out = append(out, executor.NewExecutionUnit(id, "DEL", key))
			key = newKey
		}
		return append(out, executor.NewExecutionUnit(id, "SET", key, RowValue(r.After())))
	default:
		return []executor.ExecutionUnit{executor.NewExecutionUnit(id, "SET", key, RowValue(r.After()))}
	}
}

// newUniqueKey returns the unique key of the after image
func newUniqueKey(r *pipeline.DataRecord) []any {
	var key []any
	for _, c := range r.Columns {
		if c.UniqueKey {
			key = append(key, c.Value)
		}
	}
	return key
}

// rollback rolls back every group of a failed execution that still has an open transaction
func (s *ExecutorSink) rollback(ctx context.Context, groupCtx *executor.ExecutionGroupContext[*memstore.Conn]) {
	for _, group := range groupCtx.Groups {
		if !group.Conn.InTransaction() {
			continue
		}
		if _, err := group.Conn.Exec(ctx, "ROLLBACK"); err != nil {
			Logger.Warningf("failed to roll back %s: %v", group.ConnectionID, err)
		}
	}
}
