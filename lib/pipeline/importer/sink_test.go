package importer

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dShard/lib/common"
	"github.com/ValentinKolb/dShard/lib/executor"
	"github.com/ValentinKolb/dShard/lib/pipeline"
	"github.com/ValentinKolb/dShard/lib/storage/memstore"
	"strings"
	"testing"
)

func newSink(t *testing.T, route Router) (*ExecutorSink, *memstore.Registry) {
	t.Helper()
	engine, err := executor.NewEngine(common.EngineConfig{PoolSize: 2}, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	registry := memstore.NewRegistry(memstore.NewStore(), 0)
	return NewExecutorSink(engine, registry, route), registry
}

func row(op pipeline.Operation, pos int, cols ...pipeline.Column) *pipeline.DataRecord {
	return pipeline.NewDataRecord("t_user", op, pipeline.IntPosition(pos), cols...)
}

func TestExecutorSink(t *testing.T) {
	sink, registry := newSink(t, ModRouter("ds_", 3))
	store := registry.Store()

	err := sink.Write(context.Background(), []*pipeline.DataRecord{
		row(pipeline.OpInsert, 1, pipeline.Column{Name: "id", Value: 1, UniqueKey: true}, pipeline.Column{Name: "name", Value: "alice"}),
		row(pipeline.OpInsert, 2, pipeline.Column{Name: "id", Value: 2, UniqueKey: true}, pipeline.Column{Name: "name", Value: "bob"}),
		row(pipeline.OpInsert, 3, pipeline.Column{Name: "id", Value: 3, UniqueKey: true}, pipeline.Column{Name: "name", Value: "carol"}),
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if v, _ := store.Get("t_user:2"); v != "id=2 name=bob" {
		t.Errorf("t_user:2 = %q", v)
	}

	err = sink.Write(context.Background(), []*pipeline.DataRecord{
		row(pipeline.OpUpdate, 4,
			pipeline.Column{Name: "id", OldValue: 1, Value: 10, Updated: true, UniqueKey: true},
			pipeline.Column{Name: "name", OldValue: "alice", Value: "alice"}),
		row(pipeline.OpDelete, 5, pipeline.Column{Name: "id", OldValue: 2, UniqueKey: true}),
		row(pipeline.OpUpdate, 6,
			pipeline.Column{Name: "id", OldValue: 3, Value: 3, UniqueKey: true},
			pipeline.Column{Name: "name", OldValue: "carol", Value: "caroline", Updated: true}),
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := map[string]string{
		"t_user:10": "id=10 name=alice",
		"t_user:3":  "id=3 name=caroline",
	}
	got := store.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("store = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	for _, id := range registry.IDs() {
		if !strings.HasPrefix(id, "ds_") {
			t.Errorf("unexpected data source %s", id)
		}
	}
}

func TestExecutorSinkRollback(t *testing.T) {
	// the record at position 2 goes to a closed connection
	sink, registry := newSink(t, func(r *pipeline.DataRecord) string {
		if r.Position() == pipeline.IntPosition(2) {
			return "ds_broken"
		}
		return "ds_0"
	})
	conn := registry.Conn("ds_0")
	_ = registry.Conn("ds_broken").Close()

	err := sink.Write(context.Background(), []*pipeline.DataRecord{
		row(pipeline.OpInsert, 1, pipeline.Column{Name: "id", Value: 1, UniqueKey: true}),
		row(pipeline.OpInsert, 2, pipeline.Column{Name: "id", Value: 2, UniqueKey: true}),
	})
	if !errors.Is(err, memstore.ErrConnClosed) {
		t.Fatalf("Write() error = %v, want %v", err, memstore.ErrConnClosed)
	}
	if conn.InTransaction() {
		t.Error("transaction of ds_0 left open after a failed write")
	}
	if got := registry.Store().Snapshot(); len(got) != 0 {
		t.Errorf("store after failed write = %v, want empty", got)
	}
}

// TestExecutorSinkCommitAfterApply tests that no data source commits before all row changes are applied
func TestExecutorSinkCommitAfterApply(t *testing.T) {
	sink, registry := newSink(t, ModRouter("ds_", 4))

	records := make([]*pipeline.DataRecord, 0, 20)
	for i := 1; i <= 20; i++ {
		records = append(records, row(pipeline.OpInsert, i, pipeline.Column{Name: "id", Value: i, UniqueKey: true}))
	}
	apply := sink.plan(records)
	for _, group := range apply.Groups {
		for _, unit := range group.Units {
			if unit.Statement() == "COMMIT" {
				t.Fatalf("group %s commits while applying", group.ConnectionID)
			}
		}
	}
	commit := commitPlan(apply)
	if len(commit.Groups) != len(apply.Groups) {
		t.Fatalf("commit groups = %d, want %d", len(commit.Groups), len(apply.Groups))
	}
	for _, group := range commit.Groups {
		if len(group.Units) != 1 || group.Units[0].Statement() != "COMMIT" {
			t.Errorf("commit group %s = %v", group.ConnectionID, group.Units)
		}
	}

	if err := sink.Write(context.Background(), records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n := registry.Store().Len(); n != len(records) {
		t.Errorf("store holds %d rows, want %d", n, len(records))
	}
	for _, id := range registry.IDs() {
		if registry.Conn(id).InTransaction() {
			t.Errorf("transaction of %s left open", id)
		}
	}
}

func TestRowHelpers(t *testing.T) {
	if got := RowKey("t", []any{1, "a"}); got != "t:1:a" {
		t.Errorf("RowKey() = %s", got)
	}
	if got := RowValue(map[string]any{"b": 2, "a": nil}); got != "a=<nil> b=2" {
		t.Errorf("RowValue() = %s", got)
	}

	route := ModRouter("ds_", 4)
	r := row(pipeline.OpInsert, 1, pipeline.Column{Name: "id", Value: 7, UniqueKey: true})
	if route(r) != route(r) {
		t.Error("ModRouter() is not deterministic")
	}
	if !strings.HasPrefix(route(r), "ds_") {
		t.Errorf("ModRouter() = %s", route(r))
	}
	if ModRouter("ds_", 0)(r) != "ds_0" {
		t.Error("ModRouter() with n=0 should use a single data source")
	}
}
