package executor

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dShard/lib/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sourcegraph/conc/pool"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("executor")

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// Configuration errors, reported before any unit is scheduled
var (
	ErrMissingCallback        = errors.New("executor: callback is required")
	ErrNilGroup               = errors.New("executor: group is nil")
	ErrSharedConnection       = errors.New("executor: connection bound to more than one group")
	ErrUnitConnectionMismatch = errors.New("executor: unit targets a connection of another group")
	ErrInvalidPoolSize        = errors.New("executor: pool size must be positive")
	ErrEngineClosed           = errors.New("executor: engine is closed")
)

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// Engine schedules execution groups across a bounded worker pool.
// An Engine is safe for concurrent use, every Execute call is independent.
type Engine struct {
	config     common.EngineConfig
	classifier ExceptionClassifier
	closed     *atomic.Bool
}

// NewEngine creates a new engine. A nil classifier means DefaultClassifier.
func NewEngine(config common.EngineConfig, classifier ExceptionClassifier) (*Engine, error) {
	if config.PoolSize <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPoolSize, config.PoolSize)
	}
	if classifier == nil {
		classifier = DefaultClassifier
	}
	return &Engine{
		config:     config,
		classifier: classifier,
		closed:     &atomic.Bool{},
	}, nil
}

// WithClassifier returns an engine with the same configuration and lifecycle that
// classifies unit errors with c. The receiver is not modified.
func (e *Engine) WithClassifier(c ExceptionClassifier) *Engine {
	if c == nil {
		c = DefaultClassifier
	}
	return &Engine{
		config:     e.config,
		classifier: c,
		closed:     e.closed,
	}
}

// PoolSize returns the maximum number of concurrently running groups per Execute call
func (e *Engine) PoolSize() int {
	return e.config.PoolSize
}

// Close marks the engine as closed, further Execute calls fail with ErrEngineClosed.
// Calls that are already running are not affected.
func (e *Engine) Close() {
	e.closed.Store(true)
}

// Execute runs all groups of groupCtx and returns the results in group submission order
// (and unit order within a group), independent of the order in which groups complete.
//
// The very first unit of the batch runs with first (callback if first is nil) in the calling
// goroutine before anything else is dispatched. Every other unit runs with callback.
// Each group runs on its own worker, at most PoolSize groups run at the same time.
//
// Unit errors are classified: ignorable errors are logged and the unit contributes no result.
// The first fatal error is returned unchanged once all started groups have finished.
// A fatal error always ends its own group. With inTransaction no group starts after the
// first fatal error and no results are returned; without it the remaining groups are still
// dispatched and the results of all groups are returned together with the error.
//
// There is no timeout: a single slow unit stalls the whole call. Cancelling ctx stops
// dispatching, running callbacks observe ctx themselves.
func Execute[C, T any](
	ctx context.Context,
	e *Engine,
	groupCtx *ExecutionGroupContext[C],
	first Callback[C, T],
	callback Callback[C, T],
	inTransaction bool,
) ([]T, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if callback == nil {
		return nil, ErrMissingCallback
	}
	if groupCtx == nil {
		return []T{}, nil
	}
	if err := groupCtx.Validate(); err != nil {
		return nil, err
	}
	if groupCtx.NumUnits() == 0 {
		return []T{}, nil
	}
	if first == nil {
		first = callback
	}

	start := time.Now()
	defer executeDuration.UpdateDuration(start)

	run := &execution[C, T]{
		executionID:   groupCtx.ExecutionID,
		classifier:    e.classifier,
		callback:      callback,
		inTransaction: inTransaction,
		results:       make([][]T, len(groupCtx.Groups)),
	}
	return run.execute(ctx, groupCtx.Groups, first, e.config.PoolSize)
}

// --------------------------------------------------------------------------
// Execution (state of one Execute call)
// --------------------------------------------------------------------------

type execution[C, T any] struct {
	executionID   string
	classifier    ExceptionClassifier
	callback      Callback[C, T]
	inTransaction bool

	// results[i] is only written by the goroutine running group i
	results [][]T

	mu      sync.Mutex
	fatal   error
	stopped atomic.Bool
	skipped atomic.Int64
}

func (x *execution[C, T]) execute(ctx context.Context, groups []*ExecutionGroup[C], first Callback[C, T], poolSize int) ([]T, error) {
	// locate the first unit of the batch (leading groups may be empty)
	firstGroup := 0
	for len(groups[firstGroup].Units) == 0 {
		firstGroup++
	}

	// run the first unit synchronously, nothing else may start before it
	group := groups[firstGroup]
	if !x.runUnit(ctx, firstGroup, 0, group, first) {
		remaining := len(groups) - firstGroup - 1
		x.skipped.Add(int64(remaining))
		groupsSkipped.Add(remaining)
		return nil, x.fatal
	}

	p := pool.New().WithMaxGoroutines(poolSize)
	for i := firstGroup; i < len(groups); i++ {
		if x.shouldStop(ctx) {
			remaining := len(groups) - i
			x.skipped.Add(int64(remaining))
			groupsSkipped.Add(remaining)
			Logger.Debugf("execution %s: %d groups not dispatched", x.executionID, remaining)
			break
		}

		idx := i
		from := 0
		if idx == firstGroup {
			from = 1
		}
		p.Go(func() {
			// the pool may start the task later, check again
			if idx != firstGroup && x.shouldStop(ctx) {
				x.skipped.Add(1)
				groupsSkipped.Inc()
				return
			}
			x.runGroup(ctx, idx, groups[idx], from)
		})
	}
	p.Wait()

	x.mu.Lock()
	fatal := x.fatal
	x.mu.Unlock()

	if fatal != nil {
		if x.inTransaction {
			return nil, fatal
		}
		return x.collect(), fatal
	}
	if err := ctx.Err(); err != nil && x.skipped.Load() > 0 {
		return nil, err
	}
	return x.collect(), nil
}

func (x *execution[C, T]) shouldStop(ctx context.Context) bool {
	return x.stopped.Load() || ctx.Err() != nil
}

// runGroup runs the units of a group sequentially, starting at unit from.
// A fatal error ends the group.
func (x *execution[C, T]) runGroup(ctx context.Context, groupIdx int, group *ExecutionGroup[C], from int) {
	for unitIdx := from; unitIdx < len(group.Units); unitIdx++ {
		if !x.runUnit(ctx, groupIdx, unitIdx, group, x.callback) {
			return
		}
	}
}

// runUnit executes a single unit and records its result.
// It returns false if the unit failed fatally.
func (x *execution[C, T]) runUnit(ctx context.Context, groupIdx, unitIdx int, group *ExecutionGroup[C], cb Callback[C, T]) bool {
	unit := group.Units[unitIdx]

	result, err := cb.Execute(ctx, unit, group.Conn)
	if err == nil {
		unitsOK.Inc()
		x.results[groupIdx] = append(x.results[groupIdx], result)
		return true
	}

	if x.classifier.Classify(err) == Ignorable {
		unitsIgnored.Inc()
		Logger.Warningf("execution %s: ignored error of unit %d in group %d (connection %s): %v",
			x.executionID, unitIdx, groupIdx, group.ConnectionID, err)
		return true
	}

	unitsFatal.Inc()
	x.fail(err, groupIdx, unitIdx, group.ConnectionID)
	return false
}

// fail records err if it is the first fatal error of the execution
func (x *execution[C, T]) fail(err error, groupIdx, unitIdx int, connectionID string) {
	if x.inTransaction {
		x.stopped.Store(true)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.fatal != nil {
		return
	}
	x.fatal = err
	Logger.Errorf("execution %s: unit %d in group %d (connection %s) failed: %v",
		x.executionID, unitIdx, groupIdx, connectionID, err)
}

// collect flattens the per group results in submission order
func (x *execution[C, T]) collect() []T {
	n := 0
	for _, r := range x.results {
		n += len(r)
	}
	out := make([]T, 0, n)
	for _, r := range x.results {
		out = append(out, r...)
	}
	return out
}
