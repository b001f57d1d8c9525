// Package executor implements the multi connection parallel execution engine. It fans a
// batch of already planned statements out to many independent connections and collects
// the results back in submission order.
//
// Key Components:
//
//   - ExecutionUnit: One statement with its ordered parameters, targeted at one connection.
//     Units are immutable once built.
//
//   - ExecutionGroup: An ordered sequence of units bound to exactly one connection. The
//     units of a group run strictly sequentially on that connection, so they may share
//     connection local state (open transactions, cursors, ...).
//
//   - ExecutionGroupContext: All groups of one Execute call plus the execution id and job
//     metadata. No two groups of a context may use the same connection.
//
//   - Callback: The statement type specific strategy running one unit against one
//     connection. Execute takes an optional first callback, used only for the very first
//     unit of the batch (e.g. to acquire a lock exactly once), and a mandatory callback
//     for all other units.
//
//   - ExceptionClassifier: Policy deciding whether a unit error is ignorable or fatal. The
//     classifier is injected into the Engine and can be overridden per call with
//     Engine.WithClassifier.
//
//   - Engine: Schedules groups on a bounded worker pool (fixed size, independent of the
//     fan-out) and applies the failure policy selected by the in-transaction flag.
//
// Failure Policy:
//
//	Fatal errors are returned unchanged (err == original), so callers can inspect vendor
//	specific error codes. Running groups are never interrupted, they are allowed to drain.
//	In a transaction no group starts after the first fatal error, since a partially applied
//	multi node transaction has to be rolled back as a whole. Outside of a transaction the
//	remaining groups are still dispatched because each group commits independently.
//
// Usage Example:
//
//	engine, _ := executor.NewEngine(common.EngineConfig{PoolSize: 8}, nil)
//
//	groupCtx := executor.NewExecutionGroupContext("exec-1",
//		executor.NewExecutionGroup("ds_0", conn0, executor.NewExecutionUnit("ds_0", "GET", "user:1")),
//		executor.NewExecutionGroup("ds_1", conn1, executor.NewExecutionUnit("ds_1", "GET", "user:2")),
//	)
//
//	results, err := executor.Execute[*memstore.Conn, memstore.Result](ctx, engine, groupCtx, nil, memstore.Callback, false)
//
// Limitations:
//
//	There is no per call timeout. A single slow unit stalls the whole Execute call.
package executor
