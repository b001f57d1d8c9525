// Package memstore implements an in-process storage connection for the executor.
//
// A Store holds the data, a Conn executes simple key value statements against it and a
// Registry hands out one connection per data source. Connections enforce exclusive use
// (a connection running two statements at once fails with ErrConnInUse), which makes
// them useful to check that the executor never shares a connection between groups.
//
// Usage Example:
//
//	registry := memstore.NewRegistry(memstore.NewStore(), 0)
//	conn := registry.Conn("ds_0")
//
//	_, _ = conn.Exec(ctx, "BEGIN")
//	_, _ = conn.Exec(ctx, "SET", "user:1", "alice")
//	_, _ = conn.Exec(ctx, "COMMIT")
//
//	res, _ := conn.Exec(ctx, "GET user:1") // res.Value == "alice"
package memstore
