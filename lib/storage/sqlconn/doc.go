// Package sqlconn runs executor units on database/sql connections.
//
// A DataSource wraps a *sql.DB and hands out dedicated *sql.Conn values, one per execution
// group. Callback executes the statement of a unit on such a connection: statements
// returning rows (SELECT, SHOW, ...) are run with QueryContext and fully materialized,
// all others with ExecContext.
//
// The ClickHouse driver (github.com/ClickHouse/clickhouse-go/v2) is linked in, DSNs like
// clickhouse://localhost:9000/default can be opened with OpenClickHouse or with
// Open(name, DriverClickHouse, dsn). ClickHouseClassifier classifies server exceptions by
// their error code.
package sqlconn
