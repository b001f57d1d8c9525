package sqlconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ValentinKolb/dShard/lib/executor"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
)

var Logger = logger.GetLogger("sqlconn")

// DriverClickHouse is the database/sql driver name registered by clickhouse-go
const DriverClickHouse = "clickhouse"

var ErrEmptyStatement = errors.New("sqlconn: empty statement")

// --------------------------------------------------------------------------
// Data Source
// --------------------------------------------------------------------------

// DataSource is a named database/sql pool. The executor needs one dedicated *sql.Conn per
// execution group, Conn hands them out.
type DataSource struct {
	Name string
	db   *sql.DB
}

// Open opens a data source with a registered database/sql driver
func Open(name, driverName, dsn string) (*DataSource, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source %s: %w", name, err)
	}
	return &DataSource{Name: name, db: db}, nil
}

// OpenClickHouse opens a data source on a ClickHouse DSN (e.g. clickhouse://host:9000/db)
func OpenClickHouse(name, dsn string) (*DataSource, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid clickhouse dsn for %s: %w", name, err)
	}
	Logger.Infof("opening clickhouse data source %s (%s)", name, strings.Join(opts.Addr, ","))
	return &DataSource{Name: name, db: clickhouse.OpenDB(opts)}, nil
}

// Conn returns a dedicated connection. It has to be closed by the caller.
func (d *DataSource) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection of %s: %w", d.Name, err)
	}
	return conn, nil
}

// DB returns the underlying pool
func (d *DataSource) DB() *sql.DB { return d.db }

// Close closes the pool
func (d *DataSource) Close() error {
	return d.db.Close()
}

// --------------------------------------------------------------------------
// Callback
// --------------------------------------------------------------------------

// Result is the outcome of one statement. Queries fill Columns and Rows, all other
// statements RowsAffected.
type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
}

// queryPrefixes are the statements returning rows
var queryPrefixes = []string{"SELECT", "SHOW", "WITH", "DESCRIBE", "DESC", "EXPLAIN"}

// IsQuery returns true if statement returns rows
func IsQuery(statement string) bool {
	words := strings.Fields(statement)
	if len(words) == 0 {
		return false
	}
	first := strings.ToUpper(strings.TrimLeft(words[0], "("))
	for _, prefix := range queryPrefixes {
		if first == prefix {
			return true
		}
	}
	return false
}

// Callback executes a unit on a dedicated database/sql connection
var Callback = executor.CallbackFunc[*sql.Conn, Result](func(ctx context.Context, unit executor.ExecutionUnit, conn *sql.Conn) (Result, error) {
	statement := unit.Statement()
	if strings.TrimSpace(statement) == "" {
		return Result{}, ErrEmptyStatement
	}

	if !IsQuery(statement) {
		res, err := conn.ExecContext(ctx, statement, unit.Params()...)
		if err != nil {
			return Result{}, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			// not every driver reports affected rows
			affected = -1
		}
		return Result{RowsAffected: affected}, nil
	}

	rows, err := conn.QueryContext(ctx, statement, unit.Params()...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()
	return readRows(rows)
})

// readRows materializes all rows
func readRows(rows *sql.Rows) (Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}

	res := Result{Columns: columns, RowsAffected: -1}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return Result{}, err
		}
		res.Rows = append(res.Rows, values)
	}
	return res, rows.Err()
}

// --------------------------------------------------------------------------
// Classification
// --------------------------------------------------------------------------

// ClickHouseClassifier treats ClickHouse server exceptions with one of the given codes as
// ignorable and everything else as fatal.
func ClickHouseClassifier(codes ...int32) executor.ExceptionClassifier {
	return executor.IgnoreWhen(func(err error) bool {
		var exception *clickhouse.Exception
		if !errors.As(err, &exception) {
			return false
		}
		for _, code := range codes {
			if exception.Code == code {
				return true
			}
		}
		return false
	})
}
