package memstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dShard/lib/executor"
	"strings"
	"sync/atomic"
	"time"
)

var (
	ErrConnInUse          = errors.New("memstore: connection is used concurrently")
	ErrConnClosed         = errors.New("memstore: connection is closed")
	ErrUnknownStatement   = errors.New("memstore: unknown statement")
	ErrInvalidArguments   = errors.New("memstore: invalid number of arguments")
	ErrNoTransaction      = errors.New("memstore: no transaction in progress")
	ErrTransactionStarted = errors.New("memstore: transaction already in progress")
)

// Callback executes a unit on a memstore connection
var Callback = executor.CallbackFunc[*Conn, Result](func(ctx context.Context, unit executor.ExecutionUnit, conn *Conn) (Result, error) {
	return conn.Exec(ctx, unit.Statement(), unit.Params()...)
})

// --------------------------------------------------------------------------
// Result
// --------------------------------------------------------------------------

// Result is the outcome of one statement
type Result struct {
	ConnectionID string
	Statement    string
	Key          string
	Value        string
	Found        bool
	Affected     int
}

func (r Result) String() string {
	switch r.Statement {
	case "GET":
		if !r.Found {
			return fmt.Sprintf("%s: GET %s -> (nil)", r.ConnectionID, r.Key)
		}
		return fmt.Sprintf("%s: GET %s -> %s", r.ConnectionID, r.Key, r.Value)
	case "SET", "DEL":
		return fmt.Sprintf("%s: %s %s (%d affected)", r.ConnectionID, r.Statement, r.Key, r.Affected)
	default:
		return fmt.Sprintf("%s: %s", r.ConnectionID, r.Statement)
	}
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// Conn is a connection to a Store. A connection must only be used by one goroutine at a
// time, concurrent use is detected and fails with ErrConnInUse.
//
// Supported statements (arguments are the remaining words of the statement followed by
// the unit parameters):
//
//	SET key value
//	GET key
//	DEL key
//	BEGIN
//	COMMIT
//	ROLLBACK
//
// Between BEGIN and COMMIT writes are buffered in the connection and only visible to it.
type Conn struct {
	id      string
	store   *Store
	latency time.Duration

	inUse  atomic.Bool
	closed atomic.Bool

	tx       map[string]*string // nil value = delete
	executed atomic.Int64
}

// NewConn creates a connection to store. Every statement waits latency before it runs.
func NewConn(id string, store *Store, latency time.Duration) *Conn {
	return &Conn{
		id:      id,
		store:   store,
		latency: latency,
	}
}

// ID returns the id of the connection
func (c *Conn) ID() string { return c.id }

// Executed returns the number of successfully executed statements
func (c *Conn) Executed() int64 { return c.executed.Load() }

// InTransaction returns true between BEGIN and COMMIT/ROLLBACK
func (c *Conn) InTransaction() bool { return c.tx != nil }

// Exec runs one statement
func (c *Conn) Exec(ctx context.Context, statement string, params ...any) (Result, error) {
	if c.closed.Load() {
		return Result{}, ErrConnClosed
	}
	if !c.inUse.CompareAndSwap(false, true) {
		return Result{}, fmt.Errorf("%w (%s)", ErrConnInUse, c.id)
	}
	defer c.release()

	if err := c.wait(ctx); err != nil {
		return Result{}, err
	}

	words := strings.Fields(statement)
	if len(words) == 0 {
		return Result{}, fmt.Errorf("%w: empty statement", ErrUnknownStatement)
	}
	cmd := strings.ToUpper(words[0])
	args := words[1:]
	for _, p := range params {
		args = append(args, fmt.Sprint(p))
	}

	res, err := c.exec(cmd, args)
	if err != nil {
		return Result{}, err
	}
	res.ConnectionID = c.id
	res.Statement = cmd
	c.executed.Add(1)
	return res, nil
}

func (c *Conn) wait(ctx context.Context) error {
	if c.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Conn) exec(cmd string, args []string) (Result, error) {
	switch cmd {
	case "SET":
		if len(args) != 2 {
			return Result{}, fmt.Errorf("%w: SET expects 2, got %d", ErrInvalidArguments, len(args))
		}
		c.set(args[0], &args[1])
		return Result{Key: args[0], Affected: 1}, nil

	case "GET":
		if len(args) != 1 {
			return Result{}, fmt.Errorf("%w: GET expects 1, got %d", ErrInvalidArguments, len(args))
		}
		value, found := c.get(args[0])
		return Result{Key: args[0], Value: value, Found: found}, nil

	case "DEL":
		if len(args) != 1 {
			return Result{}, fmt.Errorf("%w: DEL expects 1, got %d", ErrInvalidArguments, len(args))
		}
		_, found := c.get(args[0])
		c.set(args[0], nil)
		affected := 0
		if found {
			affected = 1
		}
		return Result{Key: args[0], Affected: affected}, nil

	case "BEGIN":
		if c.tx != nil {
			return Result{}, ErrTransactionStarted
		}
		c.tx = make(map[string]*string)
		return Result{}, nil

	case "COMMIT":
		if c.tx == nil {
			return Result{}, ErrNoTransaction
		}
		for key, value := range c.tx {
			if value == nil {
				c.store.Delete(key)
			} else {
				c.store.Set(key, *value)
			}
		}
		affected := len(c.tx)
		c.tx = nil
		return Result{Affected: affected}, nil

	case "ROLLBACK":
		if c.tx == nil {
			return Result{}, ErrNoTransaction
		}
		affected := len(c.tx)
		c.tx = nil
		return Result{Affected: affected}, nil

	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownStatement, cmd)
	}
}

func (c *Conn) set(key string, value *string) {
	if c.tx != nil {
		c.tx[key] = value
		return
	}
	if value == nil {
		c.store.Delete(key)
	} else {
		c.store.Set(key, *value)
	}
}

func (c *Conn) get(key string) (string, bool) {
	if c.tx != nil {
		if value, ok := c.tx[key]; ok {
			if value == nil {
				return "", false
			}
			return *value, true
		}
	}
	return c.store.Get(key)
}

// Close closes the connection. An open transaction is rolled back.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	// a running Exec discards the transaction itself once it releases the connection
	if c.inUse.CompareAndSwap(false, true) {
		c.discard()
		c.inUse.Store(false)
	}
	return nil
}

// release ends the exclusive use of the connection started by Exec
func (c *Conn) release() {
	c.inUse.Store(false)
	if c.closed.Load() && c.inUse.CompareAndSwap(false, true) {
		c.discard()
		c.inUse.Store(false)
	}
}

// discard drops an open transaction, the caller must hold inUse
func (c *Conn) discard() {
	if c.tx != nil {
		Logger.Warningf("connection %s closed with open transaction, rolling back %d writes", c.id, len(c.tx))
		c.tx = nil
	}
}
