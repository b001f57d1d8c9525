package exec

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"github.com/ValentinKolb/dShard/lib/common"
	"github.com/ValentinKolb/dShard/lib/executor"
	"github.com/ValentinKolb/dShard/lib/lockmgr"
	"github.com/ValentinKolb/dShard/lib/storage/memstore"
	"github.com/ValentinKolb/dShard/lib/storage/sqlconn"
	"github.com/spf13/viper"
	"strings"
	"testing"
	"time"
)

const testPlan = `
execution_id: load-users
in_transaction: true
lock: "job:load-users"
groups:
  - connection: ds_0
    units:
      - statement: SET
        params: ["user:1", "alice"]
      - statement: GET user:1
  - connection: ds_1
    units:
      - statement: SET
        params: ["user:2", "bob"]
`

func TestParseDSNs(t *testing.T) {
	dsns, err := parseDSNs([]string{"ds_0=clickhouse://a:9000/db", " ds_1 = clickhouse://b:9000/db?x=1"})
	if err != nil {
		t.Fatalf("parseDSNs() error = %v", err)
	}
	if dsns["ds_0"] != "clickhouse://a:9000/db" || dsns["ds_1"] != "clickhouse://b:9000/db?x=1" {
		t.Errorf("parseDSNs() = %v", dsns)
	}

	for _, invalid := range []string{"ds_0", "=dsn", "ds_0="} {
		if _, err := parseDSNs([]string{invalid}); err == nil {
			t.Errorf("parseDSNs(%q) accepted an invalid pair", invalid)
		}
	}
}

func TestBuildContext(t *testing.T) {
	plan, err := common.LoadPlan(strings.NewReader(testPlan))
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}

	registry := memstore.NewRegistry(memstore.NewStore(), 0)
	groupCtx, err := buildContext(plan, "test", func(name string) (*memstore.Conn, error) {
		return registry.Conn(name), nil
	})
	if err != nil {
		t.Fatalf("buildContext() error = %v", err)
	}

	if groupCtx.ExecutionID != "load-users" || len(groupCtx.Groups) != 2 || groupCtx.NumUnits() != 3 {
		t.Errorf("unexpected context %+v", groupCtx)
	}
	unit := groupCtx.Groups[0].Units[0]
	if unit.ConnectionID() != "ds_0" || unit.Param(1) != "alice" {
		t.Errorf("unexpected unit %s", unit)
	}
	if groupCtx.Metadata["plan"] != "test" {
		t.Errorf("Metadata = %v", groupCtx.Metadata)
	}
}

// TestBuildContextSharedConnection tests that no connection is acquired for an invalid plan
func TestBuildContextSharedConnection(t *testing.T) {
	plan := &common.Plan{
		ExecutionID: "shared",
		Groups: []common.PlanGroup{
			{Connection: "ds_0", Units: []common.PlanUnit{{Statement: "GET a"}}},
			{Connection: "ds_0", Units: []common.PlanUnit{{Statement: "GET b"}}},
		},
	}

	acquired := 0
	_, err := buildContext(plan, "test", func(string) (*sql.Conn, error) {
		acquired++
		return nil, nil
	})
	if !errors.Is(err, executor.ErrSharedConnection) {
		t.Errorf("buildContext() error = %v, want %v", err, executor.ErrSharedConnection)
	}
	if acquired != 0 {
		t.Errorf("%d connections acquired for an invalid plan", acquired)
	}
}

// TestJobLockSQL tests the job lock of a plan with SQL connections
func TestJobLockSQL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	first, release := jobLock[*sql.Conn, sqlconn.Result](&common.Plan{}, memstore.NewStore(), sqlconn.Callback)
	release()
	if first != nil {
		t.Error("jobLock() returned a callback for a plan without lock")
	}

	store := memstore.NewStore()
	if ok, _, err := lockmgr.NewLockManager(store).AcquireLock("job:sql", time.Minute); !ok || err != nil {
		t.Fatalf("AcquireLock() = %v, %v", ok, err)
	}

	ran := false
	next := executor.CallbackFunc[*sql.Conn, sqlconn.Result](func(context.Context, executor.ExecutionUnit, *sql.Conn) (sqlconn.Result, error) {
		ran = true
		return sqlconn.Result{}, nil
	})
	first, release = jobLock[*sql.Conn, sqlconn.Result](&common.Plan{Lock: "job:sql"}, store, next)
	defer release()

	_, err := first.Execute(context.Background(), executor.NewExecutionUnit("ds_0", "SELECT 1"), nil)
	if !errors.Is(err, lockmgr.ErrLockHeld) {
		t.Errorf("Execute() error = %v, want %v", err, lockmgr.ErrLockHeld)
	}
	if ran {
		t.Error("unit ran although the lock is held")
	}
}

func TestRunMemstore(t *testing.T) {
	viper.Reset()
	viper.Set("dump", true)
	defer viper.Reset()

	plan, err := common.LoadPlan(strings.NewReader(testPlan))
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}

	var out bytes.Buffer
	if err := runMemstore(context.Background(), &out, common.DefaultConfig().WithPoolSize(2), plan); err != nil {
		t.Fatalf("runMemstore() error = %v", err)
	}

	for _, want := range []string{
		"ds_0: GET user:1 -> alice",
		"execution load-users: 3 results from 2 groups",
		"user:2 = bob",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output misses %q:\n%s", want, out.String())
		}
	}
	if !strings.Contains(out.String(), "job:load-users = ") {
		t.Errorf("job lock was not held during the execution:\n%s", out.String())
	}
}

func TestRunMemstoreFailure(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	plan, _ := common.LoadPlan(strings.NewReader(`
execution_id: broken
groups:
  - connection: ds_0
    units:
      - statement: UPSERT a b
`))

	var out bytes.Buffer
	err := runMemstore(context.Background(), &out, common.DefaultConfig(), plan)
	if err == nil || !strings.Contains(err.Error(), "execution broken failed") {
		t.Errorf("runMemstore() error = %v", err)
	}

	viper.Set("ignore-unknown", true)
	if err := runMemstore(context.Background(), &out, common.DefaultConfig(), plan); err != nil {
		t.Errorf("runMemstore() with ignore-unknown error = %v", err)
	}
}
