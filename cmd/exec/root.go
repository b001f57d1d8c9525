package exec

import (
	"context"
	"database/sql"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dShard/cmd/util"
	"github.com/ValentinKolb/dShard/lib/common"
	"github.com/ValentinKolb/dShard/lib/executor"
	"github.com/ValentinKolb/dShard/lib/lockmgr"
	"github.com/ValentinKolb/dShard/lib/storage/memstore"
	"github.com/ValentinKolb/dShard/lib/storage/sqlconn"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"
)

var (
	ExecCmd = &cobra.Command{
		Use:   "exec [plan.yaml]",
		Short: "Run an execution plan",
		Long: `Run the groups of a YAML execution plan with the executor engine and print the results in submission order.

Without --dsn the plan runs against in-process memstore connections (statements SET, GET, DEL, BEGIN, COMMIT, ROLLBACK). With --dsn every connection of the plan is mapped to a SQL data source.

If the plan names a lock, it is acquired by the first unit of the execution and released when the command ends. Locks are held in the process local store: the memstore of the execution, or a separate lock store with --dsn.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: cmdUtil.BindFlagsPreRun,
		RunE:    run,
	}
)

func init() {
	key := "latency"
	ExecCmd.Flags().Duration(key, 0, cmdUtil.WrapString("(memstore) Simulated latency of every statement"))

	key = "ignore-unknown"
	ExecCmd.Flags().Bool(key, false, cmdUtil.WrapString("(memstore) Treat unknown statements as ignorable instead of fatal"))

	key = "dump"
	ExecCmd.Flags().Bool(key, false, cmdUtil.WrapString("(memstore) Print the content of the store after the execution"))

	key = "lock-timeout"
	ExecCmd.Flags().Duration(key, 30*time.Second, cmdUtil.WrapString("Timeout of the job lock named in the plan (0 for no timeout)"))

	key = "dsn"
	ExecCmd.Flags().StringSlice(key, nil, cmdUtil.WrapString("(sql) Data sources in the format 'connection=dsn', e.g. ds_0=clickhouse://localhost:9000/default. Can be repeated"))

	key = "driver"
	ExecCmd.Flags().String(key, sqlconn.DriverClickHouse, cmdUtil.WrapString("(sql) database/sql driver of the data sources"))

	key = "ignore-codes"
	ExecCmd.Flags().Int32Slice(key, nil, cmdUtil.WrapString("(sql) ClickHouse exception codes that are ignorable instead of fatal"))
}

// run executes the plan given as argument
func run(cmd *cobra.Command, args []string) error {
	conf, err := cmdUtil.GetConfig(cmd)
	if err != nil {
		return err
	}

	plan, err := common.LoadPlanFile(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	if dsns := viper.GetStringSlice("dsn"); len(dsns) > 0 {
		codes, _ := cmd.Flags().GetInt32Slice("ignore-codes")
		err = runSQL(ctx, out, conf, plan, dsns, codes)
	} else {
		err = runMemstore(ctx, out, conf, plan)
	}
	if err != nil {
		return err
	}

	cmdUtil.WriteMetrics(out)
	return nil
}

// buildContext converts a plan into an execution group context. The context is validated
// before conn is called for any group.
func buildContext[C any](plan *common.Plan, source string, conn func(name string) (C, error)) (*executor.ExecutionGroupContext[C], error) {
	groups := make([]*executor.ExecutionGroup[C], 0, len(plan.Groups))
	for _, g := range plan.Groups {
		units := make([]executor.ExecutionUnit, 0, len(g.Units))
		for _, u := range g.Units {
			params := make([]any, len(u.Params))
			for i, p := range u.Params {
				params[i] = p
			}
			units = append(units, executor.NewExecutionUnit(g.Connection, u.Statement, params...))
		}
		var zero C
		groups = append(groups, executor.NewExecutionGroup(g.Connection, zero, units...))
	}

	groupCtx := executor.NewExecutionGroupContext(plan.ExecutionID, groups...)
	if err := groupCtx.Validate(); err != nil {
		return nil, err
	}
	for _, group := range groupCtx.Groups {
		c, err := conn(group.ConnectionID)
		if err != nil {
			return nil, err
		}
		group.Conn = c
	}
	groupCtx.Metadata = map[string]string{"plan": source}
	return groupCtx, nil
}

// jobLock returns the first unit callback acquiring the lock named in the plan, or nil if the
// plan names none. The returned release function must be called when the command ends.
func jobLock[C, T any](plan *common.Plan, store lockmgr.LockStore, next executor.Callback[C, T]) (executor.Callback[C, T], func()) {
	if plan.Lock == "" {
		return nil, func() {}
	}
	lock := lockmgr.NewJobLock[C, T](lockmgr.NewLockManager(store), plan.Lock, viper.GetDuration("lock-timeout"), next)
	return lock, func() { _ = lock.Release() }
}

// --------------------------------------------------------------------------
// memstore
// --------------------------------------------------------------------------

func runMemstore(ctx context.Context, out io.Writer, conf common.Config, plan *common.Plan) error {
	var classifier executor.ExceptionClassifier
	if viper.GetBool("ignore-unknown") {
		classifier = executor.IgnoreErrors(memstore.ErrUnknownStatement)
	}
	engine, err := executor.NewEngine(conf.Engine, classifier)
	if err != nil {
		return err
	}
	defer engine.Close()

	registry := memstore.NewRegistry(memstore.NewStore(), viper.GetDuration("latency"))
	defer registry.Close()

	groupCtx, err := buildContext(plan, "memstore", func(name string) (*memstore.Conn, error) {
		return registry.Conn(name), nil
	})
	if err != nil {
		return err
	}

	first, release := jobLock[*memstore.Conn, memstore.Result](plan, registry.Store(), memstore.Callback)
	defer release()

	start := time.Now()
	results, err := executor.Execute[*memstore.Conn, memstore.Result](ctx, engine, groupCtx, first, memstore.Callback, plan.InTransaction)
	for _, res := range results {
		_, _ = fmt.Fprintln(out, res)
	}
	if err != nil {
		return fmt.Errorf("execution %s failed: %w", plan.ExecutionID, err)
	}
	_, _ = fmt.Fprintf(out, "\nexecution %s: %d results from %d groups in %v\n",
		plan.ExecutionID, len(results), len(groupCtx.Groups), time.Since(start).Round(time.Microsecond))

	if viper.GetBool("dump") {
		store := registry.Store()
		_, _ = fmt.Fprintln(out, "\n# ---- store ----")
		for _, key := range store.Keys() {
			value, _ := store.Get(key)
			_, _ = fmt.Fprintf(out, "%s = %s\n", key, value)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// sql
// --------------------------------------------------------------------------

// parseDSNs parses 'connection=dsn' pairs
func parseDSNs(pairs []string) (map[string]string, error) {
	dsns := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, dsn, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("invalid dsn format: %s (expected connection=dsn)", pair)
		}
		dsns[strings.TrimSpace(name)] = strings.TrimSpace(dsn)
	}
	return dsns, nil
}

// openDataSource opens a data source with the ClickHouse DSN parser or a plain database/sql driver
func openDataSource(name, driverName, dsn string) (*sqlconn.DataSource, error) {
	if driverName == sqlconn.DriverClickHouse {
		return sqlconn.OpenClickHouse(name, dsn)
	}
	return sqlconn.Open(name, driverName, dsn)
}

func runSQL(ctx context.Context, out io.Writer, conf common.Config, plan *common.Plan, pairs []string, ignoreCodes []int32) error {
	dsns, err := parseDSNs(pairs)
	if err != nil {
		return err
	}

	engine, err := executor.NewEngine(conf.Engine, sqlconn.ClickHouseClassifier(ignoreCodes...))
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, name := range plan.Connections() {
		if _, ok := dsns[name]; !ok {
			return fmt.Errorf("no dsn for connection %s", name)
		}
	}

	driverName := viper.GetString("driver")
	var opened []io.Closer
	defer func() {
		// connections first, then their pools
		for i := len(opened) - 1; i >= 0; i-- {
			_ = opened[i].Close()
		}
	}()

	groupCtx, err := buildContext(plan, "sql", func(name string) (*sql.Conn, error) {
		ds, err := openDataSource(name, driverName, dsns[name])
		if err != nil {
			return nil, err
		}
		opened = append(opened, ds)

		conn, err := ds.Conn(ctx)
		if err != nil {
			return nil, err
		}
		opened = append(opened, conn)
		return conn, nil
	})
	if err != nil {
		return err
	}

	first, release := jobLock[*sql.Conn, sqlconn.Result](plan, memstore.NewStore(), sqlconn.Callback)
	defer release()

	results, err := executor.Execute[*sql.Conn, sqlconn.Result](ctx, engine, groupCtx, first, sqlconn.Callback, plan.InTransaction)
	for i, res := range results {
		if res.Columns == nil {
			_, _ = fmt.Fprintf(out, "#%d: %d rows affected\n", i, res.RowsAffected)
			continue
		}
		_, _ = fmt.Fprintf(out, "#%d: %s\n", i, strings.Join(res.Columns, " | "))
		for _, row := range res.Rows {
			_, _ = fmt.Fprintf(out, "    %v\n", row)
		}
	}
	if err != nil {
		return fmt.Errorf("execution %s failed: %w", plan.ExecutionID, err)
	}
	return nil
}
