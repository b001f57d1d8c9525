package pipeline

import (
	"context"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dShard/cmd/util"
	"github.com/ValentinKolb/dShard/lib/common"
	"github.com/ValentinKolb/dShard/lib/executor"
	"github.com/ValentinKolb/dShard/lib/pipeline"
	"github.com/ValentinKolb/dShard/lib/pipeline/checkpoint"
	"github.com/ValentinKolb/dShard/lib/pipeline/importer"
	"github.com/ValentinKolb/dShard/lib/storage/memstore"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"os/signal"
	"time"
)

var (
	PipelineCmd = &cobra.Command{
		Use:   "pipeline",
		Short: "Run a synthetic migration through a pipeline channel",
		Long: `Run a synthetic change stream (inserts, updates and deletes over several tables) through a memory pipeline channel into the importer, which writes it with the executor engine to in-process memstore data sources.

When done the acked checkpoint, the importer throughput and the number of stored rows are printed.`,
		Args:    cobra.NoArgs,
		PreRunE: cmdUtil.BindFlagsPreRun,
		RunE:    run,
	}
)

func init() {
	key := "rows"
	PipelineCmd.Flags().Int(key, 10000, cmdUtil.WrapString("Number of rows the synthetic reader inserts"))

	key = "tables"
	PipelineCmd.Flags().Int(key, 2, cmdUtil.WrapString("Number of tables the rows are spread over"))

	key = "data-sources"
	PipelineCmd.Flags().Int(key, 4, cmdUtil.WrapString("Number of target data sources the rows are sharded to"))

	key = "latency"
	PipelineCmd.Flags().Duration(key, 0, cmdUtil.WrapString("Simulated latency of every statement of the target data sources"))

	key = "checkpoint"
	PipelineCmd.Flags().String(key, "", cmdUtil.WrapString("Write the final checkpoint as YAML to this file instead of stdout"))
}

// job is one pipeline run
type job struct {
	conf     common.Config
	gen      generator
	sources  int
	latency  time.Duration
	tracker  *checkpoint.Tracker
	registry *memstore.Registry
	stats    importer.Stats
}

func run(cmd *cobra.Command, _ []string) error {
	conf, err := cmdUtil.GetConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	j := &job{
		conf:    conf,
		gen:     generator{rows: viper.GetInt("rows"), tables: max(viper.GetInt("tables"), 1)},
		sources: max(viper.GetInt("data-sources"), 1),
		latency: viper.GetDuration("latency"),
	}
	start := time.Now()
	if err := j.run(ctx); err != nil {
		return err
	}
	return j.report(cmd.OutOrStdout(), time.Since(start), viper.GetString("checkpoint"))
}

// run moves the synthetic stream from the reader to the importer
func (j *job) run(ctx context.Context) error {
	j.tracker = checkpoint.NewTracker()
	ch, err := pipeline.NewMemoryChannel(j.conf.Channel, j.tracker)
	if err != nil {
		return err
	}
	defer ch.Close()

	engine, err := executor.NewEngine(j.conf.Engine, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	j.registry = memstore.NewRegistry(memstore.NewStore(), j.latency)
	sink := importer.NewExecutorSink(engine, j.registry, importer.ModRouter("ds_", j.sources))

	imp, err := importer.NewImporter(ch, sink, j.conf.Importer)
	if err != nil {
		return err
	}
	defer imp.Stop()

	// reader and importer, the first error cancels the other one
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error { return j.gen.run(ctx, ch) })
	p.Go(func(ctx context.Context) error { return imp.Run(ctx) })
	err = p.Wait()

	j.stats = imp.Stats()
	if err != nil {
		return fmt.Errorf("pipeline failed at checkpoint %s: %w", j.tracker, err)
	}
	return nil
}

// report prints the result of a finished run
func (j *job) report(out io.Writer, elapsed time.Duration, checkpointPath string) error {
	_, _ = fmt.Fprintf(out, "pipeline finished in %v\n", elapsed.Round(time.Millisecond))
	_, _ = fmt.Fprintf(out, "importer:     %s\n", j.stats)
	_, _ = fmt.Fprintf(out, "data sources: %v\n", j.registry.IDs())
	_, _ = fmt.Fprintf(out, "rows stored:  %d (expected %d)\n", j.registry.Store().Len(), j.gen.expectedRows())

	if checkpointPath != "" {
		f, err := os.Create(checkpointPath)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint file %s: %w", checkpointPath, err)
		}
		defer f.Close()
		if err := j.tracker.WriteYAML(f); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(out, "\n# ---- checkpoint ----")
		if err := j.tracker.WriteYAML(out); err != nil {
			return err
		}
	}

	cmdUtil.WriteMetrics(out)
	return nil
}
