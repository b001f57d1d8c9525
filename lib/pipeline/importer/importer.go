package importer

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dShard/lib/common"
	"github.com/ValentinKolb/dShard/lib/pipeline"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
	"io"
	"time"
)

var Logger = logger.GetLogger("importer")

var (
	ErrMissingSink    = errors.New("importer: sink is nil")
	ErrMissingChannel = errors.New("importer: channel is nil")
)

// Sink writes the data records of one batch to the target
type Sink interface {
	Write(ctx context.Context, records []*pipeline.DataRecord) error
}

// SinkFunc is an adapter to use ordinary functions as Sink
type SinkFunc func(ctx context.Context, records []*pipeline.DataRecord) error

// Write calls f(ctx, records)
func (f SinkFunc) Write(ctx context.Context, records []*pipeline.DataRecord) error {
	return f(ctx, records)
}

// closer is implemented by channels that can report that they are closed
type closer interface {
	IsClosed() bool
}

// --------------------------------------------------------------------------
// Importer
// --------------------------------------------------------------------------

// Importer is the consumer side of a pipeline channel. It fetches batches, writes their
// data records to a Sink and acks the batch afterwards.
type Importer struct {
	channel pipeline.IPipelineChannel
	sink    Sink
	config  common.ImporterConfig

	registry     metrics.Registry
	records      metrics.Meter
	batches      metrics.Counter
	emptyFetches metrics.Counter
	writes       metrics.Timer
}

// NewImporter creates an importer reading from channel and writing to sink
func NewImporter(channel pipeline.IPipelineChannel, sink Sink, config common.ImporterConfig) (*Importer, error) {
	if channel == nil {
		return nil, ErrMissingChannel
	}
	if sink == nil {
		return nil, ErrMissingSink
	}
	if config.BatchSize <= 0 {
		config.BatchSize = common.DefaultBatchSize
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = common.DefaultFetchTimeout
	}

	registry := metrics.NewRegistry()
	return &Importer{
		channel:      channel,
		sink:         sink,
		config:       config,
		registry:     registry,
		records:      metrics.GetOrRegisterMeter("importer.records", registry),
		batches:      metrics.GetOrRegisterCounter("importer.batches", registry),
		emptyFetches: metrics.GetOrRegisterCounter("importer.empty_fetches", registry),
		writes:       metrics.GetOrRegisterTimer("importer.writes", registry),
	}, nil
}

// Run imports until a batch containing a finished record was acked (returns nil), ctx is
// done (returns ctx.Err()), the channel is closed (returns pipeline.ErrChannelClosed) or
// the sink fails. A batch the sink failed on is not acked.
func (i *Importer) Run(ctx context.Context) error {
	Logger.Infof("importer started (batch size %d, fetch timeout %v)", i.config.BatchSize, i.config.FetchTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := i.channel.Fetch(ctx, i.config.BatchSize, i.config.FetchTimeout)
		if err != nil {
			return err
		}

		if len(batch) == 0 {
			if c, ok := i.channel.(closer); ok && c.IsClosed() {
				return pipeline.ErrChannelClosed
			}
			i.emptyFetches.Inc(1)
			continue
		}

		if err := i.apply(ctx, batch); err != nil {
			return err
		}

		if pipeline.ContainsFinished(batch) {
			Logger.Infof("importer finished after %d records", i.records.Count())
			return nil
		}
	}
}

// apply writes the data records of batch and acks it
func (i *Importer) apply(ctx context.Context, batch []pipeline.Record) error {
	data := pipeline.DataRecords(batch)
	if len(data) > 0 {
		start := time.Now()
		err := i.sink.Write(ctx, data)
		i.writes.UpdateSince(start)
		if err != nil {
			Logger.Errorf("failed to write batch ending at position %q: %v", pipeline.LastPosition(batch), err)
			return fmt.Errorf("failed to write batch: %w", err)
		}
	}

	i.records.Mark(int64(len(data)))
	i.batches.Inc(1)
	i.channel.Ack(batch)
	return nil
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// Stats is a snapshot of the importer throughput
type Stats struct {
	Records      int64
	Batches      int64
	EmptyFetches int64
	RecordRate   float64 // records per second since start
	WriteMean    time.Duration
	WriteP99     time.Duration
}

// Stats returns the current throughput statistics
func (i *Importer) Stats() Stats {
	writes := i.writes.Snapshot()
	return Stats{
		Records:      i.records.Count(),
		Batches:      i.batches.Count(),
		EmptyFetches: i.emptyFetches.Count(),
		RecordRate:   i.records.Snapshot().RateMean(),
		WriteMean:    time.Duration(writes.Mean()),
		WriteP99:     time.Duration(writes.Percentile(0.99)),
	}
}

// Registry returns the metrics registry of the importer
func (i *Importer) Registry() metrics.Registry {
	return i.registry
}

// WriteStats writes all importer metrics in a human readable form to w
func (i *Importer) WriteStats(w io.Writer) {
	metrics.WriteOnce(i.registry, w)
}

// Stop releases the metrics of the importer
func (i *Importer) Stop() {
	i.records.Stop()
	i.writes.Stop()
}

func (s Stats) String() string {
	return fmt.Sprintf("records=%d batches=%d empty_fetches=%d rate=%.1f/s write_mean=%v write_p99=%v",
		s.Records, s.Batches, s.EmptyFetches, s.RecordRate, s.WriteMean, s.WriteP99)
}
