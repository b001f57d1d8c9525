package checkpoint

import (
	"fmt"
	"github.com/ValentinKolb/dShard/lib/pipeline"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"gopkg.in/yaml.v3"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("checkpoint")

var _ pipeline.AckCallback = (*Tracker)(nil)

// --------------------------------------------------------------------------
// Tracker
// --------------------------------------------------------------------------

// Tracker is an AckCallback recording how far a change stream has been applied.
//
// For every acked data record the position is stored for its table. The global position
// is the position of the last acked record that carries one (placeholder positions are
// skipped). Once a finished record is acked the stream is complete.
//
// Thread-safety: OnAck is called by the consumer goroutine, all getters may be called
// concurrently from any goroutine.
type Tracker struct {
	tables *xsync.MapOf[string, pipeline.Position]

	mu   sync.RWMutex
	last pipeline.Position

	finished atomic.Bool
	records  atomic.Int64
	batches  atomic.Int64
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		tables: xsync.NewMapOf[string, pipeline.Position](),
	}
}

// OnAck advances the positions to the records of the batch
func (t *Tracker) OnAck(records []pipeline.Record) {
	if len(records) == 0 {
		return
	}
	t.batches.Add(1)

	var last pipeline.Position
	for _, r := range records {
		switch rec := r.(type) {
		case *pipeline.DataRecord:
			t.tables.Store(rec.Table, rec.Position())
			t.records.Add(1)
		case *pipeline.FinishedRecord:
			if !t.finished.Swap(true) {
				Logger.Infof("stream finished at position %q", rec.Position())
			}
		}
		if _, ok := r.Position().(pipeline.PlaceholderPosition); !ok {
			last = r.Position()
		}
	}

	if last != nil {
		t.mu.Lock()
		t.last = last
		t.mu.Unlock()
	}
	Logger.Debugf("acked %d records, position %v", len(records), last)
}

// Position returns the last acked position of a table
func (t *Tracker) Position(table string) (pipeline.Position, bool) {
	return t.tables.Load(table)
}

// LastPosition returns the last acked position or nil if nothing was acked yet
func (t *Tracker) LastPosition() pipeline.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Finished returns true once a finished record was acked
func (t *Tracker) Finished() bool {
	return t.finished.Load()
}

// AckedRecords returns the number of acked data records
func (t *Tracker) AckedRecords() int64 {
	return t.records.Load()
}

// AckedBatches returns the number of non-empty acked batches
func (t *Tracker) AckedBatches() int64 {
	return t.batches.Load()
}

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

// Snapshot is a point in time copy of a tracker, positions rendered as strings
type Snapshot struct {
	Position string            `yaml:"position"`
	Finished bool              `yaml:"finished"`
	Records  int64             `yaml:"records"`
	Tables   map[string]string `yaml:"tables,omitempty"`
}

// Snapshot returns the current state of the tracker
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		Finished: t.Finished(),
		Records:  t.AckedRecords(),
		Tables:   make(map[string]string, t.tables.Size()),
	}
	if last := t.LastPosition(); last != nil {
		s.Position = last.String()
	}
	t.tables.Range(func(table string, pos pipeline.Position) bool {
		s.Tables[table] = pos.String()
		return true
	})
	return s
}

// WriteYAML writes the current snapshot as YAML to w
func (t *Tracker) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return enc.Close()
}

// String returns a human readable overview of the tracker
func (t *Tracker) String() string {
	s := t.Snapshot()

	tables := make([]string, 0, len(s.Tables))
	for table := range s.Tables {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("position=%q finished=%t records=%d", s.Position, s.Finished, s.Records))
	for _, table := range tables {
		sb.WriteString(fmt.Sprintf(" %s=%s", table, s.Tables[table]))
	}
	return sb.String()
}
