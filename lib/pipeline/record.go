package pipeline

import "fmt"

// --------------------------------------------------------------------------
// Record Kinds
// --------------------------------------------------------------------------

// Kind is the kind of record moving through a pipeline
type Kind uint8

const (
	KindData        Kind = iota // a data change
	KindFinished                // end of stream
	KindPlaceholder             // position only, no data (e.g. heartbeat, ignored event)
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindFinished:
		return "FINISHED"
	case KindPlaceholder:
		return "PLACEHOLDER"
	default:
		return "UNKNOWN"
	}
}

// Operation is the type of change carried by a DataRecord
type Operation uint8

const (
	OpInsert Operation = iota
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpInsert:
		return "INSERT"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// --------------------------------------------------------------------------
// Record Interface
// --------------------------------------------------------------------------

// Record is one event moving through a pipeline channel. Records are created by a reader,
// flow through exactly one channel and are consumed by exactly one importer.
// The ack path references records, it never copies them.
type Record interface {
	// Kind returns the kind of the record
	Kind() Kind
	// Position returns the source position of the record
	Position() Position
}

// --------------------------------------------------------------------------
// Data Record
// --------------------------------------------------------------------------

// Column is one column of a data record with its before and after image
type Column struct {
	Name      string
	OldValue  any
	Value     any
	Updated   bool
	UniqueKey bool
}

// DataRecord is a change of one row
type DataRecord struct {
	Table     string
	Operation Operation
	Columns   []Column
	position  Position
}

// NewDataRecord creates a data record for the given table at position
func NewDataRecord(table string, op Operation, position Position, columns ...Column) *DataRecord {
	if position == nil {
		position = PlaceholderPosition{}
	}
	return &DataRecord{
		Table:     table,
		Operation: op,
		Columns:   columns,
		position:  position,
	}
}

func (r *DataRecord) Kind() Kind         { return KindData }
func (r *DataRecord) Position() Position { return r.position }

// Before returns the before image (old values by column name)
func (r *DataRecord) Before() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for _, c := range r.Columns {
		out[c.Name] = c.OldValue
	}
	return out
}

// After returns the after image (new values by column name)
func (r *DataRecord) After() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for _, c := range r.Columns {
		out[c.Name] = c.Value
	}
	return out
}

// UniqueKey returns the values of the unique key columns. For deletes the old values are used.
func (r *DataRecord) UniqueKey() []any {
	var key []any
	for _, c := range r.Columns {
		if !c.UniqueKey {
			continue
		}
		if r.Operation == OpDelete || (r.Operation == OpUpdate && c.Updated) {
			key = append(key, c.OldValue)
		} else {
			key = append(key, c.Value)
		}
	}
	return key
}

func (r *DataRecord) String() string {
	return fmt.Sprintf("%s %s %v @%s", r.Operation, r.Table, r.UniqueKey(), r.position)
}

// --------------------------------------------------------------------------
// Finished and Placeholder Records
// --------------------------------------------------------------------------

// FinishedRecord marks the end of a stream
type FinishedRecord struct {
	position Position
}

// NewFinishedRecord creates a finished record. A nil position means FinishedPosition.
func NewFinishedRecord(position Position) *FinishedRecord {
	if position == nil {
		position = FinishedPosition{}
	}
	return &FinishedRecord{position: position}
}

func (r *FinishedRecord) Kind() Kind         { return KindFinished }
func (r *FinishedRecord) Position() Position { return r.position }

// PlaceholderRecord only advances the position
type PlaceholderRecord struct {
	position Position
}

// NewPlaceholderRecord creates a placeholder record at position
func NewPlaceholderRecord(position Position) *PlaceholderRecord {
	if position == nil {
		position = PlaceholderPosition{}
	}
	return &PlaceholderRecord{position: position}
}

func (r *PlaceholderRecord) Kind() Kind         { return KindPlaceholder }
func (r *PlaceholderRecord) Position() Position { return r.position }

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// LastPosition returns the position of the last record or nil for an empty batch
func LastPosition(records []Record) Position {
	if len(records) == 0 {
		return nil
	}
	return records[len(records)-1].Position()
}

// DataRecords returns the data records of a batch in order
func DataRecords(records []Record) []*DataRecord {
	out := make([]*DataRecord, 0, len(records))
	for _, r := range records {
		if d, ok := r.(*DataRecord); ok {
			out = append(out, d)
		}
	}
	return out
}

// ContainsFinished reports whether the batch contains a finished record
func ContainsFinished(records []Record) bool {
	for _, r := range records {
		if r.Kind() == KindFinished {
			return true
		}
	}
	return false
}
