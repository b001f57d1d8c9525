package pipeline

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dShard/lib/pipeline"
)

// generator produces a synthetic change stream: inserts of rows 1..rows spread over
// tables, every 10th row updates an earlier row, every 25th deletes one. A placeholder
// record is emitted every 1000 positions and the stream ends with a finished record.
type generator struct {
	rows   int
	tables int
}

func (g generator) table(row int) string {
	return fmt.Sprintf("t_%d", row%g.tables)
}

// records returns the records for row i at position pos
func (g generator) records(i int, pos *uint64) []pipeline.Record {
	next := func() pipeline.Position {
		*pos++
		return pipeline.IntPosition(*pos)
	}

	out := []pipeline.Record{pipeline.NewDataRecord(g.table(i), pipeline.OpInsert, next(),
		pipeline.Column{Name: "id", Value: i, UniqueKey: true},
		pipeline.Column{Name: "version", Value: 1},
	)}

	if i%10 == 0 && i > 5 {
		old := i - 5
		out = append(out, pipeline.NewDataRecord(g.table(old), pipeline.OpUpdate, next(),
			pipeline.Column{Name: "id", OldValue: old, Value: old, UniqueKey: true},
			pipeline.Column{Name: "version", OldValue: 1, Value: 2, Updated: true},
		))
	}
	if i%25 == 0 && i > 1 {
		old := i - 1
		out = append(out, pipeline.NewDataRecord(g.table(old), pipeline.OpDelete, next(),
			pipeline.Column{Name: "id", OldValue: old, UniqueKey: true},
		))
	}
	if *pos%1000 == 0 {
		out = append(out, pipeline.NewPlaceholderRecord(pipeline.IntPosition(*pos)))
	}
	return out
}

// run pushes the whole stream into ch
func (g generator) run(ctx context.Context, ch pipeline.IPipelineChannel) error {
	var pos uint64
	for i := 1; i <= g.rows; i++ {
		for _, r := range g.records(i, &pos) {
			if err := ch.Push(ctx, r); err != nil {
				return fmt.Errorf("failed to push record at position %d: %w", pos, err)
			}
		}
	}
	return ch.Push(ctx, pipeline.NewFinishedRecord(nil))
}

// expectedRows returns the number of rows left after the stream was applied
func (g generator) expectedRows() int {
	deleted := 0
	for i := 1; i <= g.rows; i++ {
		if i%25 == 0 && i > 1 {
			deleted++
		}
	}
	return g.rows - deleted
}
