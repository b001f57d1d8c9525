package pipeline

import "strconv"

// Position marks how far a change stream has been read. Positions are produced by the
// reader and handed back to the checkpoint component when the record is acknowledged.
type Position interface {
	String() string
}

// IntPosition is a position represented by a monotonically growing number (e.g. a row
// offset of an inventory dump or a log sequence number)
type IntPosition uint64

func (p IntPosition) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// FinishedPosition marks the end of a stream
type FinishedPosition struct{}

func (FinishedPosition) String() string { return "finished" }

// PlaceholderPosition is used by records that carry no position of their own
type PlaceholderPosition struct{}

func (PlaceholderPosition) String() string { return "" }
