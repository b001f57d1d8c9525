package pipeline

import (
	"context"
	"time"
)

// AckCallback is notified when a batch of records has been processed by the consumer.
// It is typically implemented by the component advancing the checkpoint.
type AckCallback interface {
	OnAck(records []Record)
}

// AckCallbackFunc is an adapter to use ordinary functions as AckCallback
type AckCallbackFunc func(records []Record)

// OnAck calls f(records)
func (f AckCallbackFunc) OnAck(records []Record) { f(records) }

// IPipelineChannel decouples a record producer (reader) from a record consumer (importer).
//
// A channel is single producer, single consumer: one goroutine pushes, one goroutine fetches
// and acks. Using it with more producers or consumers is not supported.
type IPipelineChannel interface {
	// Push adds a record, blocking while the channel is full.
	// An error is returned if the channel is closed or ctx is done before the record could
	// be added. In that case the record was not added and the caller has to resubmit it.
	Push(ctx context.Context, record Record) error

	// Fetch returns up to batchSize records. It waits until batchSize records are available
	// or timeout elapsed and then returns what is there, possibly nothing.
	// A timeout is not an error. An error is only returned if ctx is done.
	Fetch(ctx context.Context, batchSize int, timeout time.Duration) ([]Record, error)

	// Ack forwards the records to the AckCallback, exactly once and unmodified.
	Ack(records []Record)

	// Close closes the channel and discards all queued records. Close must not be called
	// while a Push or Fetch is in flight.
	Close()
}
