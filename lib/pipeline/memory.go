package pipeline

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dShard/lib/common"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("pipeline")

var (
	ErrChannelClosed   = errors.New("pipeline: channel is closed")
	ErrNilRecord       = errors.New("pipeline: record is nil")
	ErrInvalidCapacity = errors.New("pipeline: capacity must be positive")
)

var _ IPipelineChannel = (*MemoryChannel)(nil)

// --------------------------------------------------------------------------
// Memory Channel
// --------------------------------------------------------------------------

// MemoryChannel is an in-process IPipelineChannel backed by a bounded FIFO.
//
// The number of queued records never exceeds the capacity, Push blocks instead.
// Fetch polls the queue at a fixed interval instead of being woken up by the producer,
// so a fetch returns at most one poll interval after its timeout.
//
// State: a channel is open after creation and closed after the first Close call.
// Closed is terminal. Push on a closed channel returns ErrChannelClosed, Fetch returns
// an empty batch immediately and Ack is still forwarded to the callback.
type MemoryChannel struct {
	queue        chan Record
	ackCallback  AckCallback
	pollInterval time.Duration

	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewMemoryChannel creates a channel holding at most config.Capacity records.
// A zero poll interval means common.DefaultPollInterval, a nil ackCallback discards acks.
func NewMemoryChannel(config common.ChannelConfig, ackCallback AckCallback) (*MemoryChannel, error) {
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCapacity, config.Capacity)
	}

	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = common.DefaultPollInterval
	}

	if ackCallback == nil {
		ackCallback = AckCallbackFunc(func([]Record) {})
	}

	return &MemoryChannel{
		queue:        make(chan Record, config.Capacity),
		ackCallback:  ackCallback,
		pollInterval: pollInterval,
		done:         make(chan struct{}),
	}, nil
}

// Push adds a record to the channel, blocking while the channel is full.
//
// Thread-safety: Push may run concurrently with Fetch and Ack (one producer, one consumer).
func (c *MemoryChannel) Push(ctx context.Context, record Record) error {
	if record == nil {
		return ErrNilRecord
	}
	if c.closed.Load() {
		return ErrChannelClosed
	}

	// fast path, don't let a done ctx win over free space
	select {
	case c.queue <- record:
		recordsPushed.Inc()
		return nil
	default:
	}

	select {
	case c.queue <- record:
		recordsPushed.Inc()
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch waits until batchSize records are queued or timeout elapsed and returns up to
// batchSize records in FIFO order. The result may be shorter than batchSize or empty.
//
// Thread-safety: Fetch may run concurrently with Push (one producer, one consumer).
func (c *MemoryChannel) Fetch(ctx context.Context, batchSize int, timeout time.Duration) ([]Record, error) {
	if batchSize <= 0 || c.closed.Load() {
		return []Record{}, nil
	}

	deadline := time.Now().Add(timeout)
	for len(c.queue) < batchSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		timer := time.NewTimer(min(c.pollInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-c.done:
			timer.Stop()
			return []Record{}, nil
		case <-timer.C:
		}
	}

	return c.drain(batchSize), nil
}

// drain removes up to n records without blocking
func (c *MemoryChannel) drain(n int) []Record {
	records := make([]Record, 0, min(n, len(c.queue)))
	for len(records) < n {
		select {
		case r := <-c.queue:
			records = append(records, r)
		default:
			recordsFetched.Add(len(records))
			return records
		}
	}
	recordsFetched.Add(len(records))
	return records
}

// Ack forwards the records to the ack callback. The channel does not batch acks.
func (c *MemoryChannel) Ack(records []Record) {
	c.ackCallback.OnAck(records)
	recordsAcked.Add(len(records))
}

// Close closes the channel and discards all queued records.
// Only the first call has an effect.
func (c *MemoryChannel) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		discarded := 0
	discard:
		for {
			select {
			case <-c.queue:
				discarded++
			default:
				break discard
			}
		}
		recordsDiscarded.Add(discarded)

		if discarded > 0 {
			Logger.Infof("channel closed, discarded %d unacknowledged records", discarded)
		} else {
			Logger.Debugf("channel closed")
		}
	})
}

// Len returns the number of queued records
func (c *MemoryChannel) Len() int {
	return len(c.queue)
}

// Capacity returns the maximum number of queued records
func (c *MemoryChannel) Capacity() int {
	return cap(c.queue)
}

// IsClosed returns true if the channel is closed
func (c *MemoryChannel) IsClosed() bool {
	return c.closed.Load()
}
