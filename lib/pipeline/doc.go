// Package pipeline implements the channel between the reader and the importer of a data
// migration or change data capture job.
//
// Key Components:
//
//   - Record: One event of a change stream. DataRecord carries a row change, FinishedRecord
//     marks the end of the stream and PlaceholderRecord only advances the position.
//
//   - Position: Marks how far the source has been read. It is handed back to the
//     AckCallback so that the checkpoint can be persisted.
//
//   - IPipelineChannel: Bounded single producer, single consumer queue with blocking Push,
//     batched Fetch with timeout and synchronous Ack forwarding.
//
//   - MemoryChannel: The in-process IPipelineChannel implementation.
//
// Back Pressure:
//
//	A channel holds at most Capacity records. A reader that is faster than the importer
//	blocks in Push until the importer fetched a batch. Memory usage is therefore bounded
//	by the capacity and does not grow with the size of the source.
//
// Fetch Semantics:
//
//	Fetch returns as soon as batchSize records are queued. Otherwise it returns whatever is
//	queued once the timeout elapsed, possibly nothing. The MemoryChannel checks the queue
//	every PollInterval (default 100ms), a fetch on an empty channel therefore returns
//	between timeout and timeout+PollInterval.
//
// Usage Example:
//
//	ch, _ := pipeline.NewMemoryChannel(common.ChannelConfig{Capacity: 10000}, tracker)
//	defer ch.Close()
//
//	// reader goroutine
//	_ = ch.Push(ctx, pipeline.NewDataRecord("t_order", pipeline.OpInsert, pipeline.IntPosition(1), cols...))
//
//	// importer goroutine
//	batch, _ := ch.Fetch(ctx, 1000, time.Second)
//	// ... write batch ...
//	ch.Ack(batch)
//
// Limitations:
//
//	Records still queued when the channel is closed are discarded, they are never acked.
//	The reader has to resume from the last acked position.
package pipeline
