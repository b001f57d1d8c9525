// Package importer implements the consumer side of a pipeline: it fetches record batches
// from a pipeline channel, writes them to a Sink and acks them, which advances the
// checkpoint of the channel's AckCallback.
//
// A batch is acked only after the sink wrote it. If the sink fails the importer stops and
// the batch stays unacked, so the reader resumes from the last acked position.
//
// ExecutorSink is the Sink writing row changes through the executor engine to memstore
// connections, one transaction per data source and batch. The transactions are committed
// in a second execution once every data source applied its changes.
//
// Throughput is measured with github.com/rcrowley/go-metrics in a registry local to the
// importer (Stats, WriteStats).
package importer
