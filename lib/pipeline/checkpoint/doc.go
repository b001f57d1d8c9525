// Package checkpoint tracks the progress of a pipeline. The Tracker is plugged into a
// pipeline channel as AckCallback and remembers the last acked position per table and
// for the whole stream, so a restarted reader knows where to resume.
package checkpoint
