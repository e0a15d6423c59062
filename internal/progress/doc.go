// Package progress carries capture lifecycle events from the pipeline to pluggable
// sinks. A Hub batches events on a background goroutine so emitters never block.
package progress
