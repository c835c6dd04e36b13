// Package logfabric implements the log broadcasting pipeline: a worker-side
// streaming logger feeds a fan-out streamer, which both archives every line
// and forwards it to whichever subscribers are currently attached to that
// job's id.
package logfabric

import (
	"fmt"
	"sync"
)

// LogModel is one produced line, tagged with the job it belongs to.
type LogModel struct {
	JobID string
	Line  string
}

// LoadingMarker is emitted between a late joiner's archived prefix and the
// live tail that follows it.
const LoadingMarker = "-------------- loading -------------"

// StreamingLogger is the worker-side sink: a single bounded queue of
// (job-id, line) records produced by the worker's output reader and drained
// by the Streamer. done, not ch, is what Close closes: a job's output
// reader may still be mid-line when shutdown starts (spec: "cooperative
// shutdown that is safe to invoke mid-job"), and closing ch directly out
// from under a concurrent send would panic.
type StreamingLogger struct {
	ch   chan LogModel
	done chan struct{}
	once sync.Once
}

// NewStreamingLogger returns a StreamingLogger with the given queue depth.
func NewStreamingLogger(bufSize int) *StreamingLogger {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &StreamingLogger{ch: make(chan LogModel, bufSize), done: make(chan struct{})}
}

// Announce emits the job's header line.
func (s *StreamingLogger) Announce(id, command string) {
	s.send(id, fmt.Sprintf("Task: %q", command))
}

// Output forwards one decoded output line.
func (s *StreamingLogger) Output(id, line string) {
	s.send(id, line)
}

// Exception records a spawn/OS failure: two lines, matching the exact
// wording the worker's caller relies on.
func (s *StreamingLogger) Exception(id string, err error) {
	s.send(id, fmt.Sprintf("Exception occured: %s", err))
	s.send(id, "Task failed")
}

// Finish records a clean exit.
func (s *StreamingLogger) Finish(id string) {
	s.send(id, "Task finished")
}

// send enqueues a line, or silently drops it if Close has already been
// called: once shutdown starts there is no longer a Streamer guaranteed to
// drain ch, so blocking here would hang the worker instead of letting it
// finish tearing down.
func (s *StreamingLogger) send(id, line string) {
	select {
	case s.ch <- LogModel{JobID: id, Line: line}:
	case <-s.done:
	}
}

// Chan exposes the underlying channel for the Streamer to drain. Only one
// reader should ever drain it.
func (s *StreamingLogger) Chan() <-chan LogModel {
	return s.ch
}

// Done reports when Close has been called, so the Streamer can stop
// waiting on Chan once the worker is finished producing.
func (s *StreamingLogger) Done() <-chan struct{} {
	return s.done
}

// Close signals that no more lines will be produced. Only the owner (the
// worker supervisor) should call this. Idempotent.
func (s *StreamingLogger) Close() {
	s.once.Do(func() { close(s.done) })
}
