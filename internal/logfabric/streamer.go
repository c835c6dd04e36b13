package logfabric

import (
	"context"

	"github.com/bobmcallan/tasktrace/internal/common"
)

// Streamer is the long-lived task that drains the worker's StreamingLogger
// and fans each record out to the archive and to whichever live queue (if
// any) is registered for that job's id.
type Streamer struct {
	source  *StreamingLogger
	queues  *QueueHandler
	files   *FileHandler
	logger  *common.Logger
}

// NewStreamer wires a Streamer draining source into queues and files.
func NewStreamer(source *StreamingLogger, queues *QueueHandler, files *FileHandler, logger *common.Logger) *Streamer {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Streamer{source: source, queues: queues, files: files, logger: logger}
}

// Run drains source until ctx is cancelled or source is closed. On close it
// keeps draining whatever is already buffered in source's channel before
// returning, so a line produced just ahead of shutdown still reaches the
// archive and any live subscriber.
func (s *Streamer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case log := <-s.source.Chan():
			s.handle(log)
		case <-s.source.Done():
			s.drain()
			return
		}
	}
}

// drain flushes whatever is already queued in source without blocking.
func (s *Streamer) drain() {
	for {
		select {
		case log := <-s.source.Chan():
			s.handle(log)
		default:
			return
		}
	}
}

func (s *Streamer) handle(log LogModel) {
	if err := s.files.Add(log.JobID); err != nil {
		s.logger.Error().Err(err).Str("job_id", log.JobID).Msg("failed to open archive")
		return
	}
	if err := s.files.Send(log); err != nil {
		s.logger.Error().Err(err).Str("job_id", log.JobID).Msg("failed to append to archive")
	}
	s.queues.Send(log)
}
