package logfabric

import (
	"context"
	"sync"

	"github.com/bobmcallan/tasktrace/internal/common"
	"github.com/bobmcallan/tasktrace/internal/jobserr"
)

// logQueue is the per-job fan-out record: the set of subscriber keys
// currently interested in a job, plus the cancel func for the background
// task distributing that job's live queue into each member readQueue.
type logQueue struct {
	id          string
	subscribers map[string]struct{}
	live        bool
	cancel      context.CancelFunc
}

// ReadStreamer is the subscription-facing half of the log fabric: it
// implements add_client/get/delete against a QueueHandler (live fan-out)
// and a FileHandler (archive), joining late subscribers with the archived
// prefix and a loading marker ahead of the live tail.
type ReadStreamer interface {
	AddClient(id, key string) error
	Get(key string) (string, error)
	Delete(key string)
}

// LocalReadStreamer is the normative, in-process ReadStreamer.
type LocalReadStreamer struct {
	mu         sync.Mutex
	readQueues map[string]*readQueue // subscription key -> readQueue
	logQueues  map[string]*logQueue  // job id -> logQueue

	queues  *QueueHandler
	files   *FileHandler
	bufSize int
	logger  *common.Logger
}

// NewLocalReadStreamer wires a LocalReadStreamer over queues and files.
// bufSize bounds each subscriber's readQueue.
func NewLocalReadStreamer(queues *QueueHandler, files *FileHandler, bufSize int, logger *common.Logger) *LocalReadStreamer {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &LocalReadStreamer{
		readQueues: make(map[string]*readQueue),
		logQueues:  make(map[string]*logQueue),
		queues:     queues,
		files:      files,
		bufSize:    bufSize,
		logger:     logger,
	}
}

// AddClient registers key as a subscriber of job id. Reusing an existing,
// still-live readQueue for the same (id, key) pair is safe and idempotent;
// otherwise a new readQueue is created and, if an archive already has
// content for id, seeded with that content followed by the loading marker
// before any live line.
func (s *LocalReadStreamer) AddClient(id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rq, exists := s.readQueues[key]
	if !exists || rq.target != id || !rq.isLive() {
		rq = newReadQueue(key, id, s.bufSize)
		s.readQueues[key] = rq

		archived, err := s.files.GetRecord(id)
		if err != nil {
			return err
		}
		if archived != "" {
			rq.push(archived)
			rq.push(LoadingMarker)
		}
	}

	lq, ok := s.logQueues[id]
	if !ok || !lq.live {
		s.queues.Add(id)
		ch, _ := s.queues.Queue(id)

		ctx, cancel := context.WithCancel(context.Background())
		lq = &logQueue{id: id, subscribers: make(map[string]struct{}), live: true, cancel: cancel}
		s.logQueues[id] = lq
		go s.distribute(ctx, lq, ch)
	}
	lq.subscribers[key] = struct{}{}

	return nil
}

// Get blocks until the next line is available for key.
func (s *LocalReadStreamer) Get(key string) (string, error) {
	s.mu.Lock()
	rq, ok := s.readQueues[key]
	s.mu.Unlock()
	if !ok {
		return "", jobserr.ErrMissing
	}

	line, ok := rq.get()
	if !ok {
		return "", jobserr.ErrBroken
	}
	return line, nil
}

// Delete tears down key's subscription. Double-delete is silent. If key was
// the last subscriber of its job, the job's logQueue is torn down too: its
// live queue is freed from the QueueHandler and its distributor cancelled.
func (s *LocalReadStreamer) Delete(key string) {
	s.mu.Lock()
	rq, ok := s.readQueues[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.readQueues, key)
	target := rq.target

	var teardownID string
	if lq, ok := s.logQueues[target]; ok {
		delete(lq.subscribers, key)
		if len(lq.subscribers) == 0 {
			teardownID = target
		}
	}
	s.mu.Unlock()

	rq.markDead()

	if teardownID != "" {
		s.teardown(teardownID)
	}
}

// distribute drains a job's live queue and fans each line out to every
// currently registered subscriber readQueue. It exits quietly when ctx is
// cancelled (teardown, always paired with a QueueHandler.Delete — see
// teardown below), and tears down its own logQueue when the last
// subscriber disconnects mid-stream. The channel itself is never closed
// out from under it; QueueHandler.Delete only closes a separate done
// signal, so this loop's sole exit condition is ctx.
func (s *LocalReadStreamer) distribute(ctx context.Context, lq *logQueue, ch chan LogModel) {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			lq.live = false
			s.mu.Unlock()
			return
		case log := <-ch:
			s.mu.Lock()
			keys := make([]string, 0, len(lq.subscribers))
			for k := range lq.subscribers {
				keys = append(keys, k)
			}
			s.mu.Unlock()

			for _, key := range keys {
				s.mu.Lock()
				rq, ok := s.readQueues[key]
				s.mu.Unlock()

				if !ok || !rq.isLive() {
					s.mu.Lock()
					delete(lq.subscribers, key)
					remaining := len(lq.subscribers)
					s.mu.Unlock()
					if remaining == 0 {
						s.teardown(lq.id)
						return
					}
					continue
				}
				rq.push(log.Line)
			}
		}
	}
}

// teardown removes a job's logQueue, frees its QueueHandler entry and
// cancels its distributor.
func (s *LocalReadStreamer) teardown(id string) {
	s.mu.Lock()
	lq, ok := s.logQueues[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.logQueues, id)
	lq.live = false
	s.mu.Unlock()

	lq.cancel()
	s.queues.Delete(id)
}
