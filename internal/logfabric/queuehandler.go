package logfabric

import "sync"

// liveQueue is one job's live line channel plus a done signal used to tear
// it down. done, not ch, is what gets closed: that way a concurrent Send
// can never race a Delete into a send-on-closed-channel panic.
type liveQueue struct {
	ch   chan LogModel
	done chan struct{}
	once sync.Once
}

func newLiveQueue(bufSize int) *liveQueue {
	return &liveQueue{ch: make(chan LogModel, bufSize), done: make(chan struct{})}
}

func (q *liveQueue) close() {
	q.once.Do(func() { close(q.done) })
}

// QueueHandler maps a job id to its bounded per-id queue of live lines,
// mirroring the Python original's Queue-handler. Entries exist only while
// at least one subscriber is interested in that id.
type QueueHandler struct {
	mu      sync.Mutex
	queues  map[string]*liveQueue
	bufSize int
}

// NewQueueHandler returns a QueueHandler whose per-id queues hold bufSize
// pending lines before a producer blocks.
func NewQueueHandler(bufSize int) *QueueHandler {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &QueueHandler{queues: make(map[string]*liveQueue), bufSize: bufSize}
}

// Add ensures a live queue exists for id. Idempotent.
func (h *QueueHandler) Add(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.queues[id]; !ok {
		h.queues[id] = newLiveQueue(h.bufSize)
	}
}

// Queue returns the live channel for id, if one exists, for a distributor
// to drain.
func (h *QueueHandler) Queue(id string) (chan LogModel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	q, ok := h.queues[id]
	if !ok {
		return nil, false
	}
	return q.ch, true
}

// Send forwards log onto its job's live queue. A no-op when no queue is
// registered for that id (nobody is currently subscribed), and a no-op
// rather than a panic if the queue is concurrently torn down by Delete.
func (h *QueueHandler) Send(log LogModel) {
	h.mu.Lock()
	q, ok := h.queues[log.JobID]
	h.mu.Unlock()
	if !ok {
		return
	}
	select {
	case q.ch <- log:
	case <-q.done:
	}
}

// Delete frees the live queue for id. A distributor blocked reading its
// channel is expected to be watching the same teardown via its own
// context, not this done signal; Delete is safe to call concurrently with
// Send regardless.
func (h *QueueHandler) Delete(id string) {
	h.mu.Lock()
	q, ok := h.queues[id]
	if ok {
		delete(h.queues, id)
	}
	h.mu.Unlock()
	if ok {
		q.close()
	}
}
