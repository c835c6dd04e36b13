// Package queue implements the durable job queue: submission, FIFO
// dequeue, state transitions, listing and pruning. The file-backed
// implementation is normative; alternative backends must preserve the same
// observable behavior.
package queue

import (
	"fmt"

	"github.com/bobmcallan/tasktrace/internal/model"
)

// Queue is the contract every backend must satisfy.
type Queue interface {
	// Enqueue allocates an id from the current wall clock, snapshots the
	// optional dependency source, and atomically publishes the job as
	// todo. Returns the created job.
	Enqueue(command, source string) (model.Job, error)

	// Dequeue selects the todo job with the smallest id and atomically
	// transitions it to doing. Returns ok=false when todo is empty.
	Dequeue() (job model.Job, ok bool, err error)

	// Worked atomically moves a doing record to its terminal bucket.
	// Silent no-op when the record is not currently in doing.
	Worked(id string, status model.Status) error

	// List enumerates records sorted by id within each status bucket.
	// When status is nil, todo/doing/done/failed are concatenated in that
	// order. When detail is false, Command and Workdir may come back
	// empty (fast path).
	List(detail bool, status *model.Status) ([]model.Job, error)

	// Pop deletes the todo record named id and clears its dependency
	// snapshot. Fails with jobserr.ErrNotFound if id is not in todo.
	Pop(id string) error

	// Prune removes all done and failed records and clears their
	// dependency snapshots.
	Prune() error
}

// Factory builds a Queue from its queue root and the dependency store root
// its backend should snapshot into.
type Factory func(queueRoot, depRoot string) (Queue, error)

var registry = map[string]Factory{}

// Register adds a named backend factory to the registry. Called from each
// backend's init, mirroring a lookup table rather than dynamic class
// loading.
func Register(tag string, factory Factory) {
	registry[tag] = factory
}

// Open builds a Queue for the named backend tag.
func Open(tag, queueRoot, depRoot string) (Queue, error) {
	factory, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("queue: unknown backend %q", tag)
	}
	return factory(queueRoot, depRoot)
}
