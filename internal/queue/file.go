package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/tasktrace/internal/common"
	"github.com/bobmcallan/tasktrace/internal/depstore"
	"github.com/bobmcallan/tasktrace/internal/jobserr"
	"github.com/bobmcallan/tasktrace/internal/model"
)

func init() {
	Register("file", func(queueRoot, depRoot string) (Queue, error) {
		deps := depstore.New(depRoot, nil)
		return NewFileQueue(queueRoot, deps, nil)
	})
}

// maxEnqueueAttempts bounds the re-stamp retry loop so a stalled clock
// cannot spin Enqueue forever.
const maxEnqueueAttempts = 64

// FileQueue is the normative, file-backed Queue. Each job record is a
// regular file named by its id; the four status buckets are directories;
// transitions are renames across sibling directories on the same
// filesystem, atomic on POSIX. Root itself is the todo bucket; doing, done
// and failed are subdirectories of root.
type FileQueue struct {
	root   string
	deps   *depstore.Store
	logger *common.Logger
	mu     sync.Mutex
}

// NewFileQueue opens a file-backed queue rooted at root, creating the four
// bucket directories if missing.
func NewFileQueue(root string, deps *depstore.Store, logger *common.Logger) (*FileQueue, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	q := &FileQueue{root: root, deps: deps, logger: logger}
	for _, status := range model.Statuses {
		if err := os.MkdirAll(q.bucketDir(status), 0o755); err != nil {
			return nil, fmt.Errorf("queue: create bucket %s: %w", status, err)
		}
	}
	return q, nil
}

func (q *FileQueue) bucketDir(status model.Status) string {
	switch status {
	case model.StatusTodo:
		return q.root
	case model.StatusDoing:
		return filepath.Join(q.root, "doing")
	case model.StatusDone:
		return filepath.Join(q.root, "done")
	case model.StatusFailed:
		return filepath.Join(q.root, "failed")
	default:
		return q.root
	}
}

// listBucket returns the ids present in status's bucket, sorted
// lexicographically (equivalently, chronologically). Entries that are
// directories (the nested doing/done/failed buckets, when listing todo) or
// whose name doesn't match the canonical id stamp are ignored.
func (q *FileQueue) listBucket(status model.Status) ([]string, error) {
	dir := q.bucketDir(status)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !model.ValidID(e.Name()) {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// exists reports whether id is present in any of the four buckets.
func (q *FileQueue) exists(id string) (bool, error) {
	for _, status := range model.Statuses {
		p := filepath.Join(q.bucketDir(status), id)
		if _, err := os.Stat(p); err == nil {
			return true, nil
		} else if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}

func (q *FileQueue) Enqueue(command, source string) (model.Job, error) {
	if err := model.ValidateCommand(command); err != nil {
		return model.Job{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id, err := q.allocateID()
	if err != nil {
		return model.Job{}, err
	}

	if q.deps != nil {
		if err := q.deps.Snapshot(id, source); err != nil {
			return model.Job{}, fmt.Errorf("queue: snapshot dependency for %s: %w", id, err)
		}
	}

	if err := atomicWriteFile(filepath.Join(q.bucketDir(model.StatusTodo), id), []byte(command)); err != nil {
		if q.deps != nil {
			_ = q.deps.Clear(id)
		}
		return model.Job{}, fmt.Errorf("queue: publish todo record %s: %w", id, err)
	}

	workdir := ""
	if q.deps != nil {
		workdir, _ = q.deps.Workdir(id)
	}

	q.logger.Info().Str("job_id", id).Str("command", command).Msg("job enqueued")

	return model.Job{ID: id, Command: command, Workdir: workdir, Status: model.StatusTodo}, nil
}

// allocateID stamps the current time with microsecond resolution,
// re-stamping by advancing a microsecond at a time whenever the candidate id
// already exists in any bucket. Bounded by maxEnqueueAttempts so a stalled
// clock cannot spin forever.
func (q *FileQueue) allocateID() (string, error) {
	base := time.Now()
	for attempt := 0; attempt < maxEnqueueAttempts; attempt++ {
		candidate := model.NewID(base.Add(time.Duration(attempt) * time.Microsecond))
		found, err := q.exists(candidate)
		if err != nil {
			return "", fmt.Errorf("queue: check id collision: %w", err)
		}
		if !found {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: exhausted %d re-stamp attempts", jobserr.ErrCollision, maxEnqueueAttempts)
}

func (q *FileQueue) Dequeue() (model.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids, err := q.listBucket(model.StatusTodo)
	if err != nil {
		return model.Job{}, false, fmt.Errorf("queue: list todo: %w", err)
	}
	if len(ids) == 0 {
		return model.Job{}, false, nil
	}

	id := ids[0]
	todoPath := filepath.Join(q.bucketDir(model.StatusTodo), id)
	command, err := os.ReadFile(todoPath)
	if err != nil {
		return model.Job{}, false, fmt.Errorf("queue: read todo record %s: %w", id, err)
	}

	doingPath := filepath.Join(q.bucketDir(model.StatusDoing), id)
	if err := os.Rename(todoPath, doingPath); err != nil {
		return model.Job{}, false, fmt.Errorf("queue: transition %s to doing: %w", id, err)
	}

	workdir := ""
	if q.deps != nil {
		workdir, _ = q.deps.Workdir(id)
	}

	q.logger.Info().Str("job_id", id).Msg("job dequeued")

	return model.Job{ID: id, Command: string(command), Workdir: workdir, Status: model.StatusDoing}, true, nil
}

func (q *FileQueue) Worked(id string, status model.Status) error {
	if status != model.StatusDone && status != model.StatusFailed {
		return fmt.Errorf("%w: worked status must be done or failed, got %q", jobserr.ErrInvalid, status)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	doingPath := filepath.Join(q.bucketDir(model.StatusDoing), id)
	if _, err := os.Stat(doingPath); os.IsNotExist(err) {
		// The worker may be racing shutdown or a repeated call; this is a
		// deliberate silent no-op, not an error.
		return nil
	} else if err != nil {
		return fmt.Errorf("queue: stat doing record %s: %w", id, err)
	}

	targetPath := filepath.Join(q.bucketDir(status), id)
	if err := os.Rename(doingPath, targetPath); err != nil {
		return fmt.Errorf("queue: transition %s to %s: %w", id, status, err)
	}

	q.logger.Info().Str("job_id", id).Str("status", string(status)).Msg("job worked")
	return nil
}

func (q *FileQueue) List(detail bool, status *model.Status) ([]model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	statuses := model.Statuses
	if status != nil {
		statuses = []model.Status{*status}
	}

	var jobs []model.Job
	for _, st := range statuses {
		ids, err := q.listBucket(st)
		if err != nil {
			return nil, fmt.Errorf("queue: list %s: %w", st, err)
		}
		for order, id := range ids {
			job := model.Job{ID: id, Status: st, Order: order}
			if detail {
				content, err := os.ReadFile(filepath.Join(q.bucketDir(st), id))
				if err == nil {
					job.Command = string(content)
				}
				if q.deps != nil {
					job.Workdir, _ = q.deps.Workdir(id)
				}
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (q *FileQueue) Pop(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	todoPath := filepath.Join(q.bucketDir(model.StatusTodo), id)
	if _, err := os.Stat(todoPath); os.IsNotExist(err) {
		return fmt.Errorf("%w: no todo job %s", jobserr.ErrNotFound, id)
	} else if err != nil {
		return fmt.Errorf("queue: stat todo record %s: %w", id, err)
	}

	if err := os.Remove(todoPath); err != nil {
		return fmt.Errorf("queue: remove todo record %s: %w", id, err)
	}
	if q.deps != nil {
		if err := q.deps.Clear(id); err != nil {
			return fmt.Errorf("queue: clear dependency snapshot %s: %w", id, err)
		}
	}

	q.logger.Info().Str("job_id", id).Msg("job popped")
	return nil
}

func (q *FileQueue) Prune() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, st := range []model.Status{model.StatusDone, model.StatusFailed} {
		ids, err := q.listBucket(st)
		if err != nil {
			return fmt.Errorf("queue: list %s: %w", st, err)
		}
		for _, id := range ids {
			if err := os.Remove(filepath.Join(q.bucketDir(st), id)); err != nil {
				return fmt.Errorf("queue: remove %s record %s: %w", st, id, err)
			}
			if q.deps != nil {
				if err := q.deps.Clear(id); err != nil {
					return fmt.Errorf("queue: clear dependency snapshot %s: %w", id, err)
				}
			}
		}
	}

	q.logger.Info().Msg("queue pruned")
	return nil
}

// atomicWriteFile writes content to path via a temp file in the same
// directory followed by rename, so readers never observe a partially
// written record.
func atomicWriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
