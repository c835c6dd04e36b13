// Package worker executes jobs pulled from the queue one at a time,
// streaming subprocess output into the log fabric and recording the
// terminal outcome.
package worker

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/bobmcallan/tasktrace/internal/common"
	"github.com/bobmcallan/tasktrace/internal/logfabric"
	"github.com/bobmcallan/tasktrace/internal/model"
	"github.com/bobmcallan/tasktrace/internal/queue"
)

// maxLineBuffer bounds how much unseparated output a single line may
// accumulate before it is flushed as a (possibly long) line on its own;
// this keeps a pathological output stream from growing memory without
// bound, while never dropping bytes.
const maxLineBuffer = 64 * 1024

// Worker polls the queue and executes at most one subprocess at a time.
// should_exit/force_exit are the two cooperative shutdown flags: the first
// signal stops the worker before its next dequeue; the second is reserved
// for a future hard-kill of an in-flight subprocess (not implemented here,
// per the open question this left unresolved).
type Worker struct {
	queue  queue.Queue
	sink   *logfabric.StreamingLogger
	logger *common.Logger
	freq   time.Duration

	mu         sync.Mutex
	shouldExit bool
	forceExit  bool
}

// New returns a Worker draining q, streaming output into sink, polling
// every freq when the queue is empty.
func New(q queue.Queue, sink *logfabric.StreamingLogger, logger *common.Logger, freq time.Duration) *Worker {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if freq <= 0 {
		freq = time.Second
	}
	return &Worker{queue: q, sink: sink, logger: logger, freq: freq}
}

// HandleExit is idempotent-with-escalation: the first call requests a
// drain-and-stop, the second sets force_exit. Further calls are no-ops.
func (w *Worker) HandleExit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shouldExit {
		w.forceExit = true
	} else {
		w.shouldExit = true
	}
}

func (w *Worker) exitRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shouldExit
}

// Run loops until HandleExit has been called, dequeuing and executing one
// job at a time. Between empty dequeues it sleeps freq; after executing a
// job it loops immediately, re-checking should_exit without the idle sleep.
func (w *Worker) Run() {
	for !w.exitRequested() {
		job, ok, err := w.queue.Dequeue()
		if err != nil {
			w.logger.Error().Err(err).Msg("dequeue failed")
			time.Sleep(w.freq)
			continue
		}
		if w.exitRequested() {
			return
		}
		if !ok {
			time.Sleep(w.freq)
			continue
		}

		status := w.execute(job)
		if err := w.queue.Worked(job.ID, status); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to record outcome")
		}
	}
}

// execute runs one job to completion and returns its terminal status. It
// never panics or propagates a subprocess failure out of the worker loop;
// both a nonzero exit and a spawn failure are contained here.
func (w *Worker) execute(job model.Job) model.Status {
	w.sink.Announce(job.ID, job.Command)

	if w.exitRequested() {
		return model.StatusFailed
	}

	cmd := exec.Command("sh", "-c", job.Command)
	cmd.Dir = job.Workdir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		w.sink.Exception(job.ID, err)
		return model.StatusFailed
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		w.sink.Exception(job.ID, err)
		return model.StatusFailed
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		streamLines(stdout, func(line string) {
			w.sink.Output(job.ID, line)
		}, func() {
			w.logger.Warn().Str("job_id", job.ID).Msg("output line exceeded buffer, continuing")
		})
	}()
	<-readDone

	err = cmd.Wait()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			w.logger.Info().Str("job_id", job.ID).Int("exit_code", exitErr.ExitCode()).Msg("task finished")
			w.sink.Finish(job.ID)
			return model.StatusFailed
		}
		w.sink.Exception(job.ID, err)
		return model.StatusFailed
	}

	w.sink.Finish(job.ID)
	return model.StatusDone
}

// streamLines reads from r one line at a time, treating both "\n" and a
// bare "\r" (optionally paired with a following "\n") as separators. It
// never drops bytes: a line exceeding maxLineBuffer is flushed as-is (with
// onOverrun called once) and scanning continues, recovering cleanly at the
// next separator. Any trailing partial line is flushed on EOF.
func streamLines(r interface{ Read([]byte) (int, error) }, onLine func(string), onOverrun func()) {
	reader := newByteReader(r)
	var buf []byte

	flush := func() {
		if len(buf) > 0 {
			onLine(string(buf))
			buf = buf[:0]
		}
	}

	for {
		b, err := reader.ReadByte()
		if err != nil {
			flush()
			return
		}

		switch b {
		case '\n':
			onLine(string(buf))
			buf = buf[:0]
		case '\r':
			if next, ok := reader.PeekByte(); ok && next == '\n' {
				reader.ReadByte()
			}
			onLine(string(buf))
			buf = buf[:0]
		default:
			buf = append(buf, b)
			if len(buf) >= maxLineBuffer {
				onOverrun()
				flush()
			}
		}
	}
}

// byteReader is a tiny buffered byte-at-a-time reader with one byte of
// pushback, enough to decide whether a bare "\r" is followed by "\n".
type byteReader struct {
	r        interface{ Read([]byte) (int, error) }
	buf      []byte
	pos      int
	peeked   bool
	peekByte byte
	peekErr  error
}

func newByteReader(r interface{ Read([]byte) (int, error) }) *byteReader {
	return &byteReader{r: r, buf: make([]byte, 4096)}
}

func (b *byteReader) fill() error {
	n, err := b.r.Read(b.buf)
	if n > 0 {
		b.buf = b.buf[:n]
		b.pos = 0
		return nil
	}
	if err == nil {
		err = fmt.Errorf("worker: short read with no error")
	}
	return err
}

func (b *byteReader) ReadByte() (byte, error) {
	if b.peeked {
		b.peeked = false
		return b.peekByte, b.peekErr
	}
	if b.pos >= len(b.buf) {
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	c := b.buf[b.pos]
	b.pos++
	return c, nil
}

func (b *byteReader) PeekByte() (byte, bool) {
	if b.peeked {
		return b.peekByte, b.peekErr == nil
	}
	c, err := b.ReadByte()
	b.peeked = true
	b.peekByte = c
	b.peekErr = err
	return c, err == nil
}
