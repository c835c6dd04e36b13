package logfabric

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tasktrace/internal/jobserr"
)

func newTestFabric(t *testing.T) (*StreamingLogger, *Streamer, *LocalReadStreamer, context.CancelFunc) {
	t.Helper()
	sl := NewStreamingLogger(16)
	qh := NewQueueHandler(16)
	fh := NewFileHandler(t.TempDir())
	streamer := NewStreamer(sl, qh, fh, nil)
	rs := NewLocalReadStreamer(qh, fh, 16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go streamer.Run(ctx)

	return sl, streamer, rs, cancel
}

func getWithTimeout(t *testing.T, rs *LocalReadStreamer, key string) (string, error) {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := rs.Get(key)
		done <- result{line, err}
	}()
	select {
	case r := <-done:
		return r.line, r.err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Get")
		return "", nil
	}
}

// Scenario 6 (live broadcast): a subscriber that joins before any output
// receives every subsequent line in order.
func TestLiveBroadcast(t *testing.T) {
	sl, _, rs, cancel := newTestFabric(t)
	defer cancel()

	require.NoError(t, rs.AddClient("xxx", "sub-1"))

	sl.Output("xxx", "test")
	sl.Output("xxx", "test")

	line, err := getWithTimeout(t, rs, "sub-1")
	require.NoError(t, err)
	require.Equal(t, "test", line)

	line, err = getWithTimeout(t, rs, "sub-1")
	require.NoError(t, err)
	require.Equal(t, "test", line)
}

// Scenario: two subscribers registered before any output receive identical
// sequences (fan-out).
func TestFanOut(t *testing.T) {
	sl, _, rs, cancel := newTestFabric(t)
	defer cancel()

	require.NoError(t, rs.AddClient("job-1", "sub-a"))
	require.NoError(t, rs.AddClient("job-1", "sub-b"))

	sl.Output("job-1", "line-1")
	sl.Output("job-1", "line-2")

	for _, key := range []string{"sub-a", "sub-b"} {
		line, err := getWithTimeout(t, rs, key)
		require.NoError(t, err)
		require.Equal(t, "line-1", line)

		line, err = getWithTimeout(t, rs, key)
		require.NoError(t, err)
		require.Equal(t, "line-2", line)
	}
}

// Late-joiner completeness: a subscriber joining after lines have already
// been produced receives the archived prefix as one block, then the
// loading marker, then the live tail.
func TestLateJoinerCompleteness(t *testing.T) {
	sl, _, rs, cancel := newTestFabric(t)
	defer cancel()

	sl.Output("job-2", "early-1")
	sl.Output("job-2", "early-2")

	// Give the streamer time to archive both lines before the late
	// joiner reads the archive.
	require.Eventually(t, func() bool {
		return archivedHasBothLines(t, rs, "job-2")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, rs.AddClient("job-2", "late-sub"))

	prefix, err := getWithTimeout(t, rs, "late-sub")
	require.NoError(t, err)
	require.Contains(t, prefix, "early-1")
	require.Contains(t, prefix, "early-2")

	marker, err := getWithTimeout(t, rs, "late-sub")
	require.NoError(t, err)
	require.Equal(t, LoadingMarker, marker)

	sl.Output("job-2", "late-1")
	line, err := getWithTimeout(t, rs, "late-sub")
	require.NoError(t, err)
	require.Equal(t, "late-1", line)
}

func archivedHasBothLines(t *testing.T, rs *LocalReadStreamer, id string) bool {
	t.Helper()
	record, err := rs.files.GetRecord(id)
	require.NoError(t, err)
	return strings.Contains(record, "early-1") && strings.Contains(record, "early-2")
}

// Teardown: after every subscriber for a given id disconnects, the
// QueueHandler no longer holds that id and Get on the removed key reports
// ErrMissing.
func TestTeardown(t *testing.T) {
	_, _, rs, cancel := newTestFabric(t)
	defer cancel()

	require.NoError(t, rs.AddClient("job-3", "sub-only"))
	_, ok := rs.queues.Queue("job-3")
	require.True(t, ok)

	rs.Delete("sub-only")

	require.Eventually(t, func() bool {
		_, ok := rs.queues.Queue("job-3")
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, err := rs.Get("sub-only")
	require.ErrorIs(t, err, jobserr.ErrMissing)
}

func TestDelete_DoubleDeleteIsSilent(t *testing.T) {
	_, _, rs, cancel := newTestFabric(t)
	defer cancel()

	require.NoError(t, rs.AddClient("job-4", "sub-x"))
	rs.Delete("sub-x")
	rs.Delete("sub-x") // must not panic
}
