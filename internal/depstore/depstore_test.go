package depstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tasktrace/internal/jobserr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSnapshot_NoSource(t *testing.T) {
	s := New(t.TempDir(), nil)
	require.NoError(t, s.Snapshot("2026-01-01-00-00-00-000001", ""))

	workdir, err := s.Workdir("2026-01-01-00-00-00-000001")
	require.NoError(t, err)
	require.Empty(t, workdir)
}

func TestSnapshot_CopiesTreeContentsOnly(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a", "a.txt"), "a contents")
	writeFile(t, filepath.Join(src, "b", "b.txt"), "b contents")

	root := t.TempDir()
	s := New(root, nil)
	id := "2026-01-01-00-00-00-000002"
	require.NoError(t, s.Snapshot(id, src))

	base := filepath.Base(src)
	wantA := filepath.Join(root, id, base, "a", "a.txt")
	wantB := filepath.Join(root, id, base, "b", "b.txt")

	gotA, err := os.ReadFile(wantA)
	require.NoError(t, err)
	require.Equal(t, "a contents", string(gotA))

	gotB, err := os.ReadFile(wantB)
	require.NoError(t, err)
	require.Equal(t, "b contents", string(gotB))

	workdir, err := s.Workdir(id)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, id, base), workdir)
}

func TestSnapshot_RefusesClobber(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "f.txt"), "x")

	s := New(t.TempDir(), nil)
	id := "2026-01-01-00-00-00-000003"
	require.NoError(t, s.Snapshot(id, src))

	err := s.Snapshot(id, src)
	require.ErrorIs(t, err, jobserr.ErrCollision)
}

func TestSnapshot_DoesNotFollowSymlinks(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "real.txt"), "real")
	require.NoError(t, os.Symlink(filepath.Join(src, "real.txt"), filepath.Join(src, "link.txt")))

	root := t.TempDir()
	s := New(root, nil)
	id := "2026-01-01-00-00-00-000004"
	require.NoError(t, s.Snapshot(id, src))

	base := filepath.Base(src)
	_, err := os.Lstat(filepath.Join(root, id, base, "link.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestWorkdir_EmptyID(t *testing.T) {
	s := New(t.TempDir(), nil)
	_, err := s.Workdir("")
	require.ErrorIs(t, err, jobserr.ErrInvalid)
}

func TestClear_IdempotentOnMissing(t *testing.T) {
	s := New(t.TempDir(), nil)
	require.NoError(t, s.Clear("2026-01-01-00-00-00-000005"))
	require.NoError(t, s.Clear("2026-01-01-00-00-00-000005"))
}

func TestClear_RemovesSnapshot(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "f.txt"), "x")

	root := t.TempDir()
	s := New(root, nil)
	id := "2026-01-01-00-00-00-000006"
	require.NoError(t, s.Snapshot(id, src))
	require.NoError(t, s.Clear(id))

	_, err := os.Stat(filepath.Join(root, id))
	require.True(t, os.IsNotExist(err))
}
