// Package depstore snapshots a job's source tree at submission time and
// hands back the path the worker should use as its working directory.
package depstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bobmcallan/tasktrace/internal/common"
	"github.com/bobmcallan/tasktrace/internal/jobserr"
)

// Store snapshots a source directory per job id under root, one subtree per
// id, and clears it again on completion. All operations are synchronous;
// concurrency across ids is serialized by the caller (the job queue).
type Store struct {
	root   string
	logger *common.Logger
}

// New returns a Store rooted at root. root is created on first use.
func New(root string, logger *common.Logger) *Store {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Store{root: root, logger: logger}
}

// Snapshot recursively copies source into <root>/<id>/<basename(source)>.
// If source is empty, Snapshot does nothing and succeeds. Fails if the
// per-id destination directory already exists, preventing clobber of an
// earlier snapshot for the same id.
func (s *Store) Snapshot(id, source string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", jobserr.ErrInvalid)
	}
	if source == "" {
		return nil
	}

	idDir := filepath.Join(s.root, id)
	if _, err := os.Stat(idDir); err == nil {
		return fmt.Errorf("%w: snapshot already exists for id %s", jobserr.ErrCollision, id)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("depstore: stat %s: %w", idDir, err)
	}

	dest := filepath.Join(idDir, filepath.Base(filepath.Clean(source)))
	if err := copyTree(source, dest); err != nil {
		_ = os.RemoveAll(idDir)
		return fmt.Errorf("depstore: snapshot %s: %w", id, err)
	}

	s.logger.Debug().Str("job_id", id).Str("source", source).Str("dest", dest).Msg("dependency snapshotted")
	return nil
}

// Workdir returns the path a job with the given id should use as its
// subprocess cwd, or "" if no snapshot was taken for it. Fails when id is
// empty.
func (s *Store) Workdir(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty id", jobserr.ErrInvalid)
	}

	idDir := filepath.Join(s.root, id)
	entries, err := os.ReadDir(idDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("depstore: read %s: %w", idDir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(idDir, e.Name()), nil
		}
	}
	return "", nil
}

// Clear recursively removes <root>/<id>. Idempotent and silent on missing.
func (s *Store) Clear(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", jobserr.ErrInvalid)
	}
	idDir := filepath.Join(s.root, id)
	if err := os.RemoveAll(idDir); err != nil {
		return fmt.Errorf("depstore: clear %s: %w", id, err)
	}
	return nil
}

// copyTree recursively copies src into dst. Symlinks are not followed; only
// regular file contents are copied. Files are written straight into dst
// (there is no temp-then-rename step), so a partial tree exists while the
// copy runs; on any failure the caller removes it rather than leaving a
// half-copied tree in place.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case info.Mode()&os.ModeSymlink != 0:
			// Symlinks are not followed; skip them entirely.
			return nil
		case !info.Mode().IsRegular():
			return nil
		default:
			return copyFile(path, target, info.Mode())
		}
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
