package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"entrypass/pkg/platform/sentinel"
)

// FSStore keeps assets on the local filesystem under root.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create asset root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) resolve(p string) (string, error) {
	c, err := clean(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(c)), nil
}

func (s *FSStore) Stat(_ context.Context, p string) (int64, error) {
	full, err := s.resolve(p)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("stat asset: %w", err)
	}
	if info.IsDir() {
		return 0, sentinel.ErrNotFound
	}
	return info.Size(), nil
}

// Copy writes through a temporary file and renames it into place, so a
// crashed copy never leaves a partial file at dst.
func (s *FSStore) Copy(ctx context.Context, src, dst string) (int64, error) {
	from, err := s.resolve(src)
	if err != nil {
		return 0, err
	}
	to, err := s.resolve(dst)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	in, err := os.Open(from)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("open source asset: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(to), 0o750); err != nil {
		return 0, fmt.Errorf("create asset dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(to), ".copy-*")
	if err != nil {
		return 0, fmt.Errorf("create asset: %w", err)
	}
	n, err := io.Copy(tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("copy asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), to); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("place asset: %w", err)
	}
	return n, nil
}

func (s *FSStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("open asset: %w", err)
	}
	return f, nil
}

func (s *FSStore) ListSnapshotDirs(_ context.Context) ([]Dir, error) {
	base := filepath.Join(s.root, snapshotsDir)
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshot dirs: %w", err)
	}
	var out []Dir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d := Dir{SnapshotID: e.Name()}
		err := filepath.WalkDir(filepath.Join(base, e.Name()), func(_ string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			if info.ModTime().After(d.ModTime) {
				d.ModTime = info.ModTime()
			}
			if !entry.IsDir() {
				d.Size += info.Size()
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan snapshot dir %s: %w", e.Name(), err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *FSStore) RemoveDir(_ context.Context, snapshotID string) (int64, error) {
	full, err := s.resolve(SnapshotDir(snapshotID))
	if err != nil {
		return 0, err
	}
	var freed int64
	err = filepath.WalkDir(full, func(_ string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		freed += info.Size()
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("measure snapshot dir: %w", err)
	}
	if err := os.RemoveAll(full); err != nil {
		return 0, fmt.Errorf("remove snapshot dir: %w", err)
	}
	return freed, nil
}
