// Package assets stores archival files (snapshot photo copies) and reads
// the source photos they are copied from. Paths are slash-separated and
// relative to the store root.
package assets

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	dErrors "entrypass/pkg/domain-errors"
)

const snapshotsDir = "snapshots"

// ErrInvalidPath is returned for paths that are absolute or leave the root.
var ErrInvalidPath = errors.New("asset path escapes store root")

// Dir is one snapshot directory found in archival storage.
type Dir struct {
	SnapshotID string
	ModTime    time.Time
	Size       int64
}

// Store is the archival storage area. Stat and Open return
// sentinel.ErrNotFound for missing objects.
type Store interface {
	Stat(ctx context.Context, p string) (int64, error)
	Copy(ctx context.Context, src, dst string) (int64, error)
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	ListSnapshotDirs(ctx context.Context) ([]Dir, error)
	// RemoveDir deletes a snapshot directory and returns the bytes freed.
	RemoveDir(ctx context.Context, snapshotID string) (int64, error)
}

// SnapshotDir is where a snapshot's files live.
func SnapshotDir(snapshotID string) string {
	return path.Join(snapshotsDir, snapshotID)
}

// PhotoPath is the snapshot-scoped destination for a copied photo.
func PhotoPath(snapshotID, fileName string) string {
	return path.Join(snapshotsDir, snapshotID, "photos", fileName)
}

// ValidatePhotoSource accepts a traveler photo path only when it stays
// inside the root and outside snapshot storage.
func ValidatePhotoSource(p string) error {
	c, err := clean(p)
	if err != nil {
		return err
	}
	if c == snapshotsDir || strings.HasPrefix(c, snapshotsDir+"/") {
		return dErrors.Wrap(ErrInvalidPath, dErrors.CodeInvalidInput, "photo path points into snapshot storage")
	}
	return nil
}

// clean normalizes p and rejects anything outside the root.
func clean(p string) (string, error) {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", dErrors.Wrap(ErrInvalidPath, dErrors.CodeInvalidInput, "invalid asset path")
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", dErrors.Wrap(ErrInvalidPath, dErrors.CodeInvalidInput, "invalid asset path")
	}
	return c, nil
}
