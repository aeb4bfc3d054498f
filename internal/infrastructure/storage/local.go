package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// Local stores documents as files in one directory.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates dir if needed. Without baseURL documents have no public
// address and are served only through the API.
func NewLocal(dir, baseURL string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("storage: local directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &Local{dir: dir, baseURL: baseURL}, nil
}

// Put writes through a temp file so readers never see a partial document.
func (l *Local) Put(ctx context.Context, name string, data []byte, _ string) error {
	n, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(l.dir, "."+n+".*")
	if err != nil {
		return fmt.Errorf("storage: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: write %s: %w", n, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", n, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, n)); err != nil {
		return fmt.Errorf("storage: rename %s: %w", n, err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, name string) ([]byte, error) {
	n, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.dir, n))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, shared.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", n, err)
	}
	return data, nil
}

func (l *Local) Exists(_ context.Context, name string) (bool, error) {
	n, err := cleanName(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(l.dir, n))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("storage: stat %s: %w", n, err)
	}
}

func (l *Local) Delete(_ context.Context, name string) error {
	n, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, n)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", n, err)
	}
	return nil
}

func (l *Local) URL(name string) string {
	if l.baseURL == "" {
		return ""
	}
	return joinURL(l.baseURL, name)
}

// Close is a no-op.
func (l *Local) Close() error { return nil }
