// Package storage implements document.BlobStore backends for generated
// contracts and certificates: local disk, Google Cloud Storage and memory.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/coursehub/coursehub-platform/internal/domain/document"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// Backend names accepted by Open.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	// LocalDir is the root directory of the local backend.
	LocalDir string

	// PublicBaseURL prefixes object names in URL(). Empty means backend default.
	PublicBaseURL string

	// GCSBucket is the bucket holding documents.
	GCSBucket string
	// GCSPrefix is prepended to object names ("documents/").
	GCSPrefix string
	// GCSCredentialsFile is optional; application default credentials are used otherwise.
	GCSCredentialsFile string
	// GCSEmulatorHost points the client at a fake-gcs-server.
	GCSEmulatorHost string
}

// Store is a BlobStore that also owns resources.
type Store interface {
	document.BlobStore
	Close() error
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendLocal, "":
		return NewLocal(cfg.LocalDir, cfg.PublicBaseURL)
	case BackendGCS:
		return NewGCS(ctx, GCSConfig{
			Bucket:          cfg.GCSBucket,
			Prefix:          cfg.GCSPrefix,
			CredentialsFile: cfg.GCSCredentialsFile,
			EmulatorHost:    cfg.GCSEmulatorHost,
			PublicBaseURL:   cfg.PublicBaseURL,
		}, log)
	case BackendMemory:
		return NewMemory(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// cleanName rejects names that could escape the document namespace.
func cleanName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" || strings.Contains(n, "..") || strings.ContainsAny(n, `/\`) || path.Clean(n) != n {
		return "", shared.NewDomainError("document", "Name", shared.ErrInvalidArgument,
			fmt.Sprintf("invalid document name %q", name))
	}
	return n, nil
}

func joinURL(base, name string) string {
	if base == "" {
		return name
	}
	return strings.TrimRight(base, "/") + "/" + name
}
