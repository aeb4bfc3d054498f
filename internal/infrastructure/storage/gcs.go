package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/circuitbreaker"
	"github.com/coursehub/coursehub-platform/pkg/logger"
	"github.com/coursehub/coursehub-platform/pkg/retry"
)

// GCSConfig configures the Cloud Storage backend.
type GCSConfig struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	EmulatorHost    string
	PublicBaseURL   string
	Timeout         time.Duration
}

// GCS stores documents as objects in one bucket.
type GCS struct {
	client  *storage.Client
	bucket  string
	prefix  string
	baseURL string
	timeout time.Duration

	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewGCS creates the client. With EmulatorHost set, authentication is disabled.
func NewGCS(ctx context.Context, cfg GCSConfig, log *logger.Logger) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: gcs bucket is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	var opts []option.ClientOption
	switch {
	case cfg.EmulatorHost != "":
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		opts = append(opts, option.WithoutAuthentication())
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(storage.ScopeReadWrite))
	default:
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create gcs client: %w", err)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://storage.googleapis.com/%s", cfg.Bucket)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	gl := log.With(logger.Component("gcs_store"), logger.String("bucket", cfg.Bucket))
	g := &GCS{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		baseURL: baseURL,
		timeout: timeout,
		retrier: retry.StorageRetrier(),
		log:     gl,
	}
	g.breaker = circuitbreaker.StorageBreaker(func(name string, from, to circuitbreaker.State) {
		gl.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	gl.Info("object storage initialized", logger.String("prefix", cfg.Prefix))
	return g, nil
}

func (g *GCS) key(name string) string {
	return g.prefix + name
}

// call runs op under the breaker and retrier. Missing objects are not failures.
func (g *GCS) call(ctx context.Context, op func(ctx context.Context) error) error {
	var missing error
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.retrier.Do(ctx, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			err := op(ctx)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, storage.ErrObjectNotExist):
				missing = err
				return nil
			default:
				return retry.Retryable(err)
			}
		})
	})
	if err != nil {
		return err
	}
	return missing
}

func (g *GCS) Put(ctx context.Context, name string, data []byte, contentType string) error {
	n, err := cleanName(name)
	if err != nil {
		return err
	}
	err = g.call(ctx, func(ctx context.Context) error {
		w := g.client.Bucket(g.bucket).Object(g.key(n)).NewWriter(ctx)
		w.ContentType = contentType
		if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
			_ = w.Close()
			return fmt.Errorf("write: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("close writer: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", n, err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, name string) ([]byte, error) {
	n, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = g.call(ctx, func(ctx context.Context) error {
		r, err := g.client.Bucket(g.bucket).Object(g.key(n)).NewReader(ctx)
		if err != nil {
			return err
		}
		defer r.Close()
		data, err = io.ReadAll(r)
		return err
	})
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, shared.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", n, err)
	}
	return data, nil
}

func (g *GCS) Exists(ctx context.Context, name string) (bool, error) {
	n, err := cleanName(name)
	if err != nil {
		return false, err
	}
	err = g.call(ctx, func(ctx context.Context) error {
		_, err := g.client.Bucket(g.bucket).Object(g.key(n)).Attrs(ctx)
		return err
	})
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", n, err)
	}
	return true, nil
}

func (g *GCS) Delete(ctx context.Context, name string) error {
	n, err := cleanName(name)
	if err != nil {
		return err
	}
	err = g.call(ctx, func(ctx context.Context) error {
		return g.client.Bucket(g.bucket).Object(g.key(n)).Delete(ctx)
	})
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", n, err)
	}
	return nil
}

func (g *GCS) URL(name string) string {
	return joinURL(g.baseURL, g.key(name))
}

// List returns document names under the configured prefix.
func (g *GCS) List(ctx context.Context, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: g.prefix})
	var out []string
	for limit <= 0 || len(out) < limit {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, strings.TrimPrefix(attrs.Name, g.prefix))
	}
	return out, nil
}

// Check lists at most one object to verify bucket access.
func (g *GCS) Check(ctx context.Context) error {
	_, err := g.List(ctx, 1)
	return err
}

func (g *GCS) Close() error {
	return g.client.Close()
}
