package docgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/document"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
	"github.com/coursehub/coursehub-platform/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// HTTP CONVERTER
// ══════════════════════════════════════════════════════════════════════════════

// HTTPConverter posts the document to a conversion service:
// POST {BaseURL}/convert?from=docx&to=pdf with the raw bytes as body.
type HTTPConverter struct {
	baseURL    string
	httpClient *http.Client
	retrier    *retry.Retrier
}

// NewHTTPConverter creates an HTTPConverter.
func NewHTTPConverter(baseURL string, timeout time.Duration) *HTTPConverter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPConverter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retrier:    retry.DocumentGatewayRetrier(),
	}
}

// Convert implements document.Converter.
func (c *HTTPConverter) Convert(ctx context.Context, data []byte, from, to document.Format) ([]byte, error) {
	q := url.Values{"from": {string(from)}, "to": {string(to)}}
	endpoint := c.baseURL + "/convert?" + q.Encode()

	return retry.DoWithData(ctx, c.retrier, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("converter: create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, retry.Retryable(fmt.Errorf("converter: http request: %w", err))
		}
		defer resp.Body.Close()

		out, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, retry.Retryable(fmt.Errorf("converter: read response: %w", err))
		}
		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return nil, retry.Retryable(fmt.Errorf("converter: status %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("converter: status %d: %s", resp.StatusCode, strings.TrimSpace(string(out)))
		case len(out) == 0:
			return nil, errors.New("converter: empty output")
		}
		return out, nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// EXEC CONVERTER
// ══════════════════════════════════════════════════════════════════════════════

// ExecConverter shells out to a headless office suite:
//
//	soffice --headless --convert-to pdf --outdir <dir> <file>
type ExecConverter struct {
	binary  string
	timeout time.Duration
	log     *logger.Logger
}

// NewExecConverter creates an ExecConverter. binary defaults to "soffice".
func NewExecConverter(binary string, timeout time.Duration, log *logger.Logger) *ExecConverter {
	if binary == "" {
		binary = "soffice"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ExecConverter{binary: binary, timeout: timeout, log: log.With(logger.Component("exec_converter"))}
}

// Convert implements document.Converter. Each call works in its own temp directory.
func (c *ExecConverter) Convert(ctx context.Context, data []byte, from, to document.Format) ([]byte, error) {
	dir, err := os.MkdirTemp("", "coursehub-convert-*")
	if err != nil {
		return nil, fmt.Errorf("converter: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "document."+string(from))
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("converter: write input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, "--headless", "--convert-to", string(to), "--outdir", dir, in)
	cmd.Stderr = &stderr
	start := time.Now()
	if err := cmd.Run(); err != nil {
		c.log.Error("conversion process failed",
			logger.String("from", string(from)),
			logger.String("stderr", strings.TrimSpace(stderr.String())),
			logger.Err(err),
		)
		return nil, shared.WrapError("document", "Convert", shared.ErrConversionFailed,
			fmt.Sprintf("%s exited with error", c.binary), err)
	}

	out, err := os.ReadFile(filepath.Join(dir, "document."+string(to)))
	if err != nil {
		return nil, shared.WrapError("document", "Convert", shared.ErrConversionFailed, "converted file not produced", err)
	}
	c.log.Debug("document converted", logger.String("from", string(from)), logger.Latency(time.Since(start)))
	return out, nil
}
