package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/document"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/circuitbreaker"
	"github.com/coursehub/coursehub-platform/pkg/logger"
	"github.com/coursehub/coursehub-platform/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig configures the render service client.
type ClientConfig struct {
	// BaseURL of the render service, e.g. "http://docgen:8090".
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds one HTTP request.
	Timeout time.Duration

	// MaxBodyBytes caps rendered documents read into memory.
	MaxBodyBytes int64
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Timeout:      20 * time.Second,
		MaxBodyBytes: 32 << 20,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements document.Gateway over HTTP. Rendering is done by the
// remote service; conversion is delegated to a document.Converter.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	templates  *Registry
	converter  document.Converter
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger
}

// NewClient creates a gateway client.
func NewClient(cfg ClientConfig, templates *Registry, converter document.Converter, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	cl := log.With(logger.Component("docgen_client"))

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		templates:  templates,
		converter:  converter,
		retrier:    retry.DocumentGatewayRetrier(),
		log:        cl,
	}
	c.breaker = circuitbreaker.DocumentGatewayBreaker(func(name string, from, to circuitbreaker.State) {
		cl.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	return c
}

// renderRequest is the JSON body of POST /render.
type renderRequest struct {
	Template string            `json:"template"`
	Format   string            `json:"format"`
	Fields   map[string]string `json:"fields"`
}

// apiError is the JSON error body of the render service.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("docgen: status %d", e.Status)
	}
	return fmt.Sprintf("docgen: status %d: %s", e.Status, e.Message)
}

// Render implements document.Gateway.
func (c *Client) Render(ctx context.Context, name document.TemplateName, fields map[string]string) (*document.Rendered, error) {
	tmpl, err := c.templates.Lookup(name)
	if err != nil {
		return nil, err
	}
	if missing := tmpl.Missing(fields); len(missing) > 0 {
		return nil, shared.NewDomainError("document", "Render", shared.ErrInvalidArgument,
			fmt.Sprintf("template %s: missing fields %s", name, strings.Join(missing, ", ")))
	}

	body, err := json.Marshal(renderRequest{Template: tmpl.Ref, Format: string(tmpl.Format), Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("docgen: marshal render request: %w", err)
	}

	start := time.Now()
	data, err := c.do(ctx, http.MethodPost, "/render", "application/json", body)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			return nil, shared.WrapError("document", "Render", shared.ErrTemplateMissing,
				fmt.Sprintf("template %s not found by render service", tmpl.Ref), err)
		}
		return nil, err
	}

	c.log.Debug("template rendered",
		logger.Template(string(name)),
		logger.Int("bytes", len(data)),
		logger.Latency(time.Since(start)),
	)
	return &document.Rendered{Data: data, Format: tmpl.Format}, nil
}

// ConvertToPortable implements document.Gateway.
func (c *Client) ConvertToPortable(ctx context.Context, doc *document.Rendered) ([]byte, error) {
	if doc == nil || len(doc.Data) == 0 {
		return nil, shared.NewDomainError("document", "Convert", shared.ErrInvalidArgument, "empty document")
	}
	if doc.Format == document.FormatPDF {
		return doc.Data, nil
	}
	pdf, err := c.converter.Convert(ctx, doc.Data, doc.Format, document.FormatPDF)
	if err != nil {
		return nil, shared.WrapError("document", "Convert", shared.ErrConversionFailed,
			fmt.Sprintf("%s to pdf", doc.Format), err)
	}
	return pdf, nil
}

// do sends one request under the breaker and retrier and returns the body.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var (
		out       []byte
		clientErr error
	)
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			data, err := c.doSingleRequest(ctx, method, path, contentType, body)
			switch {
			case err == nil:
				out = data
				return nil
			case isRetryable(err):
				return retry.Retryable(err)
			default:
				// 4xx answers mean the service is healthy
				clientErr = err
				return nil
			}
		})
	})
	if circuitbreaker.IsRejection(err) {
		return nil, shared.WrapError("document", "Gateway", shared.ErrServiceUnavailable, "document service unavailable", err)
	}
	if err != nil {
		return nil, err
	}
	return out, clientErr
}

func (c *Client) doSingleRequest(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("docgen: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/octet-stream")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docgen: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("docgen: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		ae := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, ae)
		return nil, ae
	}
	return data, nil
}

// isRetryable retries transport errors, 429 and 5xx responses.
func isRetryable(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status == http.StatusTooManyRequests || ae.Status >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// Check calls GET /health on the render service.
func (c *Client) Check(ctx context.Context) error {
	_, err := c.doSingleRequest(ctx, http.MethodGet, "/health", "application/json", nil)
	return err
}

// BreakerState exposes the breaker for health reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
