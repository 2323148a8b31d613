// Package origin provides the HTTP client for the upstream Rick and Morty API.
//
// The client performs a single bounded GET per call and normalises the
// result into an Outcome: Found, NotFound or TransportFailure. It never
// retries; retry policy belongs to its callers.
package origin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultBaseURL is the public Rick and Morty API.
	DefaultBaseURL = "https://rickandmortyapi.com/api"

	// DefaultTimeout bounds every origin call.
	DefaultTimeout = 10 * time.Second

	// maxBodySize guards against unbounded origin responses.
	maxBodySize = 16 << 20
)

// Prometheus metrics for origin calls.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmgw_origin_requests_total",
		Help: "Total origin requests by resource and outcome",
	}, []string{"resource", "outcome"})

	originRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rmgw_origin_request_duration_seconds",
		Help:    "Origin request duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmgw_origin_errors_total",
		Help: "Total origin errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the origin, without trailing slash.
	BaseURL string

	// Timeout bounds each call, including reading the body.
	Timeout time.Duration

	// UserAgent header sent with every request.
	UserAgent string

	// Transport overrides the HTTP transport (for testing).
	Transport http.RoundTripper
}

// DefaultConfig returns a configuration for the public API.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   DefaultTimeout,
		UserAgent: "rickmorty-gateway/0.1.0",
	}
}

// Client calls the origin. It is stateless and safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     zerolog.Logger
}

// New creates a new origin client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		logger:    logger,
	}, nil
}

// Fetch performs GET {BaseURL}{path}?{query} and classifies the result.
func (c *Client) Fetch(ctx context.Context, path string, query url.Values) Outcome {
	resource := resourceLabel(path)
	start := time.Now()

	outcome := c.fetch(ctx, path, query)

	originRequestDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
	originRequestsTotal.WithLabelValues(resource, outcome.Kind.String()).Inc()

	if outcome.Kind == TransportFailure {
		originErrorsTotal.WithLabelValues(string(outcome.Err.Class)).Inc()
		c.logger.Warn().
			Err(outcome.Err).
			Str("path", path).
			Str("error_class", string(outcome.Err.Class)).
			Int("status", outcome.Err.StatusCode).
			Msg("Origin request failed")
	} else {
		c.logger.Debug().
			Str("path", path).
			Str("outcome", outcome.Kind.String()).
			Dur("duration", time.Since(start)).
			Msg("Origin request complete")
	}

	return outcome
}

func (c *Client) fetch(ctx context.Context, path string, query url.Values) Outcome {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return FailureOutcome(&TransportError{Class: ErrorClassNetwork, Path: path, Err: fmt.Errorf("create request: %w", err)})
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FailureOutcome(&TransportError{Class: classifyErr(err), Path: path, Err: err})
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return NotFoundOutcome()

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return FailureOutcome(&TransportError{
			Class:      classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Path:       path,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return FailureOutcome(&TransportError{Class: classifyErr(err), StatusCode: resp.StatusCode, Path: path, Err: fmt.Errorf("read body: %w", err)})
	}
	if !json.Valid(body) {
		return FailureOutcome(&TransportError{Class: ErrorClassDecode, StatusCode: resp.StatusCode, Path: path, Err: fmt.Errorf("response is not valid JSON")})
	}

	return FoundOutcome(json.RawMessage(body))
}

// resourceLabel returns the first path segment ("/character/1" -> "character").
func resourceLabel(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "root"
	}
	return path
}
