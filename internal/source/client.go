package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atlasci/coalesce/internal/model"
	"github.com/atlasci/coalesce/internal/worker"
)

const fetchMaxRetries = 3

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// FetchError signals a transport or decode failure for one source. It never
// aborts a whole run; the correlator treats the kind as "input not arrived".
type FetchError struct {
	RunID string
	Kind  model.SourceKind
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for run %s: %v", e.Kind, e.RunID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches the raw payload for one (RunID, sourceKind) from the
// owning collaborator. Implementations return the undecoded JSON body.
type Client interface {
	Fetch(ctx context.Context, runID string, kind model.SourceKind) ([]byte, error)
}

// HTTPClient fetches payloads over HTTP from the three collaborator services
type HTTPClient struct {
	httpClient *http.Client
	sources    model.SourcesConfig
	limiter    *worker.Limiter
	userAgent  string
}

// NewHTTPClient creates a client for the configured collaborator endpoints
func NewHTTPClient(sources model.SourcesConfig, limiter *worker.Limiter) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		sources:   sources,
		limiter:   limiter,
		userAgent: "Coalesce/0.1 (+https://github.com/atlasci/coalesce)",
	}
}

// Fetch retrieves the raw payload for one source kind, retrying transient
// failures with exponential backoff. All failures are returned as *FetchError.
func (c *HTTPClient) Fetch(ctx context.Context, runID string, kind model.SourceKind) ([]byte, error) {
	cfg := c.sources.ByKind(kind)

	var body []byte
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		body, lastErr = c.fetchOnce(ctx, runID, kind, cfg)
		if lastErr == nil {
			return body, nil
		}
		if !isRetryableFetchError(lastErr) {
			break
		}
		if attempt < fetchMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			fetchSleepFunc(backoff)
		}
	}

	return nil, &FetchError{RunID: runID, Kind: kind, Err: lastErr}
}

func (c *HTTPClient) fetchOnce(ctx context.Context, runID string, kind model.SourceKind, cfg model.SourceConfig) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	reqCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	reqURL := strings.TrimRight(cfg.Endpoint, "/") + "/runs/" + url.PathEscape(runID) + "/" + string(kind)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Code: resp.StatusCode}
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 8_000_000
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// statusError carries a non-2xx HTTP status
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// isRetryableFetchError returns true for transient failures worth retrying
func isRetryableFetchError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
