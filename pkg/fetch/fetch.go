// Package fetch downloads CI log artifacts over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yaklabco/snowhook/internal/log"
)

// ErrFetch is wrapped by every error Get returns.
var ErrFetch = errors.New("fetching log failed")

var errBadRequest = errors.New("invalid request")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Options configure a Fetcher.
type Options struct {
	// Timeout bounds each attempt, including reading the body.
	Timeout time.Duration

	// Attempts is the total number of tries for transient failures. Values
	// below 1 mean a single try.
	Attempts int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// Username and Token enable HTTP basic auth when Username is set.
	Username string
	Token    string

	// Client overrides the HTTP client. Timeout is applied on top of it.
	Client *http.Client
}

// Fetcher performs HTTP GETs for log artifacts.
type Fetcher struct {
	client *http.Client
	opts   Options
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	client := &http.Client{}
	if opts.Client != nil {
		clone := *opts.Client
		client = &clone
	}
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &Fetcher{client: client, opts: opts}
}

// Get returns the full response body of url. Non-2xx responses, network
// errors and timeouts fail with an error wrapping ErrFetch; no partial body
// is ever returned.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.opts.Attempts; attempt++ {
		body, err := f.get(ctx, url)
		if err == nil {
			slog.DebugContext(ctx, "fetched log",
				slog.String(log.URL, url),
				slog.Int(log.Bytes, len(body)),
				slog.Int(log.Attempt, attempt),
			)
			return body, nil
		}
		lastErr = err

		if !retryable(ctx, err) || attempt == f.opts.Attempts {
			break
		}

		slog.WarnContext(ctx, "fetch failed, retrying",
			slog.String(log.URL, url),
			slog.Int(log.Attempt, attempt),
			slog.Any(log.Error, err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrFetch, ctx.Err())
		case <-time.After(f.opts.RetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrFetch, lastErr)
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if f.opts.Username != "" {
		req.SetBasicAuth(f.opts.Username, f.opts.Token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err //nolint:wrapcheck // *url.Error already names method and URL
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}
	return body, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, errBadRequest) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}
