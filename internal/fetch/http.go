package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ppiankov/sito/internal/model"
	"github.com/ppiankov/sito/internal/resource"
	"github.com/ppiankov/sito/internal/util"
)

// ErrDisallowed is returned when robots.txt forbids a fetch
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError reports a non-2xx HTTP response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// fetchSleepFunc is swapped out by tests
var fetchSleepFunc = sleepContext

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HTTPFetcher downloads http and https URIs
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
	robots     *util.RobotsChecker
	logger     *log.Logger
}

// NewHTTPFetcher creates a fetcher from the HTTP configuration. A nil
// logger discards output.
func NewHTTPFetcher(cfg model.HTTPConfig, logger *log.Logger) *HTTPFetcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	f := &HTTPFetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
		maxRetries: max(cfg.MaxRetries, 1),
		logger:     logger,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, cfg.UserAgent)
	}
	return f
}

// Robots returns the robots.txt checker, or nil when robots.txt is not honoured
func (f *HTTPFetcher) Robots() *util.RobotsChecker {
	return f.robots
}

// Fetch implements resource.Fetcher with retries
func (f *HTTPFetcher) Fetch(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	return f.FetchWithRetry(ctx, req)
}

// FetchWithRetry retries transient failures (transport errors, 5xx and 429)
// with linear backoff
func (f *HTTPFetcher) FetchWithRetry(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		result, err := f.fetchOnce(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || attempt == f.maxRetries {
			break
		}
		if ctx.Err() != nil {
			return resource.FetchResult{}, ctx.Err()
		}

		f.logger.Debug("retrying fetch", "uri", req.URI, "attempt", attempt, "error", err)
		if err := fetchSleepFunc(ctx, time.Duration(attempt)*time.Second); err != nil {
			return resource.FetchResult{}, err
		}
	}
	return resource.FetchResult{}, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, req.URI)
		if err != nil {
			return resource.FetchResult{}, err
		}
		if !allowed {
			return resource.FetchResult{}, fmt.Errorf("%w: %s", ErrDisallowed, req.URI)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URI, nil)
	if err != nil {
		return resource.FetchResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "*/*")

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return resource.FetchResult{}, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resource.FetchResult{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	path, err := writeBody(req, resp.Body, resp.ContentLength, f.maxBytes)
	if err != nil {
		return resource.FetchResult{}, err
	}

	contentType, charsets := parseContentType(resp.Header.Get("Content-Type"))
	f.logger.Debug("fetched", "uri", req.URI, "path", path, "type", contentType)

	return resource.FetchResult{
		Path: path,
		Meta: resource.FetchMeta{ContentType: contentType, Charsets: charsets},
	}, nil
}

// isRetryableFetchError reports whether another attempt could succeed
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
