package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/sito/internal/model"
	"github.com/ppiankov/sito/internal/resource"
)

func testHTTPConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "test-agent",
		MaxBodyBytes: 1 << 20,
		MaxRetries:   3,
		MaxRedirects: 3,
	}
}

func noSleep(t *testing.T) {
	t.Helper()
	origSleep := fetchSleepFunc
	fetchSleepFunc = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { fetchSleepFunc = origSleep })
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "sub", "page.html")
	fetcher := NewHTTPFetcher(testHTTPConfig(), nil)
	result, err := fetcher.FetchWithRetry(context.Background(), resource.FetchRequest{URI: server.URL, Destination: dest})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Path != dest {
		t.Errorf("Path = %q, want %q", result.Path, dest)
	}
	if got := readFile(t, dest); got != "<html><body>OK</body></html>" {
		t.Errorf("Unexpected body: %s", got)
	}
	if result.Meta.ContentType != "text/html" {
		t.Errorf("ContentType = %q", result.Meta.ContentType)
	}
	if len(result.Meta.Charsets) != 1 || result.Meta.Charsets[0] != "iso-8859-1" {
		t.Errorf("Charsets = %v", result.Meta.Charsets)
	}
}

func TestFetch_TempFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "data")
	}))
	defer server.Close()

	result, err := NewHTTPFetcher(testHTTPConfig(), nil).Fetch(context.Background(), resource.FetchRequest{URI: server.URL + "/archive.tar.gz"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer func() { _ = os.Remove(result.Path) }()

	if filepath.Ext(result.Path) != ".gz" {
		t.Errorf("temp file %q lost the remote extension", result.Path)
	}
	if got := readFile(t, result.Path); got != "data" {
		t.Errorf("body = %q", got)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "ok.txt")
	_, err := NewHTTPFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), resource.FetchRequest{URI: server.URL, Destination: dest})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if got := readFile(t, dest); got != "OK" {
		t.Errorf("body = %q", got)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	_, err := NewHTTPFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), resource.FetchRequest{URI: server.URL, Destination: filepath.Join(dir, "x")})
	if err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	if got := err.Error(); got != "unexpected status: 404 404 Not Found" {
		t.Errorf("Unexpected error: %s", got)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Errorf("expected *StatusError with 404, got %T", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files left behind, found %d", len(entries))
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), resource.FetchRequest{URI: server.URL})
	if err == nil {
		t.Fatal("Expected error after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_BackoffHonorsContext(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewHTTPFetcher(testHTTPConfig(), nil).FetchWithRetry(ctx, resource.FetchRequest{URI: server.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("backoff ignored cancellation, took %v", elapsed)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	result, err := NewHTTPFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), resource.FetchRequest{URI: server.URL})
	if err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	defer func() { _ = os.Remove(result.Path) }()
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetch_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "0123456789")
	}))
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.MaxBodyBytes = 4
	_, err := NewHTTPFetcher(cfg, nil).Fetch(context.Background(), resource.FetchRequest{URI: server.URL, Destination: filepath.Join(t.TempDir(), "big")})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestFetch_Redirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "final")
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewHTTPFetcher(testHTTPConfig(), nil)

	dest := filepath.Join(t.TempDir(), "final")
	if _, err := fetcher.Fetch(context.Background(), resource.FetchRequest{URI: server.URL + "/hop", Destination: dest}); err != nil {
		t.Fatalf("Fetch(/hop) error = %v", err)
	}
	if got := readFile(t, dest); got != "final" {
		t.Errorf("body = %q", got)
	}

	noSleep(t)
	if _, err := fetcher.Fetch(context.Background(), resource.FetchRequest{URI: server.URL + "/loop"}); err == nil {
		t.Error("expected redirect loop to fail")
	}
}

func TestFetch_Progress(t *testing.T) {
	body := make([]byte, blockSize*2+10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		_, _ = w.Write(body)
	}))
	defer server.Close()

	var calls int
	var last, total int64
	progress := func(bytesSoFar, block, size int64) {
		calls++
		last, total = bytesSoFar, size
		if block != blockSize {
			t.Errorf("block size = %d", block)
		}
	}

	dest := filepath.Join(t.TempDir(), "blob")
	_, err := NewHTTPFetcher(testHTTPConfig(), nil).Fetch(context.Background(), resource.FetchRequest{URI: server.URL, Destination: dest, Progress: progress})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls < 2 {
		t.Errorf("progress called %d times", calls)
	}
	if last != int64(len(body)) || total != int64(len(body)) {
		t.Errorf("final progress = %d/%d, want %d", last, total, len(body))
	}
}

func TestFetch_Robots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "ok")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.RespectRobots = true
	fetcher := NewHTTPFetcher(cfg, nil)

	_, err := fetcher.Fetch(context.Background(), resource.FetchRequest{URI: server.URL + "/private/a.txt"})
	if !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}

	dest := filepath.Join(t.TempDir(), "a.txt")
	if _, err := fetcher.Fetch(context.Background(), resource.FetchRequest{URI: server.URL + "/public/a.txt", Destination: dest}); err != nil {
		t.Errorf("public fetch error = %v", err)
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &StatusError{Code: 503, Status: "503 Service Unavailable"}, true},
		{"500", &StatusError{Code: 500, Status: "500 Internal Server Error"}, true},
		{"502 wrapped", fmt.Errorf("get: %w", &StatusError{Code: 502}), true},
		{"429", &StatusError{Code: 429}, true},
		{"404", &StatusError{Code: 404}, false},
		{"403", &StatusError{Code: 403}, false},
		{"401", &StatusError{Code: 401}, false},
		{"transport", fmt.Errorf("fetch: %w", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}), true},
		{"canceled", fmt.Errorf("fetch: %w", &url.Error{Op: "Get", URL: "http://x", Err: context.Canceled}), false},
		{"create request", errors.New("create request: invalid URL"), false},
		{"read body", errors.New("read body: unexpected EOF"), false},
		{"robots", ErrDisallowed, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
