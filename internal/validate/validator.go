// Package validate probes manifest entries without downloading them.
package validate

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/sito/internal/manifest"
	"github.com/ppiankov/sito/internal/model"
	"github.com/ppiankov/sito/internal/resource"
	"github.com/ppiankov/sito/internal/util"
)

const validateMaxRetries = 3

// staleAfter marks sources not modified for a year as stale
const staleAfter = 365 * 24 * time.Hour

// validateSleepFunc waits between retries and stops early when ctx is done (injectable for tests)
var validateSleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CheckResult describes one probed entry
type CheckResult struct {
	Key          string     `json:"key"`
	URI          string     `json:"uri"`
	Accessible   bool       `json:"accessible"`
	Dead         bool       `json:"dead,omitempty"`
	Skipped      bool       `json:"skipped,omitempty"`
	StatusCode   int        `json:"status_code,omitempty"`
	RedirectURI  string     `json:"redirect_uri,omitempty"`
	Size         int64      `json:"size,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Stale        bool       `json:"stale,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Validator checks manifest entries concurrently: HEAD requests for http(s)
// entries, stat for local ones
type Validator struct {
	httpClient *http.Client
	userAgent  string
	maxWorkers int
}

// NewValidator creates a validator from the HTTP configuration
func NewValidator(cfg model.HTTPConfig, maxWorkers int) *Validator {
	if maxWorkers <= 0 {
		maxWorkers = 20
	}

	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	return &Validator{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:  cfg.UserAgent,
		maxWorkers: maxWorkers,
	}
}

// Check probes every entry of tree and returns results in key order
func (v *Validator) Check(ctx context.Context, tree *manifest.Tree) []CheckResult {
	var keys []string
	for key := range tree.Keys() {
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return []CheckResult{}
	}

	// resolve up front; the tree is not safe for concurrent use
	entries := make([]resource.Resource, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		entries[i], errs[i] = tree.Resolve(key)
	}

	results := make([]CheckResult, len(keys))
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, v.maxWorkers)

	for i := range keys {
		if errs[i] != nil {
			results[i] = CheckResult{Key: keys[i], Error: errs[i].Error()}
			continue
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = CheckResult{Key: keys[idx], URI: entries[idx].URI(), Error: "context cancelled"}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			result := v.checkEntry(ctx, entries[idx])
			result.Key = keys[idx]
			results[idx] = result
		}(i)
	}

	wg.Wait()

	return results
}

func (v *Validator) checkEntry(ctx context.Context, r resource.Resource) CheckResult {
	switch {
	case r.IsLocalized():
		return checkLocal(r)
	case r.LocationKind() == resource.LocNetwork && (r.Parts().Scheme == "http" || r.Parts().Scheme == "https"):
		return v.checkRemoteWithRetry(ctx, r.URI())
	default:
		return CheckResult{URI: r.URI(), Skipped: true, Error: fmt.Sprintf("no probe for %s location", r.LocationKind())}
	}
}

// checkLocal stats a localized entry and compares its kind with the artifact
func checkLocal(r resource.Resource) CheckResult {
	result := CheckResult{URI: r.URI()}

	path, err := r.LocalPath()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	info, err := os.Stat(path)
	if err != nil {
		result.Error = err.Error()
		result.Dead = os.IsNotExist(err)
		return result
	}

	if (r.Artifact() == resource.ArtifactDirectory) != info.IsDir() {
		result.Error = fmt.Sprintf("expected %s, found %s", r.Artifact(), describeMode(info))
		return result
	}

	result.Accessible = true
	if !info.IsDir() {
		result.Size = info.Size()
	}
	modTime := info.ModTime().UTC()
	result.LastModified = &modTime
	result.Stale = time.Since(modTime) > staleAfter
	return result
}

func describeMode(info os.FileInfo) string {
	if info.IsDir() {
		return "directory"
	}
	return "file"
}

// checkRemote issues a HEAD request for a single URI
func (v *Validator) checkRemote(ctx context.Context, uri string) CheckResult {
	result := CheckResult{URI: uri}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		result.Dead = true
		return result
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Dead = true
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Accessible = true
	} else if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		result.Dead = true
	}

	if final := resp.Request.URL.String(); final != uri {
		result.RedirectURI = final
	}
	if resp.ContentLength > 0 {
		result.Size = resp.ContentLength
	}

	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := http.ParseTime(lastModified); err == nil {
			result.LastModified = &t
			result.Stale = time.Since(t) > staleAfter
		}
	}

	return result
}

// checkRemoteWithRetry retries transient failures with exponential backoff
func (v *Validator) checkRemoteWithRetry(ctx context.Context, uri string) CheckResult {
	var result CheckResult
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		result = v.checkRemote(ctx, uri)
		if !isRetryableResult(result) {
			return result
		}
		if attempt < validateMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if err := validateSleepFunc(ctx, backoff); err != nil {
				return result
			}
		}
	}
	return result
}

// isRetryableResult returns true for results that indicate transient failures
func isRetryableResult(result CheckResult) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if result.Error != "" {
		return isRetryableNetworkError(result.Error)
	}
	return false
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
