package fetch

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ppiankov/sito/internal/cache"
	"github.com/ppiankov/sito/internal/resource"
)

// CachedFetcher remembers where earlier fetches landed. A hit is served
// only while the fetched file still exists.
type CachedFetcher struct {
	next   resource.Fetcher
	cache  cache.Cache
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedFetcher wraps next with c
func NewCachedFetcher(next resource.Fetcher, c cache.Cache, ttl time.Duration, logger *log.Logger) *CachedFetcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &CachedFetcher{next: next, cache: c, ttl: ttl, logger: logger}
}

// Fetch implements resource.Fetcher
func (f *CachedFetcher) Fetch(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	key := cache.Key("fetch", req.URI, req.Destination)

	if data, ok := f.cache.Get(key); ok {
		var result resource.FetchResult
		if err := json.Unmarshal(data, &result); err == nil {
			if info, err := os.Stat(result.Path); err == nil && info.Mode().IsRegular() {
				f.logger.Debug("cache hit", "uri", req.URI, "path", result.Path)
				return result, nil
			}
		}
		_ = f.cache.Delete(key)
	}

	result, err := f.next.Fetch(ctx, req)
	if err != nil {
		return resource.FetchResult{}, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := f.cache.Set(key, data, f.ttl); err != nil {
			f.logger.Warn("cache write failed", "uri", req.URI, "error", err)
		}
	}
	return result, nil
}
