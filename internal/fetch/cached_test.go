package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/sito/internal/cache"
	"github.com/ppiankov/sito/internal/resource"
)

type writingFetcher struct {
	dir   string
	calls int
	err   error
}

func (f *writingFetcher) Fetch(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return resource.FetchResult{}, f.err
	}
	path := filepath.Join(f.dir, "fetched.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		return resource.FetchResult{}, err
	}
	return resource.FetchResult{Path: path, Meta: resource.FetchMeta{ContentType: "text/plain", Charsets: []string{"utf-8"}}}, nil
}

func TestCachedFetcher(t *testing.T) {
	next := &writingFetcher{dir: t.TempDir()}
	fetcher := NewCachedFetcher(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)
	ctx := context.Background()
	req := resource.FetchRequest{URI: "https://example.com/a.txt"}

	first, err := fetcher.Fetch(ctx, req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	second, err := fetcher.Fetch(ctx, req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if next.calls != 1 {
		t.Errorf("underlying fetcher called %d times, want 1", next.calls)
	}
	if second.Path != first.Path || second.Meta.ContentType != "text/plain" || len(second.Meta.Charsets) != 1 {
		t.Errorf("cached result = %+v, want %+v", second, first)
	}

	// another destination is another entry
	if _, err := fetcher.Fetch(ctx, resource.FetchRequest{URI: req.URI, Destination: filepath.Join(next.dir, "other")}); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("underlying fetcher called %d times, want 2", next.calls)
	}

	// a vanished file is fetched again
	if err := os.Remove(first.Path); err != nil {
		t.Fatal(err)
	}
	if _, err := fetcher.Fetch(ctx, req); err != nil {
		t.Fatal(err)
	}
	if next.calls != 3 {
		t.Errorf("underlying fetcher called %d times, want 3", next.calls)
	}
}

func TestCachedFetcher_ErrorNotCached(t *testing.T) {
	boom := errors.New("boom")
	next := &writingFetcher{dir: t.TempDir(), err: boom}
	fetcher := NewCachedFetcher(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	for i := 0; i < 2; i++ {
		if _, err := fetcher.Fetch(context.Background(), resource.FetchRequest{URI: "https://example.com/a"}); !errors.Is(err, boom) {
			t.Errorf("Fetch() error = %v, want %v", err, boom)
		}
	}
	if next.calls != 2 {
		t.Errorf("underlying fetcher called %d times, want 2", next.calls)
	}
}
