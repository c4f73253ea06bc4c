package fetch

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/ppiankov/sito/internal/resource"
)

type recordingFetcher struct {
	name  string
	calls int
}

func (f *recordingFetcher) Fetch(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	f.calls++
	return resource.FetchResult{Path: "/tmp/" + f.name}, nil
}

func TestRouter(t *testing.T) {
	local := &recordingFetcher{name: "local"}
	web := &recordingFetcher{name: "web"}

	router := NewRouter(nil)
	router.Register(local, "file")
	router.Register(web, "HTTP", "https")

	tests := []struct {
		uri  string
		want string
	}{
		{"/srv/a.txt", "/tmp/local"},
		{"relative/a.txt", "/tmp/local"},
		{"file:///srv/a.txt", "/tmp/local"},
		{"http://example.com/a", "/tmp/web"},
		{"HTTPS://example.com/a", "/tmp/web"},
	}
	for _, tt := range tests {
		result, err := router.Fetch(context.Background(), resource.FetchRequest{URI: tt.uri})
		if err != nil {
			t.Errorf("Fetch(%q) error = %v", tt.uri, err)
			continue
		}
		if result.Path != tt.want {
			t.Errorf("Fetch(%q) routed to %q, want %q", tt.uri, result.Path, tt.want)
		}
	}

	_, err := router.Fetch(context.Background(), resource.FetchRequest{URI: "ftp://example.com/a"})
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}

	if got := router.Schemes(); !slices.Equal(got, []string{"file", "http", "https"}) {
		t.Errorf("Schemes() = %v", got)
	}
}
