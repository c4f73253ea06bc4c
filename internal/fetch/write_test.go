package fetch

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestParseContentType(t *testing.T) {
	tests := []struct {
		in       string
		mime     string
		charsets []string
	}{
		{"", "", nil},
		{"text/html", "text/html", nil},
		{"text/html; charset=UTF-8", "text/html", []string{"utf-8"}},
		{"Application/JSON", "application/json", nil},
		{"text/plain; charset", "text/plain", nil},
	}

	for _, tt := range tests {
		mime, charsets := parseContentType(tt.in)
		if mime != tt.mime || !slices.Equal(charsets, tt.charsets) {
			t.Errorf("parseContentType(%q) = %q, %v; want %q, %v", tt.in, mime, charsets, tt.mime, tt.charsets)
		}
	}
}

func TestCopyWithProgress(t *testing.T) {
	src := strings.Repeat("a", blockSize+1)

	var seen []int64
	var dst bytes.Buffer
	n, err := copyWithProgress(&dst, strings.NewReader(src), -1, 0, func(so, _, total int64) {
		if total != -1 {
			t.Errorf("total = %d, want -1", total)
		}
		seen = append(seen, so)
	})
	if err != nil {
		t.Fatalf("copyWithProgress() error = %v", err)
	}
	if n != int64(len(src)) || dst.String() != src {
		t.Errorf("copied %d bytes", n)
	}
	if seen[0] != 0 || seen[len(seen)-1] != int64(len(src)) {
		t.Errorf("progress = %v", seen)
	}

	_, err = copyWithProgress(&dst, strings.NewReader(src), -1, 10, nil)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestTempSuffix(t *testing.T) {
	tests := map[string]string{
		"https://example.com/a.tar.gz":   ".gz",
		"https://example.com/dir/":       "",
		"s3://bucket/key.json?versionId": ".json",
		"/srv/noext":                     "",
	}
	for uri, want := range tests {
		if got := tempSuffix(uri); got != want {
			t.Errorf("tempSuffix(%q) = %q, want %q", uri, got, want)
		}
	}
}
