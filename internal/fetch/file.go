package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/ppiankov/sito/internal/resource"
)

// FileFetcher retrieves local files and file:// URIs. Without a destination
// the source path is returned as is.
type FileFetcher struct {
	logger *log.Logger
}

// NewFileFetcher creates a local file fetcher
func NewFileFetcher(logger *log.Logger) *FileFetcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &FileFetcher{logger: logger}
}

// Fetch implements resource.Fetcher
func (f *FileFetcher) Fetch(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return resource.FetchResult{}, err
	}

	src, err := resource.PathFromFileURI(req.URI)
	if err != nil {
		return resource.FetchResult{}, err
	}

	info, err := os.Stat(src)
	if err != nil {
		return resource.FetchResult{}, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return resource.FetchResult{}, fmt.Errorf("%s is a directory", src)
	}

	contentType, charsets := parseContentType(mime.TypeByExtension(filepath.Ext(src)))
	meta := resource.FetchMeta{ContentType: contentType, Charsets: charsets}

	if req.Destination == "" || sameFile(src, req.Destination) {
		if req.Progress != nil {
			req.Progress(0, blockSize, info.Size())
		}
		return resource.FetchResult{Path: src, Meta: meta}, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return resource.FetchResult{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = in.Close() }()

	path, err := writeBody(req, in, info.Size(), 0)
	if err != nil {
		return resource.FetchResult{}, err
	}

	f.logger.Debug("copied", "from", src, "to", path)
	return resource.FetchResult{Path: path, Meta: meta}, nil
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
