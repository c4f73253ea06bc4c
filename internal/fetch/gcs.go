package fetch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/charmbracelet/log"

	"github.com/ppiankov/sito/internal/resource"
)

// objectReader is an open GCS object
type objectReader struct {
	body        io.ReadCloser
	contentType string
	size        int64
}

type openObjectFunc func(ctx context.Context, bucket, object string) (*objectReader, error)

// GCSFetcher downloads gs://bucket/object URIs. The storage client is
// created on first use with application default credentials.
type GCSFetcher struct {
	mu     sync.Mutex
	client *storage.Client
	open   openObjectFunc
	logger *log.Logger
}

// NewGCSFetcher creates a GCS fetcher
func NewGCSFetcher(logger *log.Logger) *GCSFetcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	f := &GCSFetcher{logger: logger}
	f.open = f.openObject
	return f
}

func (f *GCSFetcher) openObject(ctx context.Context, bucket, object string) (*objectReader, error) {
	f.mu.Lock()
	if f.client == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			f.mu.Unlock()
			return nil, fmt.Errorf("create GCS client: %w", err)
		}
		f.client = client
	}
	client := f.client
	f.mu.Unlock()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return &objectReader{body: r, contentType: r.Attrs.ContentType, size: r.Attrs.Size}, nil
}

// Fetch implements resource.Fetcher
func (f *GCSFetcher) Fetch(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	bucket, object, err := splitObjectURI(req.URI)
	if err != nil {
		return resource.FetchResult{}, err
	}

	obj, err := f.open(ctx, bucket, object)
	if err != nil {
		return resource.FetchResult{}, fmt.Errorf("gcs get %s: %w", req.URI, err)
	}
	defer func() { _ = obj.body.Close() }()

	path, err := writeBody(req, obj.body, obj.size, 0)
	if err != nil {
		return resource.FetchResult{}, err
	}

	contentType, charsets := parseContentType(obj.contentType)
	f.logger.Debug("fetched object", "uri", req.URI, "path", path)

	return resource.FetchResult{
		Path: path,
		Meta: resource.FetchMeta{ContentType: contentType, Charsets: charsets},
	}, nil
}

// Close releases the storage client, if one was created
func (f *GCSFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}
