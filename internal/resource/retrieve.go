package resource

import (
	"context"
	"encoding/json"
	"maps"
	"path/filepath"
)

// Attribute keys added by Retrieve
const (
	AttrOriginURI = "origin.uri"
	AttrCharsets  = "charsets"
)

// ProgressFunc reports transfer progress. totalSize is -1 when unknown.
type ProgressFunc func(bytesSoFar, blockSize, totalSize int64)

// FetchRequest is what Retrieve hands to a Fetcher
type FetchRequest struct {
	URI         string
	Destination string // Optional destination filename hint
	Progress    ProgressFunc
}

// FetchMeta describes the fetched content
type FetchMeta struct {
	ContentType string   `json:"content_type"`
	Charsets    []string `json:"charsets"`
}

// FetchResult is the local outcome of a fetch
type FetchResult struct {
	Path string    `json:"path"`
	Meta FetchMeta `json:"meta"`
}

// Fetcher transfers the bytes behind a URI to the local filesystem
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// RetrieveOption tunes a single Retrieve call
type RetrieveOption func(*FetchRequest)

// WithDestination asks the fetcher to write to the given filename
func WithDestination(filename string) RetrieveOption {
	return func(req *FetchRequest) { req.Destination = filename }
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) RetrieveOption {
	return func(req *FetchRequest) { req.Progress = fn }
}

// Retrieve fetches the resource through f and returns its local counterpart.
// Errors from the fetcher are returned as-is.
func (r Resource) Retrieve(ctx context.Context, f Fetcher, opts ...RetrieveOption) (LocalResource, error) {
	req := FetchRequest{URI: r.uri}
	for _, opt := range opts {
		opt(&req)
	}

	result, err := f.Fetch(ctx, req)
	if err != nil {
		return LocalResource{}, err
	}

	charsets := result.Meta.Charsets
	if charsets == nil {
		charsets = []string{}
	}
	encoded, err := json.Marshal(charsets)
	if err != nil {
		return LocalResource{}, err
	}

	attrs := maps.Clone(r.attrs)
	if attrs == nil {
		attrs = make(map[string]string, 2)
	}
	attrs[AttrOriginURI] = r.uri
	attrs[AttrCharsets] = string(encoded)

	path := result.Path
	if !isAbsPath(path) {
		if path, err = filepath.Abs(path); err != nil {
			return LocalResource{}, err
		}
	}

	local := New(FileURI(path),
		WithID(r.id),
		WithMimetype(result.Meta.ContentType),
		WithAttributes(attrs),
		WithArtifact(ArtifactFile),
	)
	local.structural = StructFullyQualified
	local.location = LocLocal

	return LocalResource{Resource: local, path: path}, nil
}
