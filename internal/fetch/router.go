package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ppiankov/sito/internal/resource"
)

// ErrUnsupportedScheme is returned for URIs no registered fetcher handles
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Router dispatches fetches by URI scheme. URIs without a scheme are
// handled by the "file" fetcher.
type Router struct {
	mu       sync.RWMutex
	fetchers map[string]resource.Fetcher
	logger   *log.Logger
}

// NewRouter creates an empty router
func NewRouter(logger *log.Logger) *Router {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Router{
		fetchers: make(map[string]resource.Fetcher),
		logger:   logger,
	}
}

// Register routes the given schemes to f
func (r *Router) Register(f resource.Fetcher, schemes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, scheme := range schemes {
		r.fetchers[strings.ToLower(scheme)] = f
	}
}

// Schemes lists the registered schemes in order
func (r *Router) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemes := make([]string, 0, len(r.fetchers))
	for scheme := range r.fetchers {
		schemes = append(schemes, scheme)
	}
	slices.Sort(schemes)
	return schemes
}

// Fetch implements resource.Fetcher
func (r *Router) Fetch(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	scheme := resource.SplitURI(req.URI).Scheme
	if scheme == "" {
		scheme = "file"
	}

	r.mu.RLock()
	f, ok := r.fetchers[scheme]
	r.mu.RUnlock()
	if !ok {
		return resource.FetchResult{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}

	r.logger.Debug("routing fetch", "scheme", scheme, "uri", req.URI)
	return f.Fetch(ctx, req)
}
