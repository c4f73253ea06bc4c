// Package pipeline wires fetchers, caching and rate limiting together and
// runs single retrievals and whole-manifest mirrors.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/ppiankov/sito/internal/cache"
	"github.com/ppiankov/sito/internal/fetch"
	"github.com/ppiankov/sito/internal/manifest"
	"github.com/ppiankov/sito/internal/model"
	"github.com/ppiankov/sito/internal/resource"
	"github.com/ppiankov/sito/internal/worker"
)

// Pipeline retrieves resources through the configured fetchers
type Pipeline struct {
	fetcher resource.Fetcher
	limiter *worker.Limiter
	config  *model.Config
	logger  *log.Logger
}

// NewPipeline builds the fetcher stack described by cfg: a scheme router
// over file, http(s), and optionally s3 and gs, wrapped in the fetch cache
func NewPipeline(ctx context.Context, cfg *model.Config, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	router := fetch.NewRouter(logger)
	router.Register(fetch.NewFileFetcher(logger), "file")
	httpFetcher := fetch.NewHTTPFetcher(cfg.HTTP, logger)
	router.Register(httpFetcher, "http", "https")

	if cfg.Storage.S3.Enabled {
		s3Fetcher, err := fetch.NewS3Fetcher(ctx, cfg.Storage.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 fetcher: %w", err)
		}
		router.Register(s3Fetcher, "s3")
	}
	if cfg.Storage.GCS.Enabled {
		router.Register(fetch.NewGCSFetcher(logger), "gs")
	}

	var fetcher resource.Fetcher = router
	if cfg.Cache.Enabled {
		c := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		fetcher = fetch.NewCachedFetcher(router, c, cfg.Cache.DiskTTL, logger)
	}

	p := newPipeline(cfg, fetcher, logger)
	if robots := httpFetcher.Robots(); robots != nil {
		p.limiter.UseCrawlDelays(robots)
	}

	logger.Debug("pipeline ready", "schemes", router.Schemes(), "cache", cfg.Cache.Enabled)
	return p, nil
}

func newPipeline(cfg *model.Config, fetcher resource.Fetcher, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	p := &Pipeline{
		fetcher: fetcher,
		config:  cfg,
		logger:  logger,
	}
	if cfg.RateLimiting.RequestsPerSecond > 0 || cfg.HTTP.RespectRobots {
		p.limiter = worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	}
	return p
}

// Retrieve fetches a single resource. An empty dest lets the fetcher pick
// the location.
func (p *Pipeline) Retrieve(ctx context.Context, r resource.Resource, dest string, opts ...resource.RetrieveOption) (resource.LocalResource, error) {
	if p.limiter != nil && r.LocationKind() == resource.LocNetwork {
		if err := p.limiter.Wait(ctx, r.URI()); err != nil {
			return resource.LocalResource{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	if dest != "" {
		opts = append(opts, resource.WithDestination(dest))
	}

	local, err := r.Retrieve(ctx, p.fetcher, opts...)
	if err != nil {
		return resource.LocalResource{}, fmt.Errorf("retrieve %s: %w", r.URI(), err)
	}

	p.logger.Info("retrieved", "uri", r.URI(), "path", local.Path())
	return local, nil
}

// MirrorResult is the outcome of a mirror run
type MirrorResult struct {
	// Tree holds the local counterpart of every entry that succeeded,
	// rooted at the output directory
	Tree *manifest.Tree
	// Failures maps keys that could not be retrieved to their error
	Failures map[string]error
}

// Mirror retrieves every entry of tree into outputDir/<key>. Directory
// entries are created rather than fetched. Individual failures are
// collected in the result and do not stop the run.
func (p *Pipeline) Mirror(ctx context.Context, tree *manifest.Tree, outputDir string) (*MirrorResult, error) {
	root, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	result := &MirrorResult{
		Tree:     manifest.New(resource.FileURI(root)),
		Failures: make(map[string]error),
	}

	var targets []worker.Target
	for key, r := range tree.All() {
		dest := filepath.Join(root, filepath.FromSlash(key))

		if r.Artifact() == resource.ArtifactDirectory {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				result.Failures[key] = fmt.Errorf("create directory: %w", err)
				continue
			}
			_ = result.Tree.Set(key, localDirectory(dest, r))
			continue
		}

		source, err := tree.Resolve(key)
		if err != nil {
			result.Failures[key] = err
			continue
		}
		targets = append(targets, worker.Target{Key: key, Resource: source, Destination: dest})
	}

	retriever := worker.NewBatchRetriever(p.fetcher, p.config.Concurrency.Workers, p.limiter)

	for _, res := range retriever.RetrieveAll(ctx, targets) {
		if res.Error != nil {
			p.logger.Warn("mirror failed", "key", res.Key, "uri", res.Source.URI(), "error", res.Error)
			result.Failures[res.Key] = res.Error
			continue
		}
		_ = result.Tree.Set(res.Key, res.Local.Resource)
	}

	p.logger.Info("mirror complete",
		"entries", tree.Len(),
		"mirrored", result.Tree.Len(),
		"failed", len(result.Failures),
		"output", root)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// localDirectory describes a directory created for a mirrored entry
func localDirectory(path string, src resource.Resource) resource.Resource {
	attrs := src.Attributes()
	attrs[resource.AttrOriginURI] = src.URI()
	return resource.New(resource.FileURI(path),
		resource.WithID(src.ID()),
		resource.WithMeta(src.Meta()),
		resource.WithAttributes(attrs),
		resource.WithArtifact(resource.ArtifactDirectory),
	)
}
