package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ppiankov/sito/internal/resource"
)

// Target is one resource to retrieve in a batch
type Target struct {
	Key         string
	Resource    resource.Resource
	Destination string
}

// RetrieveJob retrieves a single target through a fetcher
type RetrieveJob struct {
	Target  Target
	Fetcher resource.Fetcher
	Limiter *Limiter
}

// Execute waits for the host limiter when the target is remote and retrieves it
func (j *RetrieveJob) Execute(ctx context.Context) Result {
	res := &RetrieveResult{Key: j.Target.Key, Source: j.Target.Resource}

	if j.Limiter != nil && j.Target.Resource.LocationKind() == resource.LocNetwork {
		if err := j.Limiter.Wait(ctx, j.Target.Resource.URI()); err != nil {
			res.Error = fmt.Errorf("rate limit: %w", err)
			return res
		}
	}

	var opts []resource.RetrieveOption
	if j.Target.Destination != "" {
		opts = append(opts, resource.WithDestination(j.Target.Destination))
	}

	local, err := j.Target.Resource.Retrieve(ctx, j.Fetcher, opts...)
	if err != nil {
		res.Error = err
		return res
	}
	res.Local = local
	return res
}

// RetrieveResult is the outcome of a RetrieveJob
type RetrieveResult struct {
	Key    string
	Source resource.Resource
	Local  resource.LocalResource
	Error  error
}

// GetError returns the retrieval error, if any
func (r *RetrieveResult) GetError() error {
	return r.Error
}

// BatchRetriever retrieves many resources concurrently
type BatchRetriever struct {
	fetcher     resource.Fetcher
	concurrency int
	limiter     *Limiter
}

// NewBatchRetriever creates a batch retriever. A nil limiter disables
// per-host pacing.
func NewBatchRetriever(fetcher resource.Fetcher, concurrency int, limiter *Limiter) *BatchRetriever {
	return &BatchRetriever{
		fetcher:     fetcher,
		concurrency: concurrency,
		limiter:     limiter,
	}
}

// RetrieveAll retrieves every target and returns the results ordered by key
func (b *BatchRetriever) RetrieveAll(ctx context.Context, targets []Target) []*RetrieveResult {
	if len(targets) == 0 {
		return []*RetrieveResult{}
	}

	jobs := make([]Job, len(targets))
	for i, target := range targets {
		jobs[i] = &RetrieveJob{
			Target:  target,
			Fetcher: b.fetcher,
			Limiter: b.limiter,
		}
	}

	results := NewPool(ctx, b.concurrency).Run(jobs)

	out := make([]*RetrieveResult, 0, len(results))
	for _, result := range results {
		out = append(out, result.(*RetrieveResult))
	}
	slices.SortFunc(out, func(a, b *RetrieveResult) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

// ReadURIsFromFile reads URIs from a file (one per line), skipping blank
// lines and # comments and dropping duplicates
func ReadURIsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var uris []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			uris = append(uris, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return uris, nil
}
