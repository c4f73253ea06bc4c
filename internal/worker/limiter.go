package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/sito/internal/resource"
)

// CrawlDelayer reports the delay a host asks for between requests
type CrawlDelayer interface {
	CrawlDelay(ctx context.Context, rawURL string) time.Duration
}

// Limiter paces requests per host
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
	delays       CrawlDelayer
}

// NewLimiter creates a per-host limiter. A non-positive rate disables pacing.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// UseCrawlDelays consults d the first time a host is seen and slows that
// host down to its crawl delay when it is stricter than the default rate
func (l *Limiter) UseCrawlDelays(d CrawlDelayer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delays = d
}

// Wait blocks until a request to rawURI's host may proceed.
// URIs without a host never wait.
func (l *Limiter) Wait(ctx context.Context, rawURI string) error {
	host := hostOf(rawURI)
	if host == "" {
		return ctx.Err()
	}

	l.mu.RLock()
	_, known := l.limiters[host]
	delays := l.delays
	l.mu.RUnlock()

	if !known && delays != nil {
		if delay := delays.CrawlDelay(ctx, rawURI); delay > 0 && rate.Every(delay) < l.defaultRate {
			l.SetHostRate(host, 1/delay.Seconds(), 1)
		}
	}
	return l.getLimiter(host).Wait(ctx)
}

// Allow reports whether a request to rawURI's host may proceed now
func (l *Limiter) Allow(rawURI string) bool {
	host := hostOf(rawURI)
	if host == "" {
		return true
	}
	return l.getLimiter(host).Allow()
}

func (l *Limiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[host] = limiter

	return limiter
}

// SetHostRate overrides the pacing for one host
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[strings.ToLower(host)] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// hostOf returns the lowercased host[:port] of rawURI without user info
func hostOf(rawURI string) string {
	authority := resource.SplitURI(rawURI).Authority
	if i := strings.LastIndex(authority, "@"); i >= 0 {
		authority = authority[i+1:]
	}
	return strings.ToLower(authority)
}
