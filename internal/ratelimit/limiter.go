// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"sync"

	urlutil "github.com/law-makers/ordercrawl/internal/utils/url"
	"golang.org/x/time/rate"
)

// Throttle paces browser navigations.
//
// History pages, order detail pages and item pages live on different hosts,
// so pacing is kept per host.
type Throttle interface {
	// Wait blocks until a navigation to urlStr may proceed or ctx is done
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a navigation to urlStr may proceed right now
	Allow(urlStr string) bool
}

// HostLimiter is a token bucket per host
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit
	burst    int
}

// NewHostLimiter creates a limiter allowing perSecond navigations per host.
// A non-positive perSecond disables pacing.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  limit,
		burst:    burst,
	}
}

// Wait blocks until the navigation for the given URL can proceed
func (hl *HostLimiter) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	host := urlutil.Host(urlStr)
	if host == "" {
		// Let it through, navigation will fail on its own
		return nil
	}

	return hl.getLimiter(host).Wait(ctx)
}

// Allow checks if a navigation can proceed immediately without blocking
func (hl *HostLimiter) Allow(urlStr string) bool {
	host := urlutil.Host(urlStr)
	if host == "" {
		return true
	}
	return hl.getLimiter(host).Allow()
}

func (hl *HostLimiter) getLimiter(host string) *rate.Limiter {
	hl.mu.RLock()
	limiter, exists := hl.limiters[host]
	hl.mu.RUnlock()

	if exists {
		return limiter
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := hl.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(hl.perHost, hl.burst)
	hl.limiters[host] = limiter

	return limiter
}
