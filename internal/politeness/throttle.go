// Package politeness applies the static per-task delay and an optional
// per-host token bucket before a detail page is requested.
package politeness

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/realtime-weather-crawler/internal/metrics"
)

// Config holds throttle settings. A zero PerHostRPS disables the bucket.
type Config struct {
	Delay        time.Duration
	PerHostRPS   float64
	PerHostBurst int
}

// Throttle is safe for concurrent use.
type Throttle struct {
	delay   time.Duration
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int
}

// New creates a Throttle.
func New(cfg Config) *Throttle {
	r := rate.Limit(cfg.PerHostRPS)
	if cfg.PerHostRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.PerHostBurst
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		delay:   cfg.Delay,
		buckets: make(map[string]*rate.Limiter),
		rate:    r,
		burst:   burst,
	}
}

// Delay returns the fixed delay applied before every request.
func (t *Throttle) Delay() time.Duration {
	return t.delay
}

// Wait sleeps for the fixed delay and then waits for a token from rawURL's
// host bucket. It returns early with an error if ctx is done.
func (t *Throttle) Wait(ctx context.Context, rawURL string) error {
	start := time.Now()
	defer func() { metrics.ObserveThrottleWait(time.Since(start)) }()

	if err := pause(ctx, t.delay); err != nil {
		return err
	}
	if t.rate == rate.Inf {
		return nil
	}
	if err := t.bucket(hostOf(rawURL)).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (t *Throttle) bucket(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	limiter, ok := t.buckets[host]
	if !ok {
		limiter = rate.NewLimiter(t.rate, t.burst)
		t.buckets[host] = limiter
	}
	return limiter
}

func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("politeness delay: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
