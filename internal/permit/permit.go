// Package permit bounds how many detail-page tasks run at once.
package permit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/realtime-weather-crawler/internal/metrics"
)

// Pool is a counting semaphore of fixed capacity. It also tracks how many
// permits are held and the highest count seen so far.
type Pool struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
	peak     atomic.Int64
}

// New creates a Pool with the given capacity.
func New(capacity int) (*Pool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("permit capacity must be > 0, got %d", capacity)
	}
	return &Pool{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}, nil
}

// Acquire blocks until a permit is free or ctx is done. The returned release
// func gives the permit back. Calling it more than once is a no-op.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire permit: %w", err)
	}
	n := p.inUse.Add(1)
	p.raisePeak(n)
	metrics.SetPermitsInUse(n)

	var once sync.Once
	return func() {
		once.Do(func() {
			metrics.SetPermitsInUse(p.inUse.Add(-1))
			p.sem.Release(1)
		})
	}, nil
}

func (p *Pool) raisePeak(n int64) {
	for {
		cur := p.peak.Load()
		if n <= cur || p.peak.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Capacity returns the maximum number of concurrent permits.
func (p *Pool) Capacity() int {
	return int(p.capacity)
}

// InUse returns the number of permits currently held.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Peak returns the highest number of permits held simultaneously.
func (p *Pool) Peak() int {
	return int(p.peak.Load())
}

// Available reports whether every permit can be taken right now, without
// blocking. It is meant for tests and shutdown checks.
func (p *Pool) Available() bool {
	if !p.sem.TryAcquire(p.capacity) {
		return false
	}
	p.sem.Release(p.capacity)
	return true
}
