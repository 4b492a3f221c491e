package cache

import (
	"context"
	"sync"
	"time"
)

// Guarded orders report fills against invalidation. A fill started before
// an Invalidate never lands after it.
type Guarded struct {
	ReportCache

	mu  sync.RWMutex
	gen uint64
}

func NewGuarded(c ReportCache) *Guarded {
	if c == nil {
		c = NoopReportCache{}
	}
	return &Guarded{ReportCache: c}
}

// Generation is read before loading the payload that will be passed to Fill.
func (g *Guarded) Generation() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gen
}

// Fill stores value only while no Invalidate has run since gen was read.
// It reports whether the value was written.
func (g *Guarded) Fill(ctx context.Context, gen uint64, key string, value any, ttl time.Duration) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if gen != g.gen {
		return false, nil
	}
	if err := g.ReportCache.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (g *Guarded) Invalidate(ctx context.Context, keys ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	return g.ReportCache.Delete(ctx, keys...)
}
