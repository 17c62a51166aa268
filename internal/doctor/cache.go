package doctor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// CachedDoctor wraps a Prober and caches its report.
type CachedDoctor struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	cached *Report
	at     time.Time
}

func NewCachedDoctor(prober Prober, ttl time.Duration, logger *slog.Logger) *CachedDoctor {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedDoctor{prober: prober, ttl: ttl, logger: logger, now: time.Now}
}

// Get returns the cached report if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Report, error) {
	d.mu.RLock()
	if d.cached != nil && d.now().Sub(d.at) < d.ttl {
		r := d.cached
		d.mu.RUnlock()
		return r, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Peek returns the last report without probing.
func (d *CachedDoctor) Peek() *Report {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh probes regardless of freshness. A failed probe returns the stale
// report when one exists.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.prober.Probe(ctx)
	if err != nil {
		d.logger.Warn("doctor probe failed", "error", err)
		if d.cached != nil {
			d.logger.Info("returning stale doctor report")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = r
	d.at = d.now()
	return r, nil
}

// Invalidate drops the cached report.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
