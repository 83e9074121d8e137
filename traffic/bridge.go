package traffic

import "sync"

// Bridge fronts the traffic Service with a cached snapshot. The cache is
// refreshed only on explicit events (server start, emergency, density
// update), so the hot broadcast path never pays for recomputation.
type Bridge struct {
	mu      sync.RWMutex
	service Service
	cached  Snapshot
}

// NewBridge wraps the service and primes the cache with an initial fetch.
func NewBridge(service Service) *Bridge {
	b := &Bridge{service: service}
	b.Refresh()
	return b
}

// Current returns the cached snapshot without consulting the service.
func (b *Bridge) Current() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cached
}

// Refresh re-reads the service and replaces the cache, returning the fresh
// snapshot.
func (b *Bridge) Refresh() Snapshot {
	snap := b.service.Status()

	b.mu.Lock()
	b.cached = snap
	b.mu.Unlock()

	return snap
}

// SetDensity forwards a density override to the service. On success the
// cache is refreshed so subsequent reads see the new value; on rejection
// nothing changes.
func (b *Bridge) SetDensity(direction string, density float64) bool {
	if !b.service.SetDensity(direction, density) {
		return false
	}
	b.Refresh()
	return true
}
