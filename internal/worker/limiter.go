package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter enforces a rate window per connector ID. Windows are created
// lazily with the defaults and may be pinned per connector from its
// registry entry. All updates go through one lock, so tasks settling in
// arbitrary order observe a consistent window.
type Limiter struct {
	mu           sync.RWMutex
	byConnector  map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter with a default requests-per-second rate.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		byConnector:  make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// SetConnectorRate pins a connector-specific rate window, used when a
// registry entry declares its own limits.
func (l *Limiter) SetConnectorRate(connectorID string, requestsPerSecond float64, burst int) {
	if burst <= 0 {
		burst = l.defaultBurst
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byConnector[connectorID] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the connector's window admits one call, or ctx ends.
func (l *Limiter) Wait(ctx context.Context, connectorID string) error {
	return l.limiterFor(connectorID).Wait(ctx)
}

// Allow reports whether one call is admitted right now without waiting.
func (l *Limiter) Allow(connectorID string) bool {
	return l.limiterFor(connectorID).Allow()
}

func (l *Limiter) limiterFor(connectorID string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.byConnector[connectorID]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.byConnector[connectorID]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.byConnector[connectorID] = lim
	return lim
}
