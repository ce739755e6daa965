// Package rate throttles order creation and payment verification per client.
package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per client key. Buckets idle for longer
// than the expiry are dropped by Sweep.
type Limiter struct {
	burst  int
	limit  rate.Limit
	expiry time.Duration

	mu      sync.Mutex
	clients map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimiter(burst int, limit rate.Limit, expiry time.Duration) *Limiter {
	return &Limiter{
		burst:   burst,
		limit:   limit,
		expiry:  expiry,
		clients: make(map[string]*bucket),
	}
}

// Every converts a minimum interval between requests into a limit.
func Every(interval time.Duration) rate.Limit {
	return rate.Every(interval)
}

// Check consumes a token for key and reports whether the request may go on.
func (l *Limiter) Check(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.clients[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1)
}

// Sweep forgets clients not seen since now minus the expiry and returns how
// many were dropped.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, b := range l.clients {
		if now.Sub(b.lastSeen) > l.expiry {
			delete(l.clients, key)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.Sweep(now)
		}
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
