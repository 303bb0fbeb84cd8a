package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter es un token bucket por clave (x/time/rate) para un solo
// proceso: burst = max, recarga de max tokens por ventana.
type MemoryLimiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	sweep   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{max: max, window: window, buckets: make(map[string]*bucket)}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now()

	m.mu.Lock()
	m.gc(now)
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(m.window/time.Duration(m.max)), m.max)}
		m.buckets[key] = b
	}
	b.seen = now
	m.mu.Unlock()

	r := b.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Result{Allowed: false, RetryAfter: delay}, nil
	}
	return Result{Allowed: true, Remaining: int64(b.lim.TokensAt(now))}, nil
}

// gc descarta buckets sin uso durante más de una ventana. Llamar con mu tomado.
func (m *MemoryLimiter) gc(now time.Time) {
	if now.Sub(m.sweep) < m.window {
		return
	}
	m.sweep = now
	for k, b := range m.buckets {
		if now.Sub(b.seen) > m.window {
			delete(m.buckets, k)
		}
	}
}
