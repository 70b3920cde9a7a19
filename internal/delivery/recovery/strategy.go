package recovery

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff computes jittered exponential delays: base * 2^attempt * (1 + Jitter*r),
// r uniform in [0,1), capped at MaxDelay.
type Backoff struct {
	Multiplier float64
	Jitter     float64
	MaxDelay   time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff returns the default backoff with a seeded RNG so runs can be
// reproduced.
func NewBackoff(seed uint64) *Backoff {
	return &Backoff{
		Multiplier: 2,
		Jitter:     0.2,
		MaxDelay:   5 * time.Minute,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Delay returns the wait before the attempt-th retry (0-indexed).
func (b *Backoff) Delay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	b.mu.Lock()
	r := b.rng.Float64()
	b.mu.Unlock()

	delay := float64(base) * math.Pow(b.Multiplier, float64(attempt)) * (1 + b.Jitter*r)
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		return b.MaxDelay
	}
	return time.Duration(delay)
}
