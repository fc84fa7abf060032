package queue

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces the two-tier claim pacing from §4.3: the first
// highSpeedCount successful claims per round proceed immediately; every
// claim after that waits for lowSpeedInterval plus a random jitter in
// [0, jitter).
type Pacer struct {
	highSpeedCount int
	limiter        *rate.Limiter
	jitter         time.Duration

	mu      sync.Mutex
	claimed int
}

// NewPacer builds a Pacer. The underlying rate.Limiter is configured with
// a burst equal to highSpeedCount so the first batch of claims never
// waits, and a refill rate of one token per lowSpeedInterval afterward.
func NewPacer(highSpeedCount int, lowSpeedInterval, jitter time.Duration) *Pacer {
	var every rate.Limit
	if lowSpeedInterval <= 0 {
		every = rate.Inf
	} else {
		every = rate.Every(lowSpeedInterval)
	}
	burst := highSpeedCount
	if burst < 1 {
		burst = 1
	}
	return &Pacer{
		highSpeedCount: highSpeedCount,
		limiter:        rate.NewLimiter(every, burst),
		jitter:         jitter,
	}
}

// Wait blocks until the next claim is permitted. The first highSpeedCount
// calls return immediately (consuming the limiter's initial burst); after
// that each call waits on the limiter and then sleeps an extra random
// jitter duration so retries from many queue items don't phase-lock.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	n := p.claimed
	p.claimed++
	p.mu.Unlock()

	if n < p.highSpeedCount {
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.jitter > 0 {
		select {
		case <-time.After(time.Duration(rand.Int63n(int64(p.jitter)))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Reset zeroes the high-speed counter, called once per scheduler round so
// each round gets its own high-speed allowance (§4.3 is phrased
// per-round: "the first high_speed_queue_size successful claims per
// round").
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimed = 0
}
