package classify

import "time"

// BackoffPolicy is the per-category retry schedule from §4.3: base
// delay, exponential cap, and the retry budget before permanent_failed.
type BackoffPolicy struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// Multiplier is applied to the delay on each subsequent retry.
	Multiplier float64
	// Cap bounds the delay regardless of retry_count.
	Cap time.Duration
	// MaxRetries is the retry_count at which the item becomes permanent_failed.
	// Zero means the category never retries locally (it bubbles up instead).
	MaxRetries int
}

var policies = map[Category]BackoffPolicy{
	CategoryInvalid:   {BaseDelay: 0, Multiplier: 1, Cap: 0, MaxRetries: 0},
	CategoryRateLimit: {BaseDelay: 300 * time.Second, Multiplier: 2, Cap: 3600 * time.Second, MaxRetries: 8},
	CategoryNetwork:   {BaseDelay: 30 * time.Second, Multiplier: 2, Cap: 1800 * time.Second, MaxRetries: 10},
	CategoryAuth:      {BaseDelay: 0, Multiplier: 1, Cap: 0, MaxRetries: 0},
	CategoryUnknown:   {BaseDelay: 60 * time.Second, Multiplier: 2, Cap: 1200 * time.Second, MaxRetries: 6},
}

// Policy returns the backoff policy for a category.
func Policy(c Category) BackoffPolicy {
	return policies[c]
}

// Backoff computes the delay before the next retry of an item currently
// at retryCount (the count *before* this retry is applied), per §4.3
// and the testable property "next_retry_at - now >= backoff(k, category)".
func Backoff(retryCount int, c Category) time.Duration {
	p := Policy(c)
	if p.BaseDelay == 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < retryCount; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay >= p.Cap {
			return p.Cap
		}
	}
	return delay
}

// ExceedsRetryBudget reports whether retryCount has exhausted the
// category's retry budget and the item must become permanent_failed.
// CategoryInvalid always exceeds immediately ("skip immediately
// permanent_failed" per §4.3); CategoryAuth never retries locally
// and bubbles up instead (§4.6), so it is never subject to this cap.
func ExceedsRetryBudget(retryCount int, c Category) bool {
	if c == CategoryInvalid {
		return true
	}
	if c == CategoryAuth {
		return false
	}
	return retryCount >= Policy(c).MaxRetries
}
