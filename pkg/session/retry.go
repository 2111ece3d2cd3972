package session

import (
	mathrand "math/rand/v2"
	"time"
)

// RetryPolicy computes reconnect delays: exponential from Base, capped at Max,
// plus up to Jitter of random delay.
type RetryPolicy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:   2 * time.Second,
		Max:    30 * time.Second,
		Jitter: 500 * time.Millisecond,
	}
}

// Next returns the delay before the given attempt, counted from 1.
func (p RetryPolicy) Next(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = 2 * time.Second
	}
	maxDelay := p.Max
	if maxDelay < base {
		maxDelay = base
	}
	if attempt < 1 {
		attempt = 1
	}

	backoff := base
	for i := 1; i < attempt && backoff < maxDelay; i++ {
		backoff *= 2
	}
	if backoff > maxDelay {
		backoff = maxDelay
	}

	if p.Jitter > 0 {
		backoff += time.Duration(mathrand.Int64N(int64(p.Jitter) + 1))
	}
	return backoff
}
