package fetcher

import (
	"math"
	"math/rand"
	"time"

	"github.com/fetchguard/fetchguard/pkg/config"
)

// retryPolicy computes backoff delays for a fixed attempt budget. Retry
// state is call-local; the policy itself is immutable after construction.
type retryPolicy struct {
	cfg config.RetryConfig
}

func newRetryPolicy(cfg config.RetryConfig) retryPolicy {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2.0
	}
	return retryPolicy{cfg: cfg}
}

func (rp retryPolicy) maxAttempts() int {
	return rp.cfg.MaxAttempts
}

// backoff returns the delay before the next attempt. attempt is the number
// of the attempt that just failed, starting at 1.
func (rp retryPolicy) backoff(attempt int) time.Duration {
	d := time.Duration(float64(rp.cfg.InitialBackoff) * math.Pow(rp.cfg.BackoffMultiplier, float64(attempt-1)))
	if d > rp.cfg.MaxBackoff {
		d = rp.cfg.MaxBackoff
	}
	if rp.cfg.Jitter && d >= 4 {
		// Up to 25% jitter to avoid thundering herd on shared upstreams.
		// #nosec G404 - non-cryptographic random is fine for jitter
		d += time.Duration(rand.Int63n(int64(d / 4)))
	}
	return d
}
