package resilience

import "time"

// Config is shared by every upstream call site. Zero fields take the
// DefaultConfig value, except CallTimeout where zero disables the
// per-attempt bound and leaves only the caller's context.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	CallTimeout         time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig allows for a model server that is still loading weights:
// backoff grows to 2s and a single generation may take 30s.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,
		CallTimeout:         30 * time.Second,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func positive[T int | uint32 | float64 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	out.RetryMaxAttempts = positive(c.RetryMaxAttempts, def.RetryMaxAttempts)
	out.RetryInitialBackoff = positive(c.RetryInitialBackoff, def.RetryInitialBackoff)
	out.RetryMaxBackoff = max(positive(c.RetryMaxBackoff, def.RetryMaxBackoff), out.RetryInitialBackoff)
	if c.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	out.CallTimeout = max(c.CallTimeout, 0)

	out.BreakerMinRequests = positive(c.BreakerMinRequests, def.BreakerMinRequests)
	out.BreakerOpenTimeout = positive(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	out.BreakerHalfOpenMaxCalls = positive(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	return out
}
