package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/metrics"
)

var logger = logging.NewComponentLogger("ratelimit")

// RateLimiter is a token bucket: it holds at most burst tokens and refills
// at rate tokens per second. Each LIST page costs one token.
type RateLimiter struct {
	mu       sync.Mutex
	provider string
	rate     float64
	burst    float64
	tokens   float64
	last     time.Time
	lastWarn time.Time
	waits    int64
	now      func() time.Time
}

// NewRateLimiter creates a limiter that refills at tokensPerSecond and holds
// at most burstSize tokens. The bucket starts full.
func NewRateLimiter(tokensPerSecond, burstSize float64) *RateLimiter {
	return &RateLimiter{
		rate:   tokensPerSecond,
		burst:  burstSize,
		tokens: burstSize,
		last:   time.Now(),
		now:    time.Now,
	}
}

// NewListRateLimiter creates the limiter used for LIST pages of provider
// ("s3" or "azure"). Unknown providers get the S3 budget.
func NewListRateLimiter(provider string) *RateLimiter {
	rate, burst := S3ListRatePerSec, S3ListBurstCapacity
	if provider == "azure" {
		rate, burst = AzureListRatePerSec, AzureListBurstCapacity
	}
	rl := NewRateLimiter(rate, burst)
	rl.provider = provider
	return rl
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	delay := rl.reserve()
	if delay == 0 {
		return nil
	}

	start := time.Now()
	rl.warn(delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		delay = rl.reserve()
		if delay == 0 {
			waited := time.Since(start)
			if rl.provider != "" {
				metrics.RecordThrottleWait(rl.provider, waited)
			}
			if waited > SlowWaitThreshold {
				logger.Info().Str("provider", rl.provider).Dur("waited", waited).Msg("Rate limit wait completed")
			}
			return nil
		}
		timer.Reset(delay)
	}
}

// reserve takes a token and returns 0, or returns how long until one will
// be available without taking anything.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	if rl.rate <= 0 {
		// never refills; poll at the warning interval so ctx still ends the wait
		return WarnInterval
	}
	rl.waits++
	return time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
}

// refill must be called with mu held.
func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens += now.Sub(rl.last).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.last = now
}

func (rl *RateLimiter) warn(delay time.Duration) {
	if delay <= WarnWaitThreshold {
		return
	}
	rl.mu.Lock()
	due := rl.now().Sub(rl.lastWarn) > WarnInterval
	if due {
		rl.lastWarn = rl.now()
	}
	rl.mu.Unlock()

	if due {
		logger.Warn().Str("provider", rl.provider).Dur("wait", delay).Msg("Rate limited, waiting for listing capacity")
	}
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Waits returns how many reservations found the bucket empty.
func (rl *RateLimiter) Waits() int64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.waits
}
