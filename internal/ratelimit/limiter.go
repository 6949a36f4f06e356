// Package ratelimit keeps smsctl under the school API's request budget. The
// limiter is a token bucket that a 429 response can freeze for the
// Retry-After period.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prowessninja/smsctl/internal/constants"
)

// warnEvery bounds how often a long wait is logged.
const warnEvery = 10 * time.Second

// RateLimiter hands out one token per API request.
type RateLimiter struct {
	mu sync.Mutex

	rate     float64 // tokens per second
	capacity float64
	tokens   float64
	refilled time.Time

	frozenUntil time.Time
	lastWarn    time.Time

	now func() time.Time
}

// NewRateLimiter returns a full bucket holding burst tokens that refills at
// perSecond.
func NewRateLimiter(perSecond, burst float64) *RateLimiter {
	rl := &RateLimiter{rate: perSecond, capacity: burst, tokens: burst, now: time.Now}
	rl.refilled = rl.now()
	return rl
}

// NewAPIRateLimiter creates the limiter shared by all school API calls.
// A zero or negative rate falls back to constants.APIRequestsPerSecond.
func NewAPIRateLimiter(requestsPerSec float64) *RateLimiter {
	if requestsPerSec <= 0 {
		requestsPerSec = constants.APIRequestsPerSecond
	}
	return NewRateLimiter(requestsPerSec, constants.APIBurstCapacity)
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	start := rl.now()
	for {
		wait := rl.reserve()
		if wait == 0 {
			if waited := rl.now().Sub(start); waited > constants.RateLimitWarningThreshold {
				log.Debug().Dur("waited", waited).Msg("Rate limit wait completed")
			}
			return nil
		}
		rl.warn(wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SetCooldown empties the bucket and refuses tokens for d. A shorter
// cooldown never replaces a longer one already in effect.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if until := rl.now().Add(d); until.After(rl.frozenUntil) {
		rl.frozenUntil = until
	}
	rl.tokens = 0
}

// CooldownRemaining reports how long the current cooldown still lasts.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if d := rl.frozenUntil.Sub(rl.now()); d > 0 {
		return d
	}
	return 0
}

// Available returns the tokens that could be taken right now.
func (rl *RateLimiter) Available() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Before(rl.frozenUntil) {
		return 0
	}
	return rl.refill(now)
}

// reserve takes a token and returns zero, or returns how long to wait
// before trying again.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Before(rl.frozenUntil) {
		rl.refilled = now
		return rl.frozenUntil.Sub(now)
	}

	rl.tokens = rl.refill(now)
	rl.refilled = now
	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

// refill returns the bucket level at now without storing it. Nothing
// accumulates while a cooldown is in effect. Caller holds mu.
func (rl *RateLimiter) refill(now time.Time) float64 {
	from := rl.refilled
	if rl.frozenUntil.After(from) {
		from = rl.frozenUntil
	}
	tokens := rl.tokens + now.Sub(from).Seconds()*rl.rate
	if tokens > rl.capacity {
		tokens = rl.capacity
	}
	return tokens
}

func (rl *RateLimiter) warn(wait time.Duration) {
	if wait <= constants.RateLimitWarningThreshold {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.now().Sub(rl.lastWarn) < warnEvery {
		return
	}
	rl.lastWarn = rl.now()
	log.Warn().Dur("wait", wait).Msg("Rate limited: waiting for API capacity")
}
