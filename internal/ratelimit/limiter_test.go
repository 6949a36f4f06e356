package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prowessninja/smsctl/internal/constants"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(perSecond, burst float64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perSecond, burst)
	rl.now = clock.now
	rl.refilled = clock.now()
	return rl, clock
}

func TestBurstThenEmpty(t *testing.T) {
	rl, _ := newTestLimiter(1, 5)

	for i := 0; i < 5; i++ {
		if wait := rl.reserve(); wait != 0 {
			t.Fatalf("request %d had to wait %v", i+1, wait)
		}
	}
	if wait := rl.reserve(); wait <= 0 {
		t.Fatal("sixth request should wait once the burst is spent")
	}
}

func TestRefillOverTime(t *testing.T) {
	rl, clock := newTestLimiter(10, 10)
	for i := 0; i < 10; i++ {
		rl.reserve()
	}

	clock.advance(200 * time.Millisecond)
	if got := rl.Available(); got < 1.99 || got > 2.01 {
		t.Errorf("Available() = %.2f after 200ms at 10/s, want 2", got)
	}

	clock.advance(time.Minute)
	if got := rl.Available(); got != 10 {
		t.Errorf("Available() = %.2f, want capped at 10", got)
	}
}

func TestReserveReportsWaitForNextToken(t *testing.T) {
	rl, _ := newTestLimiter(4, 1)
	rl.reserve()

	if wait := rl.reserve(); wait != 250*time.Millisecond {
		t.Errorf("wait = %v, want 250ms at 4 tokens/s", wait)
	}
}

func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	rl := NewRateLimiter(20, 1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Wait() returned after %v, want about 50ms", elapsed)
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(0.1, 1)
	_ = rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestCooldownFreezesBucket(t *testing.T) {
	rl, clock := newTestLimiter(100, 10)

	rl.SetCooldown(5 * time.Second)
	if got := rl.Available(); got != 0 {
		t.Errorf("Available() during cooldown = %.2f, want 0", got)
	}
	if wait := rl.reserve(); wait != 5*time.Second {
		t.Errorf("wait during cooldown = %v, want 5s", wait)
	}

	clock.advance(5 * time.Second)
	if rl.CooldownRemaining() != 0 {
		t.Errorf("CooldownRemaining() = %v after expiry", rl.CooldownRemaining())
	}
	// The bucket refills from the end of the cooldown, not from before it.
	if wait := rl.reserve(); wait == 0 {
		t.Error("first request after cooldown should still wait for a refill")
	}
}

func TestCooldownNeverShortens(t *testing.T) {
	tests := []struct {
		name   string
		first  time.Duration
		second time.Duration
		want   time.Duration
	}{
		{"shorter is ignored", 10 * time.Second, 2 * time.Second, 10 * time.Second},
		{"longer extends", 2 * time.Second, 10 * time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, _ := newTestLimiter(1, 1)
			rl.SetCooldown(tt.first)
			rl.SetCooldown(tt.second)
			if got := rl.CooldownRemaining(); got != tt.want {
				t.Errorf("CooldownRemaining() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConcurrentWaiters(t *testing.T) {
	rl := NewRateLimiter(1000, 50)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- rl.Wait(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
}

func TestNewAPIRateLimiterDefaults(t *testing.T) {
	rl := NewAPIRateLimiter(0)
	if rl.rate != constants.APIRequestsPerSecond {
		t.Errorf("rate = %v, want %v", rl.rate, constants.APIRequestsPerSecond)
	}
	if rl.capacity != constants.APIBurstCapacity {
		t.Errorf("capacity = %v, want %v", rl.capacity, float64(constants.APIBurstCapacity))
	}
	if custom := NewAPIRateLimiter(2); custom.rate != 2 {
		t.Errorf("custom rate = %v, want 2", custom.rate)
	}
}
