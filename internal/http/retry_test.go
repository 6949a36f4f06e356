package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{MaxRetries: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestExecuteWithRetry_Success(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("err = %v calls = %d, want nil and 1", err, calls)
	}
}

func TestExecuteWithRetry_DoesNotRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"fatal", fmt.Errorf("400 bad request")},
		{"credential", fmt.Errorf("status 401: invalid token")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := ExecuteWithRetry(context.Background(), fastConfig(5), func() error {
				calls++
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestExecuteWithRetry_RetriesNetworkErrors(t *testing.T) {
	cfg := fastConfig(3)
	var attempts []int
	cfg.OnRetry = func(attempt int, err error, errorType ErrorType) {
		attempts = append(attempts, attempt)
		if errorType != ErrorTypeNetwork {
			t.Errorf("OnRetry errorType = %s, want network", errorType)
		}
	}

	calls := 0
	err := ExecuteWithRetry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("read tcp: connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if calls != 3 || len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("calls = %d retries = %v, want 3 and [1 2]", calls, attempts)
	}
}

func TestExecuteWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	boom := fmt.Errorf("503 service unavailable")
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteWithRetry_CustomClassifier(t *testing.T) {
	cfg := fastConfig(4)
	cfg.Classify = func(error) ErrorType { return ErrorTypeRetryable }

	calls := 0
	_ = ExecuteWithRetry(context.Background(), cfg, func() error {
		calls++
		return fmt.Errorf("opaque failure")
	})
	if calls != 4 {
		t.Errorf("calls = %d, want 4 when the classifier marks everything retryable", calls)
	}
}

func TestExecuteWithRetry_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, InitialDelay: 5 * time.Second, MaxDelay: 30 * time.Second}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := ExecuteWithRetry(ctx, cfg, func() error {
		return fmt.Errorf("connection reset")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("returned after %v, want prompt return on cancel", elapsed)
	}
}

func TestExecuteWithRetry_InsufficientDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	cfg := Config{MaxRetries: 5, InitialDelay: 5 * time.Second, MaxDelay: 30 * time.Second}

	start := time.Now()
	err := ExecuteWithRetry(ctx, cfg, func() error {
		return fmt.Errorf("i/o timeout")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("returned after %v, want prompt return", elapsed)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{fmt.Errorf("status 401: invalid token"), ErrorTypeCredential},
		{fmt.Errorf("AuthenticationFailed: invalid SAS"), ErrorTypeCredential},
		{fmt.Errorf("dial tcp 10.0.0.1:443: connection refused"), ErrorTypeNetwork},
		{fmt.Errorf("lookup sms.example: no such host"), ErrorTypeNetwork},
		{fmt.Errorf("status 503"), ErrorTypeRetryable},
		{fmt.Errorf("SlowDown: reduce your request rate"), ErrorTypeRetryable},
		{fmt.Errorf("status 404: not found"), ErrorTypeFatal},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestCalculateBackoff_Bounds(t *testing.T) {
	if got := CalculateBackoff(0, time.Second, time.Minute); got != 0 {
		t.Errorf("CalculateBackoff(0) = %v, want 0", got)
	}
	if got := CalculateBackoff(3, time.Second, 0); got != 0 {
		t.Errorf("CalculateBackoff with zero cap = %v, want 0", got)
	}
	for i := 0; i < 50; i++ {
		if got := CalculateBackoff(10, 100*time.Millisecond, 2*time.Second); got < 0 || got >= 2*time.Second {
			t.Fatalf("CalculateBackoff(10) = %v, want within [0, 2s)", got)
		}
		if got := CalculateBackoff(64, time.Second, time.Minute); got < 0 || got >= time.Minute {
			t.Fatalf("CalculateBackoff(64) = %v, want within [0, 1m)", got)
		}
	}
}
