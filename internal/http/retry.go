package http

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/prowessninja/smsctl/internal/constants"
)

// ErrorType groups failures by what a caller should do about them.
type ErrorType int

const (
	// ErrorTypeSuccess means there was no error.
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential means the token or storage credentials were
	// rejected. Retrying with the same credentials will not help.
	ErrorTypeCredential
	// ErrorTypeNetwork means the server could not be reached. These are the
	// failures the reconnect queue waits out.
	ErrorTypeNetwork
	// ErrorTypeRetryable means the server answered but is overloaded or
	// failing (429, 5xx).
	ErrorTypeRetryable
	// ErrorTypeFatal means the request itself is wrong (400, 404, bad data).
	ErrorTypeFatal
)

// String returns the lower-case name used in logs.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Config holds the parameters for ExecuteWithRetry.
type Config struct {
	MaxRetries   int           // total attempts, including the first
	InitialDelay time.Duration // backoff base
	MaxDelay     time.Duration // backoff cap

	// Classify maps an error to its ErrorType. ClassifyError is used when nil.
	Classify func(error) ErrorType

	// OnRetry is called before each retry with the 1-based attempt that failed.
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultConfig returns the retry settings shared by API and export calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   constants.MaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
	}
}

// Substrings matched against lower-cased error text, checked in this order.
var (
	credentialMarkers = []string{
		"expired", "invalid token", "401", "403", "unauthorized", "forbidden",
		"authentication failed", "authenticationfailed", "invalid sas", "signature not valid",
	}
	networkMarkers = []string{
		"tls handshake timeout", "connection reset", "i/o timeout", "eof",
		"connection refused", "no such host", "network is unreachable", "broken pipe", "timeout",
	}
	retryableMarkers = []string{
		"internalerror", "serviceunavailable", "service unavailable", "slowdown", "throttl",
		"server busy", "serverbusy", "429", "500", "502", "503", "504",
	}
)

// ClassifyError classifies err from its text. It is the fallback for
// transport and storage SDK errors. API callers should use api.Classify,
// which looks at typed errors first.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, credentialMarkers):
		return ErrorTypeCredential
	case containsAny(msg, networkMarkers):
		return ErrorTypeNetwork
	case containsAny(msg, retryableMarkers):
		return ErrorTypeRetryable
	}
	// Unknown errors are not retried.
	return ErrorTypeFatal
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// CalculateBackoff returns a full-jitter exponential delay:
// random(0, min(maxDelay, initialDelay * 2^attempt)).
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}
	base := maxDelay
	if attempt < 31 {
		if d := initialDelay << uint(attempt); d > 0 && d < maxDelay {
			base = d
		}
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// ExecuteWithRetry runs operation up to config.MaxRetries times. Network and
// retryable failures back off with jitter. Credential and fatal failures
// return at once, as does cancellation of ctx. A retry that cannot finish
// before ctx's deadline is not attempted.
func ExecuteWithRetry(ctx context.Context, config Config, operation func() error) error {
	classify := config.Classify
	if classify == nil {
		classify = ClassifyError
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		errType := classify(err)
		if errType != ErrorTypeNetwork && errType != ErrorTypeRetryable {
			return err
		}
		if attempt == config.MaxRetries {
			break
		}

		backoff := CalculateBackoff(attempt, config.InitialDelay, config.MaxDelay)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < backoff {
			return fmt.Errorf("insufficient time for retry (backoff %v): %w", backoff, err)
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, errType)
		}
		if err := sleepCtx(ctx, backoff); err != nil {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries, lastErr)
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
