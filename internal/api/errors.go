// Package api provides the school-management REST client and its error types.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	smshttp "github.com/prowessninja/smsctl/internal/http"
)

// ErrEmptyToken is returned before any network call when no token is given.
var ErrEmptyToken = errors.New("API token is empty")

// ErrUnknownRole is returned when a role has no dashboard endpoint.
var ErrUnknownRole = errors.New("unknown role")

// HTTPError is returned when the server answers with a non-2xx status.
// Body holds the decoded JSON error payload, or the raw text when the body
// is not JSON.
type HTTPError struct {
	Status int
	Body   any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Detail())
}

// Detail returns a one-line description of the error body. DRF puts the
// message under "detail"; validation errors map field names to messages.
func (e *HTTPError) Detail() string {
	switch body := e.Body.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(body)
	case map[string]any:
		if d, ok := body["detail"].(string); ok {
			return d
		}
	}
	data, err := json.Marshal(e.Body)
	if err != nil {
		return fmt.Sprint(e.Body)
	}
	return string(data)
}

// newHTTPError builds an HTTPError, decoding body as JSON when possible.
func newHTTPError(status int, body []byte) *HTTPError {
	var decoded any
	if len(body) > 0 && json.Unmarshal(body, &decoded) == nil {
		return &HTTPError{Status: status, Body: decoded}
	}
	return &HTTPError{Status: status, Body: string(body)}
}

// NetworkError is a transport-level failure: DNS, connect, TLS, reset or a
// body that could not be read.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedResponseError is returned when a 2xx body is not valid JSON for
// the expected shape.
type MalformedResponseError struct {
	Status int
	Body   string // truncated for display
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response (HTTP %d): %v", e.Status, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func newMalformedResponseError(status int, body []byte, err error) *MalformedResponseError {
	const maxBody = 256
	s := string(body)
	if len(s) > maxBody {
		s = s[:maxBody] + "..."
	}
	return &MalformedResponseError{Status: status, Body: s, Err: err}
}

// IsNetworkError reports whether err is (or wraps) a NetworkError that was
// not caused by the caller cancelling the context.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// Classify maps an API error onto the retry taxonomy shared with the
// storage uploaders.
//
// Usage:
//
//	if api.Classify(err) == smshttp.ErrorTypeNetwork {
//	    resumer.Defer(retry)
//	}
func Classify(err error) smshttp.ErrorType {
	if err == nil {
		return smshttp.ErrorTypeSuccess
	}

	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		switch {
		case httpErr.Status == 401 || httpErr.Status == 403:
			return smshttp.ErrorTypeCredential
		case httpErr.Status == 429 || httpErr.Status >= 500:
			return smshttp.ErrorTypeRetryable
		default:
			return smshttp.ErrorTypeFatal
		}
	case IsNetworkError(err):
		return smshttp.ErrorTypeNetwork
	case errors.Is(err, context.Canceled), errors.Is(err, ErrEmptyToken):
		return smshttp.ErrorTypeFatal
	}

	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return smshttp.ErrorTypeFatal
	}
	return smshttp.ClassifyError(err)
}
