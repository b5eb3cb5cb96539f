package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorKind classifies why an upstream call failed.
type ErrorKind string

const (
	ErrTimeout     ErrorKind = "timeout"
	ErrAuthFailure ErrorKind = "auth_failure"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrUnreachable ErrorKind = "unreachable"
	ErrMalformed   ErrorKind = "malformed"
)

func (k ErrorKind) describe() string {
	switch k {
	case ErrTimeout:
		return "timed out"
	case ErrAuthFailure:
		return "authentication failed"
	case ErrRateLimited:
		return "rate limited"
	case ErrUnreachable:
		return "unreachable"
	case ErrMalformed:
		return "invalid response"
	}
	return string(k)
}

// UpstreamError is a failed call to one provider. Detail carries the raw
// upstream body for server logs and is never shown to end users.
type UpstreamError struct {
	Provider   Kind
	Kind       ErrorKind
	StatusCode int
	Message    string
	Detail     string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ConfigError means the configuration for a request is unusable or malformed.
// It is surfaced immediately and never retried.
type ConfigError struct {
	Provider Kind
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s is not configured: %s", e.Provider.DisplayName(), e.Reason)
	}
	return "configuration error: " + e.Reason
}

// AsUpstream unwraps err to an *UpstreamError.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// Attempt is one candidate's terminal outcome during fallback.
type Attempt struct {
	Provider Kind          `json:"provider"`
	Kind     ErrorKind     `json:"kind"`
	Message  string        `json:"-"`
	Elapsed  time.Duration `json:"-"`
}

// CompositeError is returned when every candidate failed.
type CompositeError struct {
	Attempts []Attempt
}

func (e *CompositeError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s: %s)", a.Provider, a.Kind, a.Message))
	}
	return "all providers failed: " + strings.Join(parts, ", ")
}

// UserMessage is a generic but actionable summary safe to show end users.
func (e *CompositeError) UserMessage() string {
	if len(e.Attempts) == 0 {
		return "No AI provider is currently configured. Add an API key or an Ollama URL in settings."
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s)", a.Provider.DisplayName(), a.Kind.describe()))
	}
	return "No AI provider is currently available. Tried: " + strings.Join(parts, ", ") + "."
}

var quotaPatterns = []string{
	"quota exceeded",
	"rate limit",
	"too many requests",
	"tokens per minute",
	"requests per minute",
	"insufficient_quota",
	"rate_limit_exceeded",
	"resource_exhausted",
}

var authPatterns = []string{
	"api key not valid",
	"invalid api key",
	"invalid_api_key",
	"incorrect api key",
	"permission_denied",
	"unauthenticated",
}

// classifyStatus maps a non-2xx response to an UpstreamError.
func classifyStatus(provider Kind, status int, body []byte) *UpstreamError {
	lower := strings.ToLower(string(body))
	e := &UpstreamError{
		Provider:   provider,
		StatusCode: status,
		Detail:     truncate(string(body), 500),
	}

	switch {
	case status == http.StatusTooManyRequests || containsAny(lower, quotaPatterns):
		e.Kind = ErrRateLimited
		e.Message = "quota or rate limit exceeded"
	case status == http.StatusUnauthorized || status == http.StatusForbidden || containsAny(lower, authPatterns):
		e.Kind = ErrAuthFailure
		e.Message = "credentials rejected"
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = ErrTimeout
		e.Message = "upstream timed out"
	case status >= 500:
		e.Kind = ErrUnreachable
		e.Message = "upstream server error"
	case status == http.StatusNotFound:
		e.Kind = ErrMalformed
		e.Message = "model or endpoint not found"
	default:
		e.Kind = ErrMalformed
		e.Message = "request rejected"
	}
	return e
}

// classifyTransport maps a transport-level error to an UpstreamError.
func classifyTransport(provider Kind, err error) *UpstreamError {
	e := &UpstreamError{Provider: provider, Err: err}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = ErrTimeout
		e.Message = "deadline exceeded"
	case errors.Is(err, context.Canceled):
		e.Kind = ErrTimeout
		e.Message = "request cancelled"
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Kind = ErrTimeout
		e.Message = "network timeout"
	default:
		e.Kind = ErrUnreachable
		e.Message = "connection failed"
	}
	return e
}

func malformed(provider Kind, msg string, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Kind: ErrMalformed, Message: msg, Err: err}
}

// isTransient reports whether err is a network failure worth one retry.
// Deadline and cancellation are never transient.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "eof")
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
