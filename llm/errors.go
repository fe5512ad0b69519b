package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Category classifies an in-flight failure for retry gating.
type Category string

const (
	CategoryNetwork        Category = "network"
	CategoryRateLimit      Category = "rate_limit"
	CategoryServerError    Category = "server_error"
	CategoryAuthentication Category = "authentication"
	CategoryClientError    Category = "client_error"
	CategoryTimeout        Category = "timeout"
	CategoryUnknown        Category = "unknown"
)

// Code identifies a pre-flight failure that never reaches the network.
type Code string

const (
	CodeValidation      Code = "validation_error"
	CodeConfig          Code = "config_error"
	CodeToolTransform   Code = "tool_transform_error"
	CodeTimeoutConfig   Code = "timeout_config_error"
	CodeInvalidTimeout  Code = "invalid_timeout"
	CodeTimeoutTooShort Code = "timeout_too_short"
	CodeTimeoutTooLong  Code = "timeout_too_long"
)

// Error is the provider-qualified error surfaced by every adapter. Exactly
// one of Code (pre-flight) or Category (in-flight) is set.
type Error struct {
	Provider   string
	Code       Code
	Category   Category
	Message    string
	StatusCode int
	RetryAfter *time.Duration
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	kind := string(e.Code)
	if kind == "" {
		kind = string(e.Category)
	}
	msg := e.Message
	if e.Provider != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Provider, kind, e.Message)
	} else if kind != "" {
		msg = fmt.Sprintf("%s: %s", kind, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a provider-qualified validation error.
// Validation errors are surfaced before any network call is made.
func NewValidationError(provider, message string) *Error {
	return &Error{Provider: provider, Code: CodeValidation, Message: message}
}

// NewConfigError creates a provider-qualified configuration error, used when
// required credentials or endpoint settings are absent.
func NewConfigError(provider, message string) *Error {
	return &Error{Provider: provider, Code: CodeConfig, Message: message}
}

// NewToolTransformError wraps a failure to translate tool definitions or
// tool calls to a backend's native shape.
func NewToolTransformError(provider string, err error) *Error {
	return &Error{Provider: provider, Code: CodeToolTransform, Message: "tool translation failed", Err: err}
}

// NewTimeoutConfigError wraps a timeout-bound normalization failure.
func NewTimeoutConfigError(provider string, err error) *Error {
	return &Error{Provider: provider, Code: CodeTimeoutConfig, Message: "invalid timeout configuration", Err: err}
}

// NewTimeoutError creates the timeout-category error surfaced when the
// request deadline fires or the call is cancelled mid-flight.
func NewTimeoutError(provider string, elapsed time.Duration, err error) *Error {
	return &Error{
		Provider: provider,
		Category: CategoryTimeout,
		Message:  fmt.Sprintf("request timed out after %s", elapsed.Round(time.Millisecond)),
		Err:      err,
	}
}

// NewProviderError creates an in-flight error categorized from the HTTP
// status code the backend returned.
func NewProviderError(provider string, statusCode int, message string, err error) *Error {
	return &Error{
		Provider:   provider,
		Category:   categoryFromStatus(statusCode),
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// WrapProviderFailure qualifies an in-flight backend failure with the
// provider name and its derived category. Errors that are already qualified
// pass through unchanged so the originating category is preserved.
func WrapProviderFailure(provider string, err error) error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}
	return &Error{
		Provider: provider,
		Category: Categorize(err),
		Message:  "backend call failed",
		Err:      err,
	}
}

// IsPreflightError reports whether err is a pre-flight failure (validation,
// config, tool transform, or timeout bounds) that must never be retried.
func IsPreflightError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Code != ""
	}
	return false
}

// Categorize classifies any failure into one of the fixed categories. It
// inspects, in order: explicit cancellation signals, an already-categorized
// *Error, the HTTP status code, connection-level failures, and finally
// message patterns.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTimeout
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		if llmErr.Category != "" {
			return llmErr.Category
		}
		if llmErr.StatusCode != 0 {
			return categoryFromStatus(llmErr.StatusCode)
		}
		// Pre-flight errors never reach the network; treat them as
		// client errors for categorization purposes.
		if llmErr.Code != "" {
			return CategoryClientError
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}

	return categoryFromMessage(err.Error())
}

// ShouldRetry reports whether a failure of the given category is safe to
// retry with backoff. Timeout and unknown failures are not retried.
func ShouldRetry(category Category) bool {
	switch category {
	case CategoryNetwork, CategoryRateLimit, CategoryServerError:
		return true
	default:
		return false
	}
}

// RetryAfterOf extracts a backend-suggested retry delay, if any.
func RetryAfterOf(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

func categoryFromStatus(statusCode int) Category {
	switch {
	case statusCode == 401 || statusCode == 403:
		return CategoryAuthentication
	case statusCode == 429:
		return CategoryRateLimit
	case statusCode >= 500:
		return CategoryServerError
	case statusCode >= 400:
		return CategoryClientError
	default:
		return CategoryUnknown
	}
}

// categoryFromMessage falls back to pattern matching for errors that arrive
// without a status code or typed cause (mirrors how untyped SDK errors leak
// out of some backend clients).
func categoryFromMessage(msg string) Category {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "401"),
		strings.Contains(lower, "403"):
		return CategoryAuthentication
	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "rate_limit"),
		strings.Contains(lower, "too many requests"),
		strings.Contains(lower, "429"):
		return CategoryRateLimit
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "deadline exceeded"),
		strings.Contains(lower, "aborted"):
		return CategoryTimeout
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "broken pipe"),
		strings.Contains(lower, "unexpected eof"):
		return CategoryNetwork
	case strings.Contains(lower, "internal server error"),
		strings.Contains(lower, "bad gateway"),
		strings.Contains(lower, "service unavailable"),
		strings.Contains(lower, "500"),
		strings.Contains(lower, "502"),
		strings.Contains(lower, "503"):
		return CategoryServerError
	default:
		return CategoryUnknown
	}
}
