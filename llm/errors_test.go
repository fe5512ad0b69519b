package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCategorizeStatusCodes(t *testing.T) {
	cases := []struct {
		status   int
		expected Category
	}{
		{401, CategoryAuthentication},
		{403, CategoryAuthentication},
		{429, CategoryRateLimit},
		{500, CategoryServerError},
		{503, CategoryServerError},
		{400, CategoryClientError},
		{422, CategoryClientError},
	}

	for _, tc := range cases {
		err := NewProviderError("openai", tc.status, "boom", nil)
		if got := Categorize(err); got != tc.expected {
			t.Errorf("status %d: expected category %s, got %s", tc.status, tc.expected, got)
		}
	}
}

func TestCategorizeCancellation(t *testing.T) {
	if got := Categorize(context.DeadlineExceeded); got != CategoryTimeout {
		t.Errorf("Expected timeout category for deadline exceeded, got %s", got)
	}
	if got := Categorize(context.Canceled); got != CategoryTimeout {
		t.Errorf("Expected timeout category for cancellation, got %s", got)
	}
	wrapped := fmt.Errorf("call failed: %w", context.DeadlineExceeded)
	if got := Categorize(wrapped); got != CategoryTimeout {
		t.Errorf("Expected timeout category for wrapped deadline, got %s", got)
	}
}

func TestCategorizeMessagePatterns(t *testing.T) {
	cases := []struct {
		message  string
		expected Category
	}{
		{"Unauthorized: invalid api key", CategoryAuthentication},
		{"too many requests, slow down", CategoryRateLimit},
		{"dial tcp: connection refused", CategoryNetwork},
		{"upstream returned 502 Bad Gateway", CategoryServerError},
		{"something inexplicable", CategoryUnknown},
	}

	for _, tc := range cases {
		if got := Categorize(errors.New(tc.message)); got != tc.expected {
			t.Errorf("%q: expected category %s, got %s", tc.message, tc.expected, got)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	retryable := []Category{CategoryNetwork, CategoryRateLimit, CategoryServerError}
	for _, c := range retryable {
		if !ShouldRetry(c) {
			t.Errorf("Expected category %s to be retryable", c)
		}
	}

	terminal := []Category{CategoryAuthentication, CategoryClientError, CategoryTimeout, CategoryUnknown}
	for _, c := range terminal {
		if ShouldRetry(c) {
			t.Errorf("Expected category %s to be terminal", c)
		}
	}
}

func TestIsPreflightError(t *testing.T) {
	if !IsPreflightError(NewValidationError("openai", "bad input")) {
		t.Error("Expected validation error to be pre-flight")
	}
	if !IsPreflightError(NewConfigError("gemini", "missing key")) {
		t.Error("Expected config error to be pre-flight")
	}
	if IsPreflightError(NewProviderError("openai", 500, "boom", nil)) {
		t.Error("Expected provider error not to be pre-flight")
	}
	if IsPreflightError(errors.New("plain")) {
		t.Error("Expected plain error not to be pre-flight")
	}
}

func TestWrapProviderFailurePassthrough(t *testing.T) {
	original := NewProviderError("mistral", 429, "slow down", nil)
	wrapped := WrapProviderFailure("mistral", original)
	if wrapped != original {
		t.Error("Expected already-qualified error to pass through unchanged")
	}

	plain := errors.New("connection reset by peer")
	qualified := WrapProviderFailure("mistral", plain)
	var llmErr *Error
	if !errors.As(qualified, &llmErr) {
		t.Fatal("Expected wrapped error to be an *Error")
	}
	if llmErr.Provider != "mistral" {
		t.Errorf("Expected provider mistral, got %q", llmErr.Provider)
	}
	if llmErr.Category != CategoryNetwork {
		t.Errorf("Expected network category, got %s", llmErr.Category)
	}
	if !errors.Is(qualified, plain) {
		t.Error("Expected wrapped error to unwrap to the original")
	}
}

func TestRetryAfterOf(t *testing.T) {
	delay := 7 * time.Second
	err := NewProviderError("openai", 429, "rate limited", nil)
	err.RetryAfter = &delay

	extracted := RetryAfterOf(err)
	if extracted == nil {
		t.Fatal("Expected non-nil retry after")
	}
	if *extracted != delay {
		t.Errorf("Expected retry after %v, got %v", delay, *extracted)
	}

	if RetryAfterOf(errors.New("plain")) != nil {
		t.Error("Expected nil retry after for plain error")
	}
}

func TestErrorStringIncludesProviderAndKind(t *testing.T) {
	err := NewTimeoutError("gemini", 1500*time.Millisecond, context.DeadlineExceeded)
	msg := err.Error()
	if msg == "" {
		t.Fatal("Expected non-empty error string")
	}
	if want := "gemini: timeout"; len(msg) < len(want) || msg[:len(want)] != want {
		t.Errorf("Expected error string to start with %q, got %q", want, msg)
	}
}

func TestErrorUnwrap(t *testing.T) {
	original := errors.New("original error")
	wrapped := NewProviderError("openai", 500, "wrapped", original)
	if !errors.Is(wrapped, original) {
		t.Error("Expected error to unwrap to original error")
	}
}
