package llm

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Provider is the single contract every backend adapter implements.
type Provider interface {
	// Name returns the provider key the adapter was registered under.
	Name() string

	// GetChatCompletion validates the request, issues the backend call
	// under the timeout and retry policies, and returns the normalized
	// delta-chunk stream. No network call is made when validation fails.
	GetChatCompletion(ctx context.Context, messages []ChatMessage, opts *ChatOptions) (Stream, error)

	// Cleanup releases any live timers and cancellation tokens held by
	// the instance. Idempotent.
	Cleanup() error
}

// SecretFunc resolves a credential that is not already present in the
// process environment. A false return means the secret is absent.
type SecretFunc func(key string) (string, bool)

// ProviderConfig is the resolved configuration record an adapter is
// constructed from. It is supplied by the configuration collaborator and
// treated as read-only by the core.
type ProviderConfig struct {
	APIKey         string
	APIKeyEnv      string
	BaseURL        string
	DeploymentName string
	APIVersion     string
	Models         []string
	DefaultModel   string

	// AppName and AppURL identify the calling application to backends
	// that attribute traffic (OpenRouter).
	AppName string
	AppURL  string

	// Timeouts overrides the provider's default timeout bounds.
	Timeouts *TimeoutLimits
}

// ResolveAPIKey resolves the credential for this provider: an explicit key
// wins, then the named environment variable, then the secret store.
func (c *ProviderConfig) ResolveAPIKey(secrets SecretFunc) (string, bool) {
	if c.APIKey != "" {
		return c.APIKey, true
	}
	if c.APIKeyEnv == "" {
		return "", false
	}
	if v := os.Getenv(c.APIKeyEnv); v != "" {
		return v, true
	}
	if secrets != nil {
		if v, ok := secrets(c.APIKeyEnv); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Model resolves the request model against the configured default.
func (c *ProviderConfig) Model(requested string) string {
	if requested != "" {
		return requested
	}
	return c.DefaultModel
}

// Base carries the shared construction and validation surface the adapters
// compose instead of inheriting: provider name, contextual logger, timeout
// bounds, retry policy, and the per-instance request-context table.
type Base struct {
	name     string
	logger   zerolog.Logger
	limits   TimeoutLimits
	policy   RetryPolicy
	contexts *ContextTable
}

// NewBase creates the shared adapter state for the named provider.
func NewBase(name string, limits TimeoutLimits, logger zerolog.Logger) *Base {
	if limits == (TimeoutLimits{}) {
		limits = DefaultTimeoutLimits
	}
	return &Base{
		name:     name,
		logger:   logger.With().Str("provider", name).Logger(),
		limits:   limits,
		policy:   DefaultRetryPolicy(),
		contexts: NewContextTable(),
	}
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// Logger returns the provider-scoped logger.
func (b *Base) Logger() zerolog.Logger { return b.logger }

// Limits returns the timeout bounds applied to requests.
func (b *Base) Limits() TimeoutLimits { return b.limits }

// Policy returns the retry policy applied to backend calls.
func (b *Base) Policy() RetryPolicy { return b.policy }

// SetPolicy replaces the retry policy. Intended for construction time and
// tests; calls in flight keep the policy they started with.
func (b *Base) SetPolicy(policy RetryPolicy) { b.policy = policy }

// Contexts exposes the request-context tracking table.
func (b *Base) Contexts() *ContextTable { return b.contexts }

// Preflight runs the shared validation sequence: message invariants, option
// invariants, then timeout normalization. It returns the bounded timeout to
// apply. All failures are provider-qualified and happen before any network
// I/O.
func (b *Base) Preflight(messages []ChatMessage, opts *ChatOptions) (time.Duration, error) {
	if err := ValidateMessages(messages); err != nil {
		return 0, QualifyError(err, b.name)
	}
	if err := ValidateOptions(opts); err != nil {
		return 0, QualifyError(err, b.name)
	}
	timeout, err := ValidateTimeout(opts.Timeout, b.limits)
	if err != nil {
		return 0, NewTimeoutConfigError(b.name, err)
	}
	return timeout, nil
}

// Begin allocates and tracks the per-call request context.
func (b *Base) Begin(ctx context.Context, timeout time.Duration) (context.Context, *RequestContext) {
	bounded, rc := b.contexts.Begin(ctx, timeout)
	b.logger.Debug().Str("request_id", rc.ID).Dur("timeout", timeout).Msg("Request context allocated")
	return bounded, rc
}

// End releases the per-call request context. Idempotent; every path out of
// a call must reach it.
func (b *Base) End(rc *RequestContext) {
	b.contexts.Release(rc.ID)
}

// Release returns a ReleaseFunc bound to the given request context, for
// handing ownership of the context entry to a returned stream.
func (b *Base) Release(rc *RequestContext) ReleaseFunc {
	return func() { b.End(rc) }
}

// FinishErr converts a failed call's error into the surfaced form: deadline
// or cancellation becomes a timeout-category error, anything else is passed
// through unchanged (already provider-qualified by the backend client).
func (b *Base) FinishErr(err error, rc *RequestContext) error {
	if err == nil {
		return nil
	}
	if Categorize(err) == CategoryTimeout {
		return NewTimeoutError(b.name, rc.Elapsed(), err)
	}
	return err
}

// Cleanup releases every live request context. Safe to call multiple times.
func (b *Base) Cleanup() error {
	b.contexts.ReleaseAll()
	return nil
}
