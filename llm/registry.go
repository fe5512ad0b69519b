package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Canonical provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderMistral    = "mistral"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

// Factory constructs an adapter from its resolved configuration. Factories
// fail with a config error when required credentials or endpoint settings
// are absent.
type Factory func(cfg *ProviderConfig, secrets SecretFunc, logger zerolog.Logger) (Provider, error)

// Registry maps provider names to adapter factories. Backend selection is a
// tagged lookup populated at startup from configuration, not dynamic type
// resolution.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	secrets   SecretFunc
	logger    zerolog.Logger
}

// NewRegistry creates an empty registry. The secret resolver may be nil when
// all credentials come from the environment.
func NewRegistry(secrets SecretFunc, logger zerolog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		secrets:   secrets,
		logger:    logger,
	}
}

// Register binds a provider name to its adapter factory. Registering a name
// twice replaces the earlier factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Has reports whether a factory is registered under the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Providers returns the registered provider names in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := lo.Keys(r.factories)
	sort.Strings(names)
	return names
}

// New constructs the adapter registered under name with the given
// configuration. Unknown names fail with a config error listing the
// registered providers.
func (r *Registry) New(name string, cfg *ProviderConfig) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, NewConfigError(name, fmt.Sprintf("unknown provider (registered: %v)", r.Providers()))
	}
	if cfg == nil {
		cfg = &ProviderConfig{}
	}
	return factory(cfg, r.secrets, r.logger)
}
