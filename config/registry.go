package config

import (
	"github.com/rs/zerolog"

	"github.com/omnillm/omnillm/llm"
	"github.com/omnillm/omnillm/llm/anthropic"
	"github.com/omnillm/omnillm/llm/gemini"
	"github.com/omnillm/omnillm/llm/mistral"
	"github.com/omnillm/omnillm/llm/openai"
	"github.com/omnillm/omnillm/llm/openrouter"
)

// NewRegistry returns a registry with every built-in adapter registered,
// resolving credentials from the environment.
func NewRegistry(logger zerolog.Logger) *llm.Registry {
	r := llm.NewRegistry(EnvSecrets, logger)
	r.Register(llm.ProviderOpenAI, openai.Factory)
	r.Register(llm.ProviderGemini, gemini.Factory)
	r.Register(llm.ProviderMistral, mistral.Factory)
	r.Register(llm.ProviderOpenRouter, openrouter.Factory)
	r.Register(llm.ProviderAnthropic, anthropic.Factory)
	return r
}

// BuildProvider constructs the named provider from these settings and
// applies the shared retry policy.
func (s *Settings) BuildProvider(registry *llm.Registry, name string) (llm.Provider, error) {
	provider, err := registry.New(name, s.ProviderConfig(name))
	if err != nil {
		return nil, err
	}
	if tunable, ok := provider.(interface{ SetPolicy(llm.RetryPolicy) }); ok {
		tunable.SetPolicy(s.RetryPolicy())
	}
	return provider, nil
}

// BuildProviders constructs every provider named in the settings. Providers
// whose credentials are absent are skipped; the error of the first other
// failure is returned.
func (s *Settings) BuildProviders(registry *llm.Registry) (map[string]llm.Provider, error) {
	providers := make(map[string]llm.Provider, len(s.Providers))
	for name := range s.Providers {
		provider, err := s.BuildProvider(registry, name)
		if err != nil {
			if llmErr, ok := err.(*llm.Error); ok && llmErr.Code == llm.CodeConfig {
				continue
			}
			return nil, err
		}
		providers[name] = provider
	}
	return providers, nil
}
