// Package config loads the library's YAML configuration: per-provider
// connection settings, retry tuning, and timeout bounds. Values from the
// config file are merged over built-in defaults; API keys are never stored
// in the file, only environment variable names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/omnillm/omnillm/llm"
)

// ProviderSettings is one provider's record in the config file.
type ProviderSettings struct {
	APIKeyEnv      string   `yaml:"api_key_env,omitempty"`
	BaseURL        string   `yaml:"base_url,omitempty"`
	DeploymentName string   `yaml:"deployment_name,omitempty"` // Azure deployment addressing
	APIVersion     string   `yaml:"api_version,omitempty"`     // Azure api-version parameter
	Models         []string `yaml:"models,omitempty"`
	DefaultModel   string   `yaml:"default_model,omitempty"`
	AppName        string   `yaml:"app_name,omitempty"` // traffic attribution (OpenRouter)
	AppURL         string   `yaml:"app_url,omitempty"`

	Timeout TimeoutSettings `yaml:"timeout,omitempty"`
}

// TimeoutSettings overrides a provider's timeout bounds. Zero fields keep
// the provider defaults.
type TimeoutSettings struct {
	Min     time.Duration `yaml:"min,omitempty"`
	Max     time.Duration `yaml:"max,omitempty"`
	Default time.Duration `yaml:"default,omitempty"`
}

// RetrySettings overrides the shared retry policy. Zero fields keep the
// defaults.
type RetrySettings struct {
	MaxRetries      uint64        `yaml:"max_retries,omitempty"`
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time,omitempty"`
}

// Settings is the full configuration document.
type Settings struct {
	LogFile   string                       `yaml:"log_file,omitempty"`
	Retry     RetrySettings                `yaml:"retry,omitempty"`
	Providers map[string]*ProviderSettings `yaml:"providers,omitempty"`
}

// defaultAPIKeyEnvs names the conventional credential variable for each
// known provider, used when a record does not set api_key_env.
var defaultAPIKeyEnvs = map[string]string{
	llm.ProviderOpenAI:     "OPENAI_API_KEY",
	llm.ProviderGemini:     "GEMINI_API_KEY",
	llm.ProviderMistral:    "MISTRAL_API_KEY",
	llm.ProviderOpenRouter: "OPENROUTER_API_KEY",
	llm.ProviderAnthropic:  "ANTHROPIC_API_KEY",
}

// Defaults returns the built-in configuration: every known provider enabled
// with its conventional credential variable.
func Defaults() *Settings {
	providers := make(map[string]*ProviderSettings, len(defaultAPIKeyEnvs))
	for name, env := range defaultAPIKeyEnvs {
		providers[name] = &ProviderSettings{APIKeyEnv: env}
	}
	return &Settings{Providers: providers}
}

// Path returns the config file path: OMNILLM_CONFIG_PATH if set, otherwise
// ~/.omnillm/config.yaml.
func Path() string {
	if envPath := os.Getenv("OMNILLM_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.omnillm/config.yaml"
	}
	return filepath.Join(homeDir, ".omnillm", "config.yaml")
}

// Load reads the config file at path and merges it over the defaults. A
// missing file yields the defaults. A .env file in the working directory is
// loaded best-effort first so api_key_env lookups can see it.
func Load(path string) (*Settings, error) {
	_ = godotenv.Load()

	defaults := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err != nil {
		return defaults, nil
	}

	raw, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
	}

	var loaded Settings
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := mergo.Merge(defaults, loaded, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	for name, p := range defaults.Providers {
		if p == nil {
			defaults.Providers[name] = &ProviderSettings{APIKeyEnv: defaultAPIKeyEnvs[name]}
		} else if p.APIKeyEnv == "" {
			p.APIKeyEnv = defaultAPIKeyEnvs[name]
		}
	}

	return defaults, nil
}

// Save writes the configuration to path, creating parent directories as
// needed.
func Save(cfg *Settings, path string) error {
	expandedPath := expandPath(path)

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ProviderConfig converts one provider's record into the runtime form.
func (s *Settings) ProviderConfig(name string) *llm.ProviderConfig {
	p := s.Providers[name]
	if p == nil {
		p = &ProviderSettings{APIKeyEnv: defaultAPIKeyEnvs[name]}
	}

	cfg := &llm.ProviderConfig{
		APIKeyEnv:      p.APIKeyEnv,
		BaseURL:        p.BaseURL,
		DeploymentName: p.DeploymentName,
		APIVersion:     p.APIVersion,
		Models:         p.Models,
		DefaultModel:   p.DefaultModel,
		AppName:        p.AppName,
		AppURL:         p.AppURL,
	}

	if p.Timeout != (TimeoutSettings{}) {
		limits := llm.DefaultTimeoutLimits
		if p.Timeout.Min > 0 {
			limits.Min = p.Timeout.Min
		}
		if p.Timeout.Max > 0 {
			limits.Max = p.Timeout.Max
		}
		if p.Timeout.Default > 0 {
			limits.Default = p.Timeout.Default
		}
		cfg.Timeouts = &limits
	}

	return cfg
}

// RetryPolicy converts the retry record into the runtime form.
func (s *Settings) RetryPolicy() llm.RetryPolicy {
	policy := llm.DefaultRetryPolicy()
	if s.Retry.MaxRetries > 0 {
		policy.MaxRetries = s.Retry.MaxRetries
	}
	if s.Retry.InitialInterval > 0 {
		policy.InitialInterval = s.Retry.InitialInterval
	}
	if s.Retry.MaxInterval > 0 {
		policy.MaxInterval = s.Retry.MaxInterval
	}
	if s.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = s.Retry.MaxElapsedTime
	}
	return policy
}

// EnvSecrets is the default secret source: plain environment lookup.
func EnvSecrets(name string) (string, bool) {
	value := os.Getenv(name)
	return value, value != ""
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
