package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/omnillm/omnillm/llm"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for name, env := range defaultAPIKeyEnvs {
		record := settings.Providers[name]
		if record == nil {
			t.Fatalf("Expected default record for %s", name)
		}
		if record.APIKeyEnv != env {
			t.Errorf("Expected %s api_key_env %s, got %s", name, env, record.APIKeyEnv)
		}
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log_file: /tmp/test.log
retry:
  max_retries: 5
  initial_interval: 100ms
providers:
  openai:
    base_url: https://acme.openai.azure.com
    deployment_name: gpt4-prod
    api_version: 2024-02-01
    default_model: gpt-4o
    timeout:
      min: 10ms
      max: 5m
      default: 90s
  openrouter:
    app_name: acme-app
    app_url: https://acme.example
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if settings.LogFile != "/tmp/test.log" {
		t.Errorf("Expected log file merged, got %q", settings.LogFile)
	}

	openaiCfg := settings.ProviderConfig(llm.ProviderOpenAI)
	if openaiCfg.DeploymentName != "gpt4-prod" || openaiCfg.APIVersion != "2024-02-01" {
		t.Errorf("Expected Azure settings carried through, got %+v", openaiCfg)
	}
	if openaiCfg.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("Expected default api_key_env preserved, got %q", openaiCfg.APIKeyEnv)
	}
	if openaiCfg.Timeouts == nil {
		t.Fatal("Expected timeout overrides")
	}
	if openaiCfg.Timeouts.Min != 10*time.Millisecond || openaiCfg.Timeouts.Max != 5*time.Minute || openaiCfg.Timeouts.Default != 90*time.Second {
		t.Errorf("Unexpected timeout bounds: %+v", openaiCfg.Timeouts)
	}

	routerCfg := settings.ProviderConfig(llm.ProviderOpenRouter)
	if routerCfg.AppName != "acme-app" || routerCfg.AppURL != "https://acme.example" {
		t.Errorf("Expected attribution settings, got %+v", routerCfg)
	}

	// Untouched providers keep their defaults.
	geminiCfg := settings.ProviderConfig(llm.ProviderGemini)
	if geminiCfg.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("Expected gemini default env, got %q", geminiCfg.APIKeyEnv)
	}
	if geminiCfg.Timeouts != nil {
		t.Errorf("Expected no timeout overrides for gemini, got %+v", geminiCfg.Timeouts)
	}
}

func TestRetryPolicyOverrides(t *testing.T) {
	settings := &Settings{Retry: RetrySettings{
		MaxRetries:      5,
		InitialInterval: 100 * time.Millisecond,
	}}

	policy := settings.RetryPolicy()
	if policy.MaxRetries != 5 {
		t.Errorf("Expected max retries 5, got %d", policy.MaxRetries)
	}
	if policy.InitialInterval != 100*time.Millisecond {
		t.Errorf("Expected initial interval 100ms, got %v", policy.InitialInterval)
	}
	if policy.MaxInterval != llm.DefaultMaxInterval {
		t.Errorf("Expected default max interval, got %v", policy.MaxInterval)
	}
	if policy.Multiplier != llm.DefaultMultiplier {
		t.Errorf("Expected default multiplier, got %v", policy.Multiplier)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	original := Defaults()
	original.LogFile = "custom.log"
	original.Providers[llm.ProviderOpenAI].DefaultModel = "gpt-4o"

	if err := Save(original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LogFile != "custom.log" {
		t.Errorf("Expected log file round trip, got %q", loaded.LogFile)
	}
	if loaded.Providers[llm.ProviderOpenAI].DefaultModel != "gpt-4o" {
		t.Errorf("Expected model round trip, got %q", loaded.Providers[llm.ProviderOpenAI].DefaultModel)
	}
}

func TestEnvSecrets(t *testing.T) {
	t.Setenv("OMNILLM_TEST_SECRET", "s3cret")
	value, ok := EnvSecrets("OMNILLM_TEST_SECRET")
	if !ok || value != "s3cret" {
		t.Errorf("Expected secret lookup to succeed, got %q, %v", value, ok)
	}
	if _, ok := EnvSecrets("OMNILLM_TEST_MISSING"); ok {
		t.Error("Expected missing secret to report absent")
	}
}

func TestNewRegistryRegistersAllProviders(t *testing.T) {
	registry := NewRegistry(testLogger())
	expected := []string{
		llm.ProviderAnthropic,
		llm.ProviderGemini,
		llm.ProviderMistral,
		llm.ProviderOpenAI,
		llm.ProviderOpenRouter,
	}
	names := registry.Providers()
	if len(names) != len(expected) {
		t.Fatalf("Expected %d providers, got %v", len(expected), names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("Expected %q at position %d, got %q", expected[i], i, names[i])
		}
	}
}

func TestBuildProvidersSkipsMissingCredentials(t *testing.T) {
	for _, env := range defaultAPIKeyEnvs {
		t.Setenv(env, "")
	}
	t.Setenv("OPENAI_API_KEY", "test-key")

	settings := Defaults()
	providers, err := settings.BuildProviders(NewRegistry(testLogger()))
	if err != nil {
		t.Fatalf("BuildProviders failed: %v", err)
	}
	if len(providers) != 1 {
		t.Fatalf("Expected only the credentialed provider, got %v", providers)
	}
	if _, ok := providers[llm.ProviderOpenAI]; !ok {
		t.Error("Expected openai provider to be built")
	}
}
