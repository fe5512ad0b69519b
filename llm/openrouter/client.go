// Package openrouter implements the compatible-with-retry backend adapter.
// OpenRouter speaks the OpenAI chat-completions wire format against its own
// endpoint and attributes traffic through two extra request headers, so this
// adapter reuses the openai package's conversions and stream normalization
// wholesale and only swaps the transport.
package openrouter

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/omnillm/omnillm/llm"
	"github.com/omnillm/omnillm/llm/openai"
)

// DefaultBaseURL is OpenRouter's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// DefaultLimits mirrors the OpenAI family bounds; OpenRouter fronts many
// slow models, so the ceiling stays generous.
var DefaultLimits = llm.TimeoutLimits{
	Min:     llm.DefaultTimeoutLimits.Min,
	Max:     llm.DefaultTimeoutLimits.Max,
	Default: llm.DefaultTimeoutLimits.Default,
}

// Client is the OpenRouter backend adapter.
type Client struct {
	*llm.Base
	api *goopenai.Client
	cfg *llm.ProviderConfig
}

var _ llm.Provider = (*Client)(nil)

// Factory is the registry constructor for the OpenRouter adapter.
func Factory(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (llm.Provider, error) {
	return New(cfg, secrets, logger)
}

// New creates the adapter. It fails with a config error when no API key can
// be resolved.
func New(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (*Client, error) {
	apiKey, ok := cfg.ResolveAPIKey(secrets)
	if !ok {
		return nil, llm.NewConfigError(llm.ProviderOpenRouter, "missing API key (set api_key_env or OPENROUTER_API_KEY)")
	}

	clientConfig := goopenai.DefaultConfig(apiKey)
	clientConfig.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &attributionTransport{
			appURL:  cfg.AppURL,
			appName: cfg.AppName,
			next:    http.DefaultTransport,
		},
	}

	limits := DefaultLimits
	if cfg.Timeouts != nil {
		limits = *cfg.Timeouts
	}

	return &Client{
		Base: llm.NewBase(llm.ProviderOpenRouter, limits, logger),
		api:  goopenai.NewClientWithConfig(clientConfig),
		cfg:  cfg,
	}, nil
}

// attributionTransport attaches OpenRouter's attribution headers to every
// request.
type attributionTransport struct {
	appURL  string
	appName string
	next    http.RoundTripper
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	if t.appURL != "" {
		cloned.Header.Set("HTTP-Referer", t.appURL)
	}
	if t.appName != "" {
		cloned.Header.Set("X-Title", t.appName)
	}
	return t.next.RoundTrip(cloned)
}

// GetChatCompletion implements llm.Provider.
func (c *Client) GetChatCompletion(ctx context.Context, messages []llm.ChatMessage, opts *llm.ChatOptions) (llm.Stream, error) {
	timeout, err := c.Preflight(messages, opts)
	if err != nil {
		return nil, err
	}

	req, err := openai.BuildRequest(c.cfg.Model(opts.Model), messages, opts)
	if err != nil {
		return nil, llm.NewToolTransformError(c.Name(), err)
	}

	callCtx, rc := c.Begin(ctx, timeout)

	native, err := llm.Retry(callCtx, c.Logger(), c.Policy(), func() (*goopenai.ChatCompletionStream, error) {
		s, callErr := c.api.CreateChatCompletionStream(callCtx, req)
		if callErr != nil {
			return nil, openai.ConvertAPIError(llm.ProviderOpenRouter, callErr)
		}
		return s, nil
	})
	if err != nil {
		err = c.FinishErr(err, rc)
		c.End(rc)
		return nil, err
	}

	return openai.NewStream(c.Name(), native, llm.EstimateMessageTokens(messages), c.Release(rc)), nil
}
