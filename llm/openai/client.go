package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/omnillm/omnillm/llm"
)

// Default timeout bounds for the OpenAI-compatible family.
var DefaultLimits = llm.TimeoutLimits{
	Min:     llm.DefaultTimeoutLimits.Min,
	Max:     llm.DefaultTimeoutLimits.Max,
	Default: llm.DefaultTimeoutLimits.Default,
}

// Client is the direct-compatible backend adapter. It speaks the OpenAI
// chat-completions wire format, optionally in Azure deployment mode when the
// configured endpoint matches the Azure pattern (the model identifier is
// replaced by the deployment name and every request carries an api-version
// parameter and an api-key header).
type Client struct {
	*llm.Base
	api *openai.Client
	cfg *llm.ProviderConfig
}

var _ llm.Provider = (*Client)(nil)

// Factory is the registry constructor for the direct-compatible adapter.
func Factory(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (llm.Provider, error) {
	return New(cfg, secrets, logger)
}

// New creates the adapter. It fails with a config error when no API key can
// be resolved from the configuration, environment, or secret store.
func New(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (*Client, error) {
	apiKey, ok := cfg.ResolveAPIKey(secrets)
	if !ok {
		return nil, llm.NewConfigError(llm.ProviderOpenAI, "missing API key (set api_key_env or OPENAI_API_KEY)")
	}

	var clientConfig openai.ClientConfig
	if isAzureEndpoint(cfg) {
		clientConfig = openai.DefaultAzureConfig(apiKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientConfig.APIVersion = cfg.APIVersion
		}
		deployment := cfg.DeploymentName
		clientConfig.AzureModelMapperFunc = func(model string) string {
			if deployment != "" {
				return deployment
			}
			return model
		}
	} else {
		clientConfig = openai.DefaultConfig(apiKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	}

	limits := DefaultLimits
	if cfg.Timeouts != nil {
		limits = *cfg.Timeouts
	}

	return &Client{
		Base: llm.NewBase(llm.ProviderOpenAI, limits, logger),
		api:  openai.NewClientWithConfig(clientConfig),
		cfg:  cfg,
	}, nil
}

// isAzureEndpoint recognizes the alternate deployment addressing scheme: a
// named deployment behind a versioned Azure endpoint.
func isAzureEndpoint(cfg *llm.ProviderConfig) bool {
	return cfg.DeploymentName != "" || strings.Contains(cfg.BaseURL, ".openai.azure.com")
}

// GetChatCompletion implements llm.Provider.
func (c *Client) GetChatCompletion(ctx context.Context, messages []llm.ChatMessage, opts *llm.ChatOptions) (llm.Stream, error) {
	timeout, err := c.Preflight(messages, opts)
	if err != nil {
		return nil, err
	}

	req, err := BuildRequest(c.cfg.Model(opts.Model), messages, opts)
	if err != nil {
		return nil, llm.NewToolTransformError(c.Name(), err)
	}

	callCtx, rc := c.Begin(ctx, timeout)

	native, err := llm.Retry(callCtx, c.Logger(), c.Policy(), func() (*openai.ChatCompletionStream, error) {
		s, callErr := c.api.CreateChatCompletionStream(callCtx, req)
		if callErr != nil {
			return nil, ConvertAPIError(llm.ProviderOpenAI, callErr)
		}
		return s, nil
	})
	if err != nil {
		err = c.FinishErr(err, rc)
		c.End(rc)
		return nil, err
	}

	return newStream(c.Name(), native, llm.EstimateMessageTokens(messages), c.Release(rc)), nil
}

// BuildRequest translates the neutral request into an OpenAI streaming chat
// request. Shared with the OpenRouter adapter, which speaks the same wire
// format.
func BuildRequest(model string, messages []llm.ChatMessage, opts *llm.ChatOptions) (openai.ChatCompletionRequest, error) {
	converted, err := ToChatMessages(messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: converted,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	if tools := ToTools(opts.Tools); len(tools) > 0 {
		req.Tools = tools
		if choice := ToToolChoice(opts.ToolChoice); choice != nil {
			req.ToolChoice = choice
		} else {
			req.ToolChoice = "auto"
		}
	}

	return req, nil
}

// ConvertAPIError maps go-openai errors onto the shared taxonomy, keeping
// the HTTP status for categorization. Shared with the OpenRouter adapter.
func ConvertAPIError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewProviderError(provider, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.NewProviderError(provider, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return llm.WrapProviderFailure(provider, err)
}
