// Package anthropic implements the messages-API backend adapter. The backend
// streams content as typed block events rather than chat-completion deltas;
// text deltas pass through while tool_use blocks are assembled from partial
// JSON and emitted as one complete batch at message stop.
package anthropic

import (
	"context"
	"errors"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rs/zerolog"

	"github.com/omnillm/omnillm/llm"
)

// defaultMaxTokens caps generation when the caller does not bound it. The
// messages API requires an explicit value.
const defaultMaxTokens = 4096

// DefaultLimits bounds request timeouts for this backend.
var DefaultLimits = llm.TimeoutLimits{
	Min:     llm.DefaultTimeoutLimits.Min,
	Max:     llm.DefaultTimeoutLimits.Max,
	Default: llm.DefaultTimeoutLimits.Default,
}

// Client is the messages-API backend adapter.
type Client struct {
	*llm.Base
	api *anthropic.Client
	cfg *llm.ProviderConfig
}

var _ llm.Provider = (*Client)(nil)

// Factory is the registry constructor for the anthropic adapter.
func Factory(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (llm.Provider, error) {
	return New(cfg, secrets, logger)
}

// New creates the adapter. It fails with a config error when no API key can
// be resolved.
func New(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (*Client, error) {
	apiKey, ok := cfg.ResolveAPIKey(secrets)
	if !ok {
		return nil, llm.NewConfigError(llm.ProviderAnthropic, "missing API key (set api_key_env or ANTHROPIC_API_KEY)")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	api := anthropic.NewClient(opts...)

	limits := DefaultLimits
	if cfg.Timeouts != nil {
		limits = *cfg.Timeouts
	}

	return &Client{
		Base: llm.NewBase(llm.ProviderAnthropic, limits, logger),
		api:  &api,
		cfg:  cfg,
	}, nil
}

// GetChatCompletion implements llm.Provider.
func (c *Client) GetChatCompletion(ctx context.Context, messages []llm.ChatMessage, opts *llm.ChatOptions) (llm.Stream, error) {
	timeout, err := c.Preflight(messages, opts)
	if err != nil {
		return nil, err
	}

	converted, err := ToMessageParams(messages)
	if err != nil {
		return nil, llm.NewToolTransformError(c.Name(), err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model(opts.Model)),
		MaxTokens: defaultMaxTokens,
		Messages:  converted,
		System:    SystemBlocks(messages),
	}
	if tools := ToTools(opts.Tools); len(tools) > 0 {
		params.Tools = tools
		params.ToolChoice = ToToolChoice(opts.ToolChoice)
	}

	callCtx, rc := c.Begin(ctx, timeout)

	native, err := llm.Retry(callCtx, c.Logger(), c.Policy(), func() (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
		s := c.api.Messages.NewStreaming(callCtx, params)
		if openErr := s.Err(); openErr != nil {
			s.Close()
			return nil, convertAPIError(openErr)
		}
		return s, nil
	})
	if err != nil {
		err = c.FinishErr(err, rc)
		c.End(rc)
		return nil, err
	}

	return newStream(native, llm.EstimateMessageTokens(messages), c.Release(rc)), nil
}

// convertAPIError maps SDK errors onto the shared taxonomy.
func convertAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llm.NewProviderError(llm.ProviderAnthropic, apiErr.StatusCode, apiErr.Error(), err)
	}
	return llm.WrapProviderFailure(llm.ProviderAnthropic, err)
}
