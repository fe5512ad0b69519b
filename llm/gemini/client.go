// Package gemini implements the generativelanguage backend adapter. The
// backend diverges from the chat-completions family in three ways this
// package absorbs: the assistant role is called "model", the latest message
// is a current turn distinct from history, and tool calls arrive as one
// complete batch rather than streamed fragments.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/omnillm/omnillm/llm"
)

// DefaultBaseURL is the generativelanguage REST endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultLimits bounds request timeouts for this backend.
var DefaultLimits = llm.TimeoutLimits{
	Min:     llm.DefaultTimeoutLimits.Min,
	Max:     llm.DefaultTimeoutLimits.Max,
	Default: llm.DefaultTimeoutLimits.Default,
}

// Client is the generativelanguage backend adapter.
type Client struct {
	*llm.Base
	apiKey  string
	baseURL string
	http    *http.Client
	cfg     *llm.ProviderConfig
}

var _ llm.Provider = (*Client)(nil)

// Factory is the registry constructor for the gemini adapter.
func Factory(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (llm.Provider, error) {
	return New(cfg, secrets, logger)
}

// New creates the adapter. It fails with a config error when no API key can
// be resolved.
func New(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (*Client, error) {
	apiKey, ok := cfg.ResolveAPIKey(secrets)
	if !ok {
		return nil, llm.NewConfigError(llm.ProviderGemini, "missing API key (set api_key_env or GEMINI_API_KEY)")
	}

	baseURL := DefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	limits := DefaultLimits
	if cfg.Timeouts != nil {
		limits = *cfg.Timeouts
	}

	return &Client{
		Base:    llm.NewBase(llm.ProviderGemini, limits, logger),
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{},
		cfg:     cfg,
	}, nil
}

// GetChatCompletion implements llm.Provider.
func (c *Client) GetChatCompletion(ctx context.Context, messages []llm.ChatMessage, opts *llm.ChatOptions) (llm.Stream, error) {
	timeout, err := c.Preflight(messages, opts)
	if err != nil {
		return nil, err
	}

	req, err := BuildRequest(messages, opts)
	if err != nil {
		return nil, llm.NewToolTransformError(c.Name(), err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, llm.NewToolTransformError(c.Name(), err)
	}

	callCtx, rc := c.Begin(ctx, timeout)

	resp, err := llm.Retry(callCtx, c.Logger(), c.Policy(), func() (*http.Response, error) {
		return c.post(callCtx, c.cfg.Model(opts.Model), body)
	})
	if err != nil {
		err = c.FinishErr(err, rc)
		c.End(rc)
		return nil, err
	}

	return newStream(resp.Body, llm.EstimateMessageTokens(messages), c.Release(rc)), nil
}

// post issues one streamGenerateContent request and maps failure responses
// onto the shared taxonomy. The response body is left open for the caller on
// success.
func (c *Client) post(ctx context.Context, model string, body []byte) (*http.Response, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.baseURL, model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, llm.WrapProviderFailure(c.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, llm.WrapProviderFailure(c.Name(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}

	return resp, nil
}

// statusError decodes the REST error envelope into a provider error,
// preserving any Retry-After hint for the retry policy.
func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	message := http.StatusText(resp.StatusCode)
	var envelope apiError
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	err := llm.NewProviderError(c.Name(), resp.StatusCode, message, nil)
	if seconds, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && seconds > 0 {
		delay := time.Duration(seconds) * time.Second
		err.RetryAfter = &delay
	}
	return err
}
