// Package mistral implements the abort-token backend adapter. The endpoint
// speaks a chat-completions dialect over SSE; cancellation is modeled as a
// cooperative token bridged onto the request context, matching how the
// backend's own clients abort in-flight requests.
package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/omnillm/omnillm/llm"
)

// DefaultBaseURL is the chat-completions endpoint root.
const DefaultBaseURL = "https://api.mistral.ai/v1"

// DefaultLimits bounds request timeouts for this backend.
var DefaultLimits = llm.TimeoutLimits{
	Min:     llm.DefaultTimeoutLimits.Min,
	Max:     llm.DefaultTimeoutLimits.Max,
	Default: llm.DefaultTimeoutLimits.Default,
}

// Client is the abort-token backend adapter.
type Client struct {
	*llm.Base
	apiKey  string
	baseURL string
	http    *http.Client
	cfg     *llm.ProviderConfig
}

var _ llm.Provider = (*Client)(nil)

// Factory is the registry constructor for the mistral adapter.
func Factory(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (llm.Provider, error) {
	return New(cfg, secrets, logger)
}

// New creates the adapter. It fails with a config error when no API key can
// be resolved.
func New(cfg *llm.ProviderConfig, secrets llm.SecretFunc, logger zerolog.Logger) (*Client, error) {
	apiKey, ok := cfg.ResolveAPIKey(secrets)
	if !ok {
		return nil, llm.NewConfigError(llm.ProviderMistral, "missing API key (set api_key_env or MISTRAL_API_KEY)")
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
		Base:    llm.NewBase(llm.ProviderMistral, limits, logger),
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

	req, err := BuildRequest(c.cfg.Model(opts.Model), messages, opts)
	if err != nil {
		return nil, llm.NewToolTransformError(c.Name(), err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, llm.NewToolTransformError(c.Name(), err)
	}

	callCtx, rc := c.Begin(ctx, timeout)

	// Each attempt gets a fresh token so aborting one attempt does not
	// poison its retry. The winning attempt's token and watcher pass to the
	// stream, which cancels both when it finishes.
	conn, err := llm.Retry(callCtx, c.Logger(), c.Policy(), func() (connection, error) {
		token := NewCancellationToken()
		attemptCtx, unbind := token.Bind(callCtx)
		resp, postErr := c.post(attemptCtx, body)
		if postErr != nil {
			unbind()
			return connection{}, postErr
		}
		return connection{resp: resp, token: token, unbind: unbind}, nil
	})
	if err != nil {
		err = c.FinishErr(err, rc)
		c.End(rc)
		return nil, err
	}

	release := c.Release(rc)
	return newStream(conn.resp.Body, conn.token, llm.EstimateMessageTokens(messages), func() {
		conn.token.Cancel()
		conn.unbind()
		release()
	}), nil
}

// connection is one successfully opened streaming response together with its
// abort token.
type connection struct {
	resp   *http.Response
	token  *CancellationToken
	unbind context.CancelFunc
}

// post issues one streaming chat-completions request. The response body is
// left open for the caller on success.
func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, llm.WrapProviderFailure(c.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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

func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	message := http.StatusText(resp.StatusCode)
	var envelope apiError
	if json.Unmarshal(raw, &envelope) == nil && envelope.Message != "" {
		message = envelope.Message
	}

	err := llm.NewProviderError(c.Name(), resp.StatusCode, message, nil)
	if seconds, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && seconds > 0 {
		delay := time.Duration(seconds) * time.Second
		err.RetryAfter = &delay
	}
	return err
}
