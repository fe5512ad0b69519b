package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/omnillm/omnillm/llm"
)

func fastPolicy() llm.RetryPolicy {
	policy := llm.DefaultRetryPolicy()
	policy.InitialInterval = time.Millisecond
	policy.MaxInterval = 5 * time.Millisecond
	policy.MaxElapsedTime = time.Second
	return policy
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(&llm.ProviderConfig{APIKey: "test-key", BaseURL: baseURL}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	client.SetPolicy(fastPolicy())
	return client
}

func writeSSE(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, event := range events {
		fmt.Fprintf(w, "data: %s\n\n", event)
	}
}

func userSays(text string) []llm.ChatMessage {
	return []llm.ChatMessage{{Role: llm.RoleUser, Content: text}}
}

func TestCumulativeTextBecomesDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("x-goog-api-key"))
		}
		writeSSE(w,
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]}`,
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello wor"}]}}]}`,
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello world"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":3,"totalTokenCount":7}}`,
		)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	stream, err := client.GetChatCompletion(context.Background(), userSays("hi"), &llm.ChatOptions{Model: "gemini-pro"})
	if err != nil {
		t.Fatalf("GetChatCompletion failed: %v", err)
	}

	var deltas []string
	for stream.Next() {
		deltas = append(deltas, stream.Chunk().Content())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if len(deltas) != 3 {
		t.Fatalf("Expected 3 deltas, got %d: %v", len(deltas), deltas)
	}
	if deltas[0]+deltas[1]+deltas[2] != "Hello world" {
		t.Errorf("Expected deltas to reassemble the full text, got %v", deltas)
	}

	usage := stream.Usage()
	if usage.InputTokens != 4 || usage.OutputTokens != 3 {
		t.Errorf("Expected exact usage 4/3, got %d/%d", usage.InputTokens, usage.OutputTokens)
	}
	if client.Contexts().Len() != 0 {
		t.Errorf("Expected empty tracking table after stream, got %d", client.Contexts().Len())
	}
}

func TestBatchedFunctionCallsShortCircuitContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"get_weather","args":{"city":"Oslo"}}},{"functionCall":{"name":"get_time","args":{}}}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":6,"candidatesTokenCount":2,"totalTokenCount":8}}`,
		)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	stream, err := client.GetChatCompletion(context.Background(), userSays("weather?"), &llm.ChatOptions{Model: "gemini-pro"})
	if err != nil {
		t.Fatalf("GetChatCompletion failed: %v", err)
	}

	chunks, err := llm.Collect(stream)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected exactly one batched chunk, got %d", len(chunks))
	}

	calls := chunks[0].ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(calls))
	}
	if calls[0].ID != "get_weather" || calls[1].ID != "get_time" {
		t.Errorf("Expected function names as ids, got %q, %q", calls[0].ID, calls[1].ID)
	}
	if calls[0].Index != 0 || calls[1].Index != 1 {
		t.Errorf("Expected ordered indexes, got %d, %d", calls[0].Index, calls[1].Index)
	}
	if client.Contexts().Len() != 0 {
		t.Errorf("Expected empty tracking table after stream, got %d", client.Contexts().Len())
	}
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
			return
		}
		writeSSE(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]}}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	stream, err := client.GetChatCompletion(context.Background(), userSays("hi"), &llm.ChatOptions{Model: "gemini-pro"})
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	chunks, err := llm.Collect(stream)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content() != "ok" {
		t.Errorf("Unexpected chunks: %+v", chunks)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected exactly 2 attempts, got %d", calls.Load())
	}
}

func TestClientErrorIsTerminal(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"invalid argument","status":"INVALID_ARGUMENT"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GetChatCompletion(context.Background(), userSays("hi"), &llm.ChatOptions{Model: "gemini-pro"})
	var llmErr *llm.Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("Expected *llm.Error, got %v", err)
	}
	if llmErr.Category != llm.CategoryClientError {
		t.Errorf("Expected client error category, got %s", llmErr.Category)
	}
	if llmErr.Message != "invalid argument" {
		t.Errorf("Expected backend message surfaced, got %q", llmErr.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", calls.Load())
	}
	if client.Contexts().Len() != 0 {
		t.Errorf("Expected empty tracking table after failure, got %d", client.Contexts().Len())
	}
}

func TestValidationFailureMakesNoNetworkCall(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GetChatCompletion(context.Background(), []llm.ChatMessage{{Role: llm.RoleAssistant}}, &llm.ChatOptions{Model: "gemini-pro"})
	var llmErr *llm.Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("Expected *llm.Error, got %v", err)
	}
	if llmErr.Code != llm.CodeValidation {
		t.Errorf("Expected validation code, got %s", llmErr.Code)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected no network call, got %d", calls.Load())
	}
}
