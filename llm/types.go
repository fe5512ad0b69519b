package llm

import (
	"context"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage is the provider-neutral representation of a single message in
// a conversation. Adapters translate it to and from each backend's native
// message shape.
//
// Invariants (enforced by ValidateMessages):
//   - Role is always non-empty and one of the Role constants.
//   - A tool message carries ToolCallID, Name, and Content.
//   - An assistant message carries Content or a non-empty ToolCalls slice.
type ChatMessage struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a structured function-invocation request emitted by a backend.
// ID is the backend-assigned call identifier where the backend provides one.
// Backends without call-scoped identifiers fall back to the function name,
// which is lossy when one response calls the same function twice; that
// limitation matches the backends' own behavior and is kept as-is.
type ToolCall struct {
	Index    int          `json:"index"`
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
// Arguments is serialized exactly once by the adapter that produced it.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallTypeFunction is the only tool-call type the backends emit today.
const ToolCallTypeFunction = "function"

// ToolHandler is the caller-supplied implementation of a tool. The core
// never invokes handlers; they ride along on ToolDefinition so callers can
// dispatch tool calls themselves.
type ToolHandler func(ctx context.Context, input map[string]interface{}) (string, error)

// ToolDefinition is a provider-neutral tool definition. It is owned by the
// caller, passed by reference into a request, and never mutated by the core.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      ToolSchema
	Handler     ToolHandler
}

// ToolSchema is the JSON-Schema-like description of a tool's parameters.
type ToolSchema struct {
	Type        string
	Properties  map[string]interface{}
	Required    []string
	ExtraFields map[string]interface{}
}

// AsMap flattens the schema into the generic JSON-schema object shape the
// backends expect for function parameters.
func (s ToolSchema) AsMap() map[string]interface{} {
	schema := map[string]interface{}{
		"type": s.Type,
	}
	if s.Type == "" {
		schema["type"] = "object"
	}
	properties := make(map[string]interface{}, len(s.Properties))
	for k, v := range s.Properties {
		properties[k] = v
	}
	schema["properties"] = properties
	if len(s.Required) > 0 {
		schema["required"] = s.Required
	}
	for k, v := range s.ExtraFields {
		schema[k] = v
	}
	return schema
}

// ToolChoiceMode enumerates the request's tool-selection policies.
type ToolChoiceMode string

const (
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceFunction ToolChoiceMode = "function"
)

// ToolChoice selects how the backend may use the supplied tools. Name is
// required when Mode is ToolChoiceFunction and ignored otherwise.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// ChatOptions carries the per-request options for GetChatCompletion.
// Timeout of zero means "not specified" and resolves to the provider's
// default bound.
type ChatOptions struct {
	Model      string
	Tools      []ToolDefinition
	ToolChoice *ToolChoice
	Timeout    time.Duration
}

// Delta is the incremental payload of one canonical chunk.
type Delta struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// DeltaChoice wraps a Delta; the slice mirrors the wire shape callers
// already consume from OpenAI-style APIs.
type DeltaChoice struct {
	Delta Delta `json:"delta"`
}

// DeltaChunk is the canonical unit of the normalized output stream. A
// completed response is exactly one of: a finite sequence of content-only
// chunks, or a single chunk carrying the complete tool_calls array.
type DeltaChunk struct {
	Choices []DeltaChoice `json:"choices"`
}

// NewContentChunk builds a chunk carrying a content delta.
func NewContentChunk(text string) *DeltaChunk {
	return &DeltaChunk{Choices: []DeltaChoice{{Delta: Delta{Content: text}}}}
}

// NewToolCallChunk builds the single chunk carrying a complete, ordered
// tool-call batch.
func NewToolCallChunk(calls []ToolCall) *DeltaChunk {
	return &DeltaChunk{Choices: []DeltaChoice{{Delta: Delta{ToolCalls: calls}}}}
}

// Content returns the concatenated content of all choices in the chunk.
func (c *DeltaChunk) Content() string {
	var out string
	for _, choice := range c.Choices {
		out += choice.Delta.Content
	}
	return out
}

// ToolCalls returns the tool calls carried by the chunk, if any.
func (c *DeltaChunk) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, choice := range c.Choices {
		calls = append(calls, choice.Delta.ToolCalls...)
	}
	return calls
}

// Usage reports token consumption for one completion. InputTokens is
// estimated before the call and replaced by the backend's exact counter
// where one is reported; OutputTokens accumulates as the stream is consumed.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}
