// Package llm provides a provider-neutral abstraction layer for chat
// completions against structurally different AI backends.
//
// This package defines the common data model, validation helpers, error
// taxonomy, retry policy, and stream abstraction that allow a caller to
// issue one uniform request against multiple providers (OpenAI-compatible,
// Gemini, Mistral, OpenRouter, Anthropic) without being coupled to any
// specific backend's SDK or wire format.
//
// # Core Concepts
//
//  1. Messages: ChatMessage represents a conversation message with a role
//     (system, user, assistant, tool), text content, and tool-call plumbing.
//
//  2. Tools: ToolDefinition describes a callable tool with a JSON-Schema-like
//     parameter schema; ToolCall is the neutral representation of a backend's
//     function-call output.
//
//  3. Provider Contract: the Provider interface exposes one completion
//     operation, GetChatCompletion, which validates inputs before any network
//     I/O, bounds the call with a normalized timeout, retries only safely
//     retryable failures, and returns a canonical Stream of DeltaChunk values.
//
//  4. Streams: Stream is a pull-based, finite, non-restartable sequence.
//     Content chunks arrive in backend order; batched tool calls are emitted
//     as exactly one chunk carrying the complete ordered call list.
//
//  5. Errors: every surfaced failure is an *Error naming the offending
//     provider, with a pre-flight Code (validation, config, tool transform,
//     timeout bounds) or an in-flight Category (network, rate limit, server
//     error, authentication, client error, timeout, unknown) that gates
//     retry eligibility.
//
//  6. Request contexts: each in-flight call is tracked in the adapter's
//     ContextTable under a unique request id; entries are removed
//     unconditionally on every exit path so no timer or cancellation token
//     outlives its call.
//
// Adapters live in the subpackages (openai, gemini, mistral, openrouter,
// anthropic) and compose the shared Base rather than inheriting from it.
// Provider selection is a Registry lookup populated at startup from
// configuration; see the config package for assembly.
package llm
