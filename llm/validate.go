package llm

import (
	"fmt"
	"time"
)

// TimeoutLimits are the per-provider bounds applied to a caller-supplied
// request timeout.
type TimeoutLimits struct {
	Min     time.Duration
	Max     time.Duration
	Default time.Duration
}

// DefaultTimeoutLimits are used when a provider does not configure its own
// bounds.
var DefaultTimeoutLimits = TimeoutLimits{
	Min:     1 * time.Millisecond,
	Max:     10 * time.Minute,
	Default: 2 * time.Minute,
}

// ValidateTimeout normalizes a caller-supplied timeout into the given
// bounds. A zero requested value means "not specified" and yields the
// default. The function is pure and shared verbatim by every adapter.
func ValidateTimeout(requested time.Duration, limits TimeoutLimits) (time.Duration, error) {
	if requested == 0 {
		return limits.Default, nil
	}
	if requested < 0 {
		return 0, &Error{Code: CodeInvalidTimeout, Message: fmt.Sprintf("timeout %s is not a valid duration", requested)}
	}
	if requested < limits.Min {
		return 0, &Error{Code: CodeTimeoutTooShort, Message: fmt.Sprintf("timeout %s is below the minimum %s", requested, limits.Min)}
	}
	if requested > limits.Max {
		return 0, &Error{Code: CodeTimeoutTooLong, Message: fmt.Sprintf("timeout %s exceeds the maximum %s", requested, limits.Max)}
	}
	return requested, nil
}

// ValidateMessages enforces the ChatMessage invariants. Errors name the
// offending message index and field.
func ValidateMessages(messages []ChatMessage) error {
	if len(messages) == 0 {
		return &Error{Code: CodeValidation, Message: "messages must be a non-empty array"}
	}

	for i, msg := range messages {
		switch msg.Role {
		case "":
			return &Error{Code: CodeValidation, Message: fmt.Sprintf("message %d: missing role", i)}
		case RoleSystem, RoleUser, RoleAssistant, RoleTool:
			// known role
		default:
			return &Error{Code: CodeValidation, Message: fmt.Sprintf("message %d: unknown role %q", i, msg.Role)}
		}

		switch msg.Role {
		case RoleTool:
			if msg.ToolCallID == "" {
				return &Error{Code: CodeValidation, Message: fmt.Sprintf("message %d: tool message missing tool_call_id", i)}
			}
			if msg.Name == "" {
				return &Error{Code: CodeValidation, Message: fmt.Sprintf("message %d: tool message missing name", i)}
			}
			if msg.Content == "" {
				return &Error{Code: CodeValidation, Message: fmt.Sprintf("message %d: tool message missing content", i)}
			}
		case RoleAssistant:
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				return &Error{Code: CodeValidation, Message: fmt.Sprintf("message %d: assistant message needs content or tool_calls", i)}
			}
		}
	}

	return nil
}

// ValidateOptions enforces the ChatOptions invariants.
func ValidateOptions(opts *ChatOptions) error {
	if opts == nil {
		return &Error{Code: CodeValidation, Message: "options are required"}
	}
	if opts.Model == "" {
		return &Error{Code: CodeValidation, Message: "options.model must be a non-empty string"}
	}
	for i, tool := range opts.Tools {
		if tool.Name == "" {
			return &Error{Code: CodeValidation, Message: fmt.Sprintf("options.tools[%d]: missing name", i)}
		}
	}
	if tc := opts.ToolChoice; tc != nil {
		switch tc.Mode {
		case ToolChoiceNone, ToolChoiceAuto:
			// valid without a name
		case ToolChoiceFunction:
			if tc.Name == "" {
				return &Error{Code: CodeValidation, Message: "options.tool_choice: function mode requires a name"}
			}
		default:
			return &Error{Code: CodeValidation, Message: fmt.Sprintf("options.tool_choice: unknown mode %q", tc.Mode)}
		}
	}
	return nil
}

// QualifyError stamps a provider name onto an *Error produced by the shared
// validation helpers so surfaced errors always name the offending provider.
func QualifyError(err error, provider string) error {
	if err == nil {
		return nil
	}
	if llmErr, ok := err.(*Error); ok && llmErr.Provider == "" {
		qualified := *llmErr
		qualified.Provider = provider
		return &qualified
	}
	return err
}
