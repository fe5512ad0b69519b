package openai

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/omnillm/omnillm/llm"
)

// ToChatMessages converts provider-neutral messages to the OpenAI chat
// message format. The mapping is direct: roles, tool calls, and tool-result
// plumbing all have native equivalents.
func ToChatMessages(msgs []llm.ChatMessage) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for i, msg := range msgs {
		converted, err := ToChatMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		result = append(result, converted)
	}
	return result, nil
}

// ToChatMessage converts a single neutral message to OpenAI format.
func ToChatMessage(msg llm.ChatMessage) (openai.ChatCompletionMessage, error) {
	var role string
	switch msg.Role {
	case llm.RoleSystem:
		role = openai.ChatMessageRoleSystem
	case llm.RoleUser:
		role = openai.ChatMessageRoleUser
	case llm.RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	case llm.RoleTool:
		role = openai.ChatMessageRoleTool
	default:
		return openai.ChatCompletionMessage{}, fmt.Errorf("unsupported role %q", msg.Role)
	}

	converted := openai.ChatCompletionMessage{
		Role:       role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		Name:       msg.Name,
	}

	for _, call := range msg.ToolCalls {
		converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}

	return converted, nil
}

// ToTools converts neutral tool definitions to OpenAI function declarations.
// Empty input yields nil, never an error.
func ToTools(tools []llm.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, 0, len(tools))
	for i := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tools[i].Name,
				Description: tools[i].Description,
				Parameters:  tools[i].Schema.AsMap(),
			},
		})
	}
	return result
}

// ToToolChoice converts the neutral tool-choice shape to OpenAI's union
// type: the enumerated strings for none/auto, or a named-function object.
func ToToolChoice(choice *llm.ToolChoice) any {
	if choice == nil {
		return nil
	}
	switch choice.Mode {
	case llm.ToolChoiceNone:
		return "none"
	case llm.ToolChoiceAuto:
		return "auto"
	case llm.ToolChoiceFunction:
		return openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: choice.Name},
		}
	default:
		return nil
	}
}

// FromToolCall converts an OpenAI tool call into the neutral representation.
// The call id falls back to the function name when the backend omits it.
// Arguments are normalized to valid JSON exactly once, here.
func FromToolCall(call openai.ToolCall, index int) llm.ToolCall {
	id := call.ID
	if id == "" {
		id = call.Function.Name
	}
	return llm.ToolCall{
		Index: index,
		ID:    id,
		Type:  llm.ToolCallTypeFunction,
		Function: llm.FunctionCall{
			Name:      call.Function.Name,
			Arguments: llm.NormalizeArguments(call.Function.Arguments),
		},
	}
}
