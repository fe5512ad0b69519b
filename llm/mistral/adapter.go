package mistral

import (
	"fmt"

	"github.com/omnillm/omnillm/llm"
)

// BuildRequest translates the neutral request into the chat-completions wire
// format.
func BuildRequest(model string, messages []llm.ChatMessage, opts *llm.ChatOptions) (chatRequest, error) {
	converted, err := toChatMessages(messages)
	if err != nil {
		return chatRequest{}, err
	}

	req := chatRequest{
		Model:    model,
		Messages: converted,
		Stream:   true,
	}

	if tools := toTools(opts.Tools); len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = toToolChoice(opts.ToolChoice)
	}

	return req, nil
}

func toChatMessages(msgs []llm.ChatMessage) ([]chatMessage, error) {
	result := make([]chatMessage, 0, len(msgs))
	for i, msg := range msgs {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleTool:
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, msg.Role)
		}

		converted := chatMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, call := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, toolCall{
				ID:   call.ID,
				Type: llm.ToolCallTypeFunction,
				Function: functionCall{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}
		result = append(result, converted)
	}
	return result, nil
}

func toTools(tools []llm.ToolDefinition) []toolDef {
	if len(tools) == 0 {
		return nil
	}
	result := make([]toolDef, 0, len(tools))
	for i := range tools {
		result = append(result, toolDef{
			Type: llm.ToolCallTypeFunction,
			Function: functionDefinition{
				Name:        tools[i].Name,
				Description: tools[i].Description,
				Parameters:  tools[i].Schema.AsMap(),
			},
		})
	}
	return result
}

// toToolChoice maps the neutral shape onto the endpoint's union type. The
// default when tools are present is "auto".
func toToolChoice(choice *llm.ToolChoice) any {
	if choice == nil {
		return "auto"
	}
	switch choice.Mode {
	case llm.ToolChoiceNone:
		return "none"
	case llm.ToolChoiceAuto:
		return "auto"
	case llm.ToolChoiceFunction:
		return namedToolChoice{
			Type:     llm.ToolCallTypeFunction,
			Function: functionQuery{Name: choice.Name},
		}
	default:
		return "auto"
	}
}
