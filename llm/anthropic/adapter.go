package anthropic

import (
	"encoding/json"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/omnillm/omnillm/llm"
)

// ToMessageParams converts provider-neutral messages into the messages-API
// shape. System messages are handled separately (see SystemBlocks); the
// backend has no tool role, so tool results become user turns carrying a
// tool_result block.
func ToMessageParams(msgs []llm.ChatMessage) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(msgs))
	for i, msg := range msgs {
		switch msg.Role {
		case llm.RoleSystem:
			continue

		case llm.RoleUser:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case llm.RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input, err := decodeArguments(call.Function.Arguments)
				if err != nil {
					return nil, fmt.Errorf("message %d: tool call %q: %w", i, call.Function.Name, err)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Function.Name))
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))

		case llm.RoleTool:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))

		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, msg.Role)
		}
	}
	return result, nil
}

// SystemBlocks collects the system messages into system text blocks, with
// prompt caching enabled on the final block. Placing cache_control there
// caches the full prefix: tools, system, and messages up to that block.
func SystemBlocks(msgs []llm.ChatMessage) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range msgs {
		if msg.Role == llm.RoleSystem {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	if len(blocks) > 0 {
		blocks[len(blocks)-1].CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
	return blocks
}

// ToTools converts neutral tool definitions into tool union params.
func ToTools(tools []llm.ToolDefinition) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for i := range tools {
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tools[i].Name,
				Description: anthropic.String(tools[i].Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:        "object",
					Properties:  tools[i].Schema.Properties,
					Required:    tools[i].Schema.Required,
					ExtraFields: tools[i].Schema.ExtraFields,
				},
			},
		})
	}
	return result
}

// ToToolChoice maps the neutral tool-choice shape onto the union param.
func ToToolChoice(choice *llm.ToolChoice) anthropic.ToolChoiceUnionParam {
	if choice == nil {
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
	switch choice.Mode {
	case llm.ToolChoiceNone:
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	case llm.ToolChoiceFunction:
		return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: choice.Name}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}

// decodeArguments parses a tool call's argument JSON into the object form
// the messages API expects.
func decodeArguments(raw string) (map[string]any, error) {
	normalized := llm.NormalizeArguments(raw)
	var input map[string]any
	if err := json.Unmarshal([]byte(normalized), &input); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	return input, nil
}
