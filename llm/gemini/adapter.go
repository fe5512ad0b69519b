package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/omnillm/omnillm/llm"
)

// BuildRequest translates the neutral request into the generateContent wire
// format. The backend models a conversation as prior turns plus a distinct
// current turn, so the latest message is converted separately and appended
// after the history. System messages become the request-level system
// instruction rather than turns.
func BuildRequest(messages []llm.ChatMessage, opts *llm.ChatOptions) (generateContentRequest, error) {
	req := generateContentRequest{}

	history, current := splitTurn(messages)

	for i, msg := range history {
		if msg.Role == llm.RoleSystem {
			appendSystemInstruction(&req, msg.Content)
			continue
		}
		turn, err := toContent(msg)
		if err != nil {
			return generateContentRequest{}, fmt.Errorf("message %d: %w", i, err)
		}
		req.Contents = append(req.Contents, turn)
	}

	if current.Role == llm.RoleSystem {
		appendSystemInstruction(&req, current.Content)
	} else {
		turn, err := toContent(current)
		if err != nil {
			return generateContentRequest{}, fmt.Errorf("message %d: %w", len(messages)-1, err)
		}
		req.Contents = append(req.Contents, turn)
	}

	tools, err := ToTools(opts.Tools)
	if err != nil {
		return generateContentRequest{}, err
	}
	if len(tools) > 0 {
		req.Tools = []tool{{FunctionDeclarations: tools}}
		req.ToolConfig = toToolConfig(opts.ToolChoice)
	}

	return req, nil
}

// splitTurn separates the conversation history from the current turn. The
// caller guarantees at least one message (validation rejects empty input).
func splitTurn(messages []llm.ChatMessage) ([]llm.ChatMessage, llm.ChatMessage) {
	return messages[:len(messages)-1], messages[len(messages)-1]
}

func appendSystemInstruction(req *generateContentRequest, text string) {
	if req.SystemInstruction == nil {
		req.SystemInstruction = &content{}
	}
	req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, part{Text: text})
}

// toContent converts one neutral message to a content turn. The backend has
// no assistant or tool roles: assistant maps to "model", and tool results are
// user turns carrying a functionResponse part.
func toContent(msg llm.ChatMessage) (content, error) {
	switch msg.Role {
	case llm.RoleUser:
		return content{Role: "user", Parts: []part{{Text: msg.Content}}}, nil

	case llm.RoleAssistant:
		turn := content{Role: "model"}
		if msg.Content != "" {
			turn.Parts = append(turn.Parts, part{Text: msg.Content})
		}
		for _, call := range msg.ToolCalls {
			args := json.RawMessage(llm.NormalizeArguments(call.Function.Arguments))
			turn.Parts = append(turn.Parts, part{
				FunctionCall: &functionCall{Name: call.Function.Name, Args: args},
			})
		}
		return turn, nil

	case llm.RoleTool:
		// The response field must be a JSON object; plain-text tool output
		// is wrapped.
		response := json.RawMessage(msg.Content)
		if !json.Valid(response) || len(msg.Content) == 0 || msg.Content[0] != '{' {
			wrapped, err := json.Marshal(map[string]string{"result": msg.Content})
			if err != nil {
				return content{}, fmt.Errorf("tool result for %q: %w", msg.Name, err)
			}
			response = wrapped
		}
		return content{
			Role: "user",
			Parts: []part{{
				FunctionResponse: &functionResponse{Name: msg.Name, Response: response},
			}},
		}, nil

	default:
		return content{}, fmt.Errorf("unsupported role %q", msg.Role)
	}
}

// ToTools converts neutral tool definitions to function declarations. Schema
// marshaling failures surface as errors so the caller can report them as
// tool-transform failures before any network traffic.
func ToTools(tools []llm.ToolDefinition) ([]functionDeclaration, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	result := make([]functionDeclaration, 0, len(tools))
	for i := range tools {
		params, err := json.Marshal(tools[i].Schema.AsMap())
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", tools[i].Name, err)
		}
		result = append(result, functionDeclaration{
			Name:        tools[i].Name,
			Description: tools[i].Description,
			Parameters:  params,
		})
	}
	return result, nil
}

func toToolConfig(choice *llm.ToolChoice) *toolConfig {
	if choice == nil {
		return nil
	}
	cfg := &functionCallingConfig{}
	switch choice.Mode {
	case llm.ToolChoiceNone:
		cfg.Mode = modeNone
	case llm.ToolChoiceAuto:
		cfg.Mode = modeAuto
	case llm.ToolChoiceFunction:
		cfg.Mode = modeAny
		cfg.AllowedFunctionNames = []string{choice.Name}
	default:
		return nil
	}
	return &toolConfig{FunctionCallingConfig: cfg}
}

// FromFunctionCall converts a wire function call into the neutral
// representation. The backend assigns no call identifiers, so the function
// name doubles as the id; callers echo it back in tool results.
func FromFunctionCall(fc *functionCall, index int) llm.ToolCall {
	return llm.ToolCall{
		Index: index,
		ID:    fc.Name,
		Type:  llm.ToolCallTypeFunction,
		Function: llm.FunctionCall{
			Name:      fc.Name,
			Arguments: llm.NormalizeArguments(string(fc.Args)),
		},
	}
}
