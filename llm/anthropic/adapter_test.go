package anthropic

import (
	"testing"

	"github.com/omnillm/omnillm/llm"
)

func TestToMessageParamsSkipsSystemMessages(t *testing.T) {
	messages := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	}

	converted, err := ToMessageParams(messages)
	if err != nil {
		t.Fatalf("ToMessageParams failed: %v", err)
	}
	if len(converted) != 2 {
		t.Fatalf("Expected system message excluded from turns, got %d turns", len(converted))
	}
}

func TestToMessageParamsToolRoundTrip(t *testing.T) {
	messages := []llm.ChatMessage{
		{Role: llm.RoleUser, Content: "weather?"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{
			ID:       "toolu_1",
			Type:     llm.ToolCallTypeFunction,
			Function: llm.FunctionCall{Name: "get_weather", Arguments: `{"city":"Oslo"}`},
		}}},
		{Role: llm.RoleTool, ToolCallID: "toolu_1", Name: "get_weather", Content: "3 degrees"},
	}

	converted, err := ToMessageParams(messages)
	if err != nil {
		t.Fatalf("ToMessageParams failed: %v", err)
	}
	if len(converted) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(converted))
	}
}

func TestToMessageParamsRejectsNonObjectArguments(t *testing.T) {
	messages := []llm.ChatMessage{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{
			ID:       "toolu_1",
			Type:     llm.ToolCallTypeFunction,
			Function: llm.FunctionCall{Name: "get_weather", Arguments: `[1,2,3]`},
		}}},
	}
	if _, err := ToMessageParams(messages); err == nil {
		t.Fatal("Expected error for non-object arguments")
	}
}

func TestSystemBlocks(t *testing.T) {
	blocks := SystemBlocks([]llm.ChatMessage{
		{Role: llm.RoleSystem, Content: "first"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleSystem, Content: "second"},
	})
	if len(blocks) != 2 {
		t.Fatalf("Expected 2 system blocks, got %d", len(blocks))
	}
	if blocks[0].Text != "first" || blocks[1].Text != "second" {
		t.Errorf("Unexpected block order: %+v", blocks)
	}

	if blocks := SystemBlocks([]llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}}); blocks != nil {
		t.Errorf("Expected no system blocks, got %+v", blocks)
	}
}

func TestToTools(t *testing.T) {
	tools := ToTools([]llm.ToolDefinition{{
		Name:        "get_weather",
		Description: "current weather",
		Schema: llm.ToolSchema{
			Properties: map[string]interface{}{"city": map[string]interface{}{"type": "string"}},
			Required:   []string{"city"},
		},
	}})
	if len(tools) != 1 {
		t.Fatalf("Expected 1 tool, got %d", len(tools))
	}
	if tools[0].OfTool == nil || tools[0].OfTool.Name != "get_weather" {
		t.Errorf("Unexpected tool: %+v", tools[0])
	}
	if len(tools[0].OfTool.InputSchema.Required) != 1 {
		t.Errorf("Expected required fields to carry through, got %+v", tools[0].OfTool.InputSchema)
	}

	if ToTools(nil) != nil {
		t.Error("Expected nil for no tools")
	}
}

func TestDecodeArguments(t *testing.T) {
	input, err := decodeArguments(`{"city":"Oslo"}`)
	if err != nil {
		t.Fatalf("decodeArguments failed: %v", err)
	}
	if input["city"] != "Oslo" {
		t.Errorf("Expected city Oslo, got %v", input["city"])
	}

	input, err = decodeArguments("")
	if err != nil {
		t.Fatalf("decodeArguments failed on empty input: %v", err)
	}
	if len(input) != 0 {
		t.Errorf("Expected empty object, got %v", input)
	}
}
