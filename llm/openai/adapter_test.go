package openai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/omnillm/omnillm/llm"
)

func TestToChatMessages(t *testing.T) {
	messages := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{
			ID:       "call_1",
			Type:     llm.ToolCallTypeFunction,
			Function: llm.FunctionCall{Name: "lookup", Arguments: `{"q":"x"}`},
		}}},
		{Role: llm.RoleTool, ToolCallID: "call_1", Name: "lookup", Content: "42"},
	}

	converted, err := ToChatMessages(messages)
	if err != nil {
		t.Fatalf("ToChatMessages failed: %v", err)
	}
	if len(converted) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(converted))
	}
	if converted[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("Expected system role, got %q", converted[0].Role)
	}
	if len(converted[2].ToolCalls) != 1 || converted[2].ToolCalls[0].Function.Name != "lookup" {
		t.Errorf("Expected assistant tool call to carry through, got %+v", converted[2].ToolCalls)
	}
	if converted[3].ToolCallID != "call_1" || converted[3].Name != "lookup" {
		t.Errorf("Expected tool plumbing to carry through, got %+v", converted[3])
	}
}

func TestToChatMessageRejectsUnknownRole(t *testing.T) {
	_, err := ToChatMessage(llm.ChatMessage{Role: "robot", Content: "x"})
	if err == nil {
		t.Fatal("Expected error for unknown role")
	}
}

func TestToToolChoice(t *testing.T) {
	if got := ToToolChoice(nil); got != nil {
		t.Errorf("Expected nil for absent choice, got %v", got)
	}
	if got := ToToolChoice(&llm.ToolChoice{Mode: llm.ToolChoiceNone}); got != "none" {
		t.Errorf("Expected none, got %v", got)
	}
	if got := ToToolChoice(&llm.ToolChoice{Mode: llm.ToolChoiceAuto}); got != "auto" {
		t.Errorf("Expected auto, got %v", got)
	}
	named, ok := ToToolChoice(&llm.ToolChoice{Mode: llm.ToolChoiceFunction, Name: "lookup"}).(openai.ToolChoice)
	if !ok || named.Function.Name != "lookup" {
		t.Errorf("Expected named function choice, got %v", named)
	}
}

func TestFromToolCallFallsBackToFunctionName(t *testing.T) {
	call := FromToolCall(openai.ToolCall{
		Function: openai.FunctionCall{Name: "lookup", Arguments: ""},
	}, 2)
	if call.ID != "lookup" {
		t.Errorf("Expected id to fall back to function name, got %q", call.ID)
	}
	if call.Index != 2 {
		t.Errorf("Expected index 2, got %d", call.Index)
	}
	if call.Function.Arguments != "{}" {
		t.Errorf("Expected empty arguments normalized to empty object, got %q", call.Function.Arguments)
	}
}

func TestBuildRequest(t *testing.T) {
	messages := []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}}
	opts := &llm.ChatOptions{
		Model: "gpt-4o",
		Tools: []llm.ToolDefinition{{
			Name:        "lookup",
			Description: "looks things up",
			Schema:      llm.ToolSchema{Properties: map[string]interface{}{"q": map[string]interface{}{"type": "string"}}},
		}},
	}

	req, err := BuildRequest("gpt-4o", messages, opts)
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}
	if !req.Stream {
		t.Error("Expected streaming request")
	}
	if req.StreamOptions == nil || !req.StreamOptions.IncludeUsage {
		t.Error("Expected usage reporting enabled")
	}
	if len(req.Tools) != 1 {
		t.Fatalf("Expected 1 tool, got %d", len(req.Tools))
	}
	if req.ToolChoice != "auto" {
		t.Errorf("Expected default tool choice auto, got %v", req.ToolChoice)
	}
}

func TestIsAzureEndpoint(t *testing.T) {
	if isAzureEndpoint(&llm.ProviderConfig{BaseURL: "https://api.openai.com/v1"}) {
		t.Error("Expected plain endpoint not to be Azure")
	}
	if !isAzureEndpoint(&llm.ProviderConfig{BaseURL: "https://acme.openai.azure.com"}) {
		t.Error("Expected Azure host to be recognized")
	}
	if !isAzureEndpoint(&llm.ProviderConfig{DeploymentName: "gpt4-prod"}) {
		t.Error("Expected deployment name to force Azure mode")
	}
}
