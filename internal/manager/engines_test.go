package manager

import (
	"context"
	"strings"
	"testing"

	"chatd/pkg/types"
)

func TestNewEngine(t *testing.T) {
	for _, kind := range []string{"", "llama-server", "LLAMA", "gemini"} {
		e, err := NewEngine(kind, EngineOptions{})
		if err != nil || e == nil {
			t.Fatalf("NewEngine(%q): %v", kind, err)
		}
	}
	if _, err := NewEngine("onnx", EngineOptions{}); err == nil {
		t.Fatalf("expected unknown engine error")
	}
}

func TestLlamaStubUnavailable(t *testing.T) {
	if llamaBuilt {
		t.Skip("built with llama support")
	}
	_, err := NewLlamaEngine(LlamaConfig{}).Load(context.Background(), ModelSpec{}, nil)
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiEngine(GeminiConfig{}).Load(context.Background(), ModelSpec{ID: "gemini-2.0-flash"}, nil)
	if err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestFormatChatML(t *testing.T) {
	got := formatChatML([]types.Message{
		{Role: types.RoleSystem, Content: "You are a helpful assistant."},
		{Role: types.RoleUser, Content: "hi"},
	})
	want := "<|im_start|>system\nYou are a helpful assistant.<|im_end|>\n" +
		"<|im_start|>user\nhi<|im_end|>\n" +
		"<|im_start|>assistant\n"
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestToGeminiHistory(t *testing.T) {
	sys, hist, last, err := toGeminiHistory([]types.Message{
		{Role: types.RoleSystem, Content: "be nice"},
		{Role: types.RoleUser, Content: "a"},
		{Role: types.RoleAssistant, Content: "b"},
		{Role: types.RoleUser, Content: "c"},
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if sys != "be nice" || last != "c" || len(hist) != 2 || hist[0].Role != "user" || hist[1].Role != "model" {
		t.Fatalf("unexpected split: %q %q %+v", sys, last, hist)
	}
	if _, _, _, err := toGeminiHistory([]types.Message{{Role: types.RoleAssistant, Content: "x"}}); err == nil {
		t.Fatalf("expected error when last message is not from the user")
	}
}
