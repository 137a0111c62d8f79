package messages

import (
	"testing"
	"time"
)

func TestRender(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		msg  ChatMessage
		want string
	}{
		{NewUserMessage("I feel stuck", at), "User: I feel stuck"},
		{NewAssistantMessage("Tell me more.", at), "Assistant: Tell me more."},
		{ChatMessage{Role: MessageRoleUser}, "User: "},
	}

	for _, tt := range tests {
		if got := tt.msg.Render(); got != tt.want {
			t.Errorf("Render() = %q, want %q", got, tt.want)
		}
	}
}

func TestRoleLabel(t *testing.T) {
	if got := RoleLabel(""); got != "" {
		t.Errorf("RoleLabel(\"\") = %q", got)
	}
	if got := RoleLabel(MessageRoleSystem); got != "System" {
		t.Errorf("RoleLabel(system) = %q", got)
	}
}

func TestTokenUsage(t *testing.T) {
	var msg ChatMessage
	if msg.GetInputTokens() != 0 || msg.GetOutputTokens() != 0 {
		t.Error("Expected zero usage without metadata")
	}

	msg.SetTokenUsage(120, 35)
	if msg.GetInputTokens() != 120 || msg.GetOutputTokens() != 35 {
		t.Errorf("Unexpected usage %d/%d", msg.GetInputTokens(), msg.GetOutputTokens())
	}

	msg.Metadata[MetadataKeyInputTokens] = int64(9)
	if msg.GetInputTokens() != 9 {
		t.Errorf("Expected int64 metadata to be read, got %d", msg.GetInputTokens())
	}
}
