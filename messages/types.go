package messages

import (
	"strings"
	"time"
)

// StopReason indicates why the model stopped generating
type StopReason string

const (
	// StopReasonEndTurn indicates normal completion
	StopReasonEndTurn StopReason = "end_turn"
	// StopReasonMaxTokens indicates the response was truncated due to token limit
	StopReasonMaxTokens StopReason = "max_tokens"
	// StopReasonContentFilter indicates the response was blocked by safety/policy
	StopReasonContentFilter StopReason = "content_filter"
)

// ChatMessage represents a provider-agnostic chat message
type ChatMessage struct {
	Role       string
	Content    string
	Timestamp  time.Time
	Metadata   map[string]any // Additional metadata for the message
	StopReason StopReason     // Why the model stopped generating (assistant messages only)
}

// Standard role constants
const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// NewUserMessage creates a user message stamped with the given time
func NewUserMessage(content string, at time.Time) ChatMessage {
	return ChatMessage{Role: MessageRoleUser, Content: content, Timestamp: at}
}

// NewAssistantMessage creates an assistant message stamped with the given time.
// A zero time is stamped by the session store on append.
func NewAssistantMessage(content string, at time.Time) ChatMessage {
	return ChatMessage{Role: MessageRoleAssistant, Content: content, Timestamp: at}
}

// RoleLabel returns the display label for a role ("user" -> "User")
func RoleLabel(role string) string {
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

// Render formats the message as "<Role>: <content>"
func (m ChatMessage) Render() string {
	return RoleLabel(m.Role) + ": " + m.Content
}

// Metadata keys for token usage
const (
	MetadataKeyInputTokens  = "input_tokens"
	MetadataKeyOutputTokens = "output_tokens"
)

// GetInputTokens returns the input token count from metadata, or 0 if not set
func (m *ChatMessage) GetInputTokens() int {
	return metadataInt(m.Metadata, MetadataKeyInputTokens)
}

// GetOutputTokens returns the output token count from metadata, or 0 if not set
func (m *ChatMessage) GetOutputTokens() int {
	return metadataInt(m.Metadata, MetadataKeyOutputTokens)
}

// SetTokenUsage sets the input and output token counts in metadata
func (m *ChatMessage) SetTokenUsage(input, output int) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[MetadataKeyInputTokens] = input
	m.Metadata[MetadataKeyOutputTokens] = output
}

func metadataInt(md map[string]any, key string) int {
	if md == nil {
		return 0
	}
	switch v := md[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}
