package llm

import (
	"context"
	"time"

	"github.com/alexschlessinger/calmchat/messages"
)

// LLM interface defines the contract for language model implementations
type LLM interface {
	// Complete sends the conversation and returns the assistant's reply
	Complete(context.Context, *CompletionRequest) (*messages.ChatMessage, error)
}

// CompletionRequest contains all parameters for a completion request
type CompletionRequest struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature float32
	Model       string
	MaxTokens   int
	Messages    []messages.ChatMessage // System, history and the new user message
}

// withTimeout applies the request timeout, if any
func withTimeout(ctx context.Context, req *CompletionRequest) (context.Context, context.CancelFunc) {
	if req.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, req.Timeout)
}

// splitSystem separates system messages from the conversation.
// Multiple system messages are joined with blank lines.
func splitSystem(msgs []messages.ChatMessage) (string, []messages.ChatMessage) {
	var system string
	conversation := make([]messages.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == messages.MessageRoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		conversation = append(conversation, msg)
	}
	return system, conversation
}
