package sessions

import (
	"slices"

	"github.com/alexschlessinger/calmchat/messages"
)

// TrimHistory keeps the most recent maxHistory messages, dropping from
// the oldest end. The last message is always kept. maxHistory <= 0
// means no limit.
func TrimHistory(history []messages.ChatMessage, maxHistory int) []messages.ChatMessage {
	if maxHistory <= 0 || len(history) <= maxHistory {
		return history
	}
	return slices.Delete(history, 0, len(history)-maxHistory)
}

// CopyHistory returns a copy of the history slice
func CopyHistory(history []messages.ChatMessage) []messages.ChatMessage {
	result := make([]messages.ChatMessage, len(history))
	copy(result, history)
	return result
}

// Tail returns a copy of the last n messages, or all of them if there are fewer
func Tail(history []messages.ChatMessage, n int) []messages.ChatMessage {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return CopyHistory(history)
}
