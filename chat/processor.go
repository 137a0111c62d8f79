// Package chat turns user queries into upstream prompts and records the
// replies, keeping each session's bounded history in a sessions.SessionStore.
package chat

import (
	"strings"
	"time"

	"github.com/alexschlessinger/calmchat/messages"
	"github.com/alexschlessinger/calmchat/sessions"
	"go.uber.org/zap"
)

// PlaceholderReply is recorded and returned when the upstream answers with no text
const PlaceholderReply = "I'm sorry, I couldn't come up with a response just now. Could you tell me a bit more?"

// Prompt section labels
const (
	historyHeader = "Previous conversation:"
	currentLabel  = "Current message: "
)

// Turn is the outcome of accepting a user message
type Turn struct {
	SessionID    string
	Prompt       string // Prompt to send upstream
	MessageCount int    // History length after the user message was appended
	Created      bool   // True when this turn started the session
}

// Processor applies turns to a session store
type Processor struct {
	store         sessions.SessionStore
	contextWindow int
}

// NewProcessor creates a processor. The context window size comes from
// the store configuration.
func NewProcessor(store sessions.SessionStore) *Processor {
	return &Processor{
		store:         store,
		contextWindow: store.Config().ContextWindow,
	}
}

// HandleTurn appends the user's message to the session, creating the
// session on first use, and assembles the prompt for the upstream call.
// It does not call the upstream itself. userText must be non-empty.
func (p *Processor) HandleTurn(sessionID, userText string) Turn {
	turn := Turn{SessionID: sessionID}

	p.store.Update(sessionID, func(tx *sessions.Tx) {
		turn.MessageCount = tx.Append(messages.NewUserMessage(userText, tx.Now()))
		history := tx.History()
		prior := sessions.Tail(history[:len(history)-1], p.contextWindow)
		turn.Created = tx.Created()
		// A session's first message has no prior history, so its prompt
		// is the user text alone
		turn.Prompt = BuildPrompt(prior, userText)
	})

	zap.S().Debugw("turn_started",
		"session_id", sessionID,
		"message_count", turn.MessageCount,
		"created", turn.Created,
	)
	return turn
}

// RecordReply appends the assistant's answer to the session. It is a
// silent no-op when the session expired while the upstream was answering.
func (p *Processor) RecordReply(sessionID, answerText string) {
	p.RecordReplyMessage(sessionID, messages.NewAssistantMessage(answerText, time.Time{}))
}

// RecordReplyMessage is RecordReply for a full upstream message, keeping
// its metadata (token usage, stop reason)
func (p *Processor) RecordReplyMessage(sessionID string, reply messages.ChatMessage) {
	reply.Role = messages.MessageRoleAssistant
	recorded := p.store.UpdateExisting(sessionID, func(tx *sessions.Tx) {
		tx.Append(reply)
	})
	if !recorded {
		zap.S().Debugw("reply_dropped_session_gone", "session_id", sessionID)
	}
}

// History returns a copy of the session's messages. A session that is
// registered but has no messages yet (a first turn still taking its lock)
// is reported as not found.
func (p *Processor) History(sessionID string) ([]messages.ChatMessage, bool) {
	session, ok := p.store.Get(sessionID)
	if !ok {
		return nil, false
	}
	history := session.History()
	if len(history) == 0 {
		return nil, false
	}
	return history, true
}

// RenderContext renders messages one per line as "<Role>: <content>"
func RenderContext(history []messages.ChatMessage) string {
	lines := make([]string, len(history))
	for i, msg := range history {
		lines[i] = msg.Render()
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt embeds the rendered history ahead of the new user message.
// With no history the prompt is the user text alone.
func BuildPrompt(history []messages.ChatMessage, userText string) string {
	if len(history) == 0 {
		return userText
	}

	var b strings.Builder
	b.WriteString(historyHeader)
	b.WriteString("\n")
	b.WriteString(RenderContext(history))
	b.WriteString("\n\n")
	b.WriteString(currentLabel)
	b.WriteString(userText)
	return b.String()
}
