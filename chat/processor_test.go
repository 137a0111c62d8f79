package chat

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alexschlessinger/calmchat/messages"
	"github.com/alexschlessinger/calmchat/sessions"
)

func newTestProcessor(t *testing.T) (*Processor, *sessions.Store) {
	t.Helper()
	store := sessions.NewStore(sessions.DefaultConfig())
	return NewProcessor(store), store
}

func TestFirstTurnPromptIsUserText(t *testing.T) {
	p, _ := newTestProcessor(t)

	turn := p.HandleTurn("s1", "I feel anxious")

	if !turn.Created {
		t.Error("Expected first turn to create the session")
	}
	if turn.MessageCount != 1 {
		t.Errorf("Expected 1 message, got %d", turn.MessageCount)
	}
	if turn.Prompt != "I feel anxious" {
		t.Errorf("Expected prompt to be the user text alone, got %q", turn.Prompt)
	}
}

func TestSecondTurnIncludesHistory(t *testing.T) {
	p, _ := newTestProcessor(t)

	p.HandleTurn("s1", "I feel anxious")
	p.RecordReply("s1", "That sounds hard. What's on your mind?")
	turn := p.HandleTurn("s1", "What should I do?")

	if turn.Created {
		t.Error("Expected second turn to continue the session")
	}
	if turn.MessageCount != 3 {
		t.Errorf("Expected 3 messages, got %d", turn.MessageCount)
	}

	want := "Previous conversation:\n" +
		"User: I feel anxious\n" +
		"Assistant: That sounds hard. What's on your mind?\n\n" +
		"Current message: What should I do?"
	if turn.Prompt != want {
		t.Errorf("Unexpected prompt:\n%s\nwant:\n%s", turn.Prompt, want)
	}

	history, ok := p.History("s1")
	if !ok {
		t.Fatal("Expected session history")
	}
	roles := []string{messages.MessageRoleUser, messages.MessageRoleAssistant, messages.MessageRoleUser}
	for i, role := range roles {
		if history[i].Role != role {
			t.Errorf("Position %d: expected role %s, got %s", i, role, history[i].Role)
		}
	}
}

func TestContextWindowLimitsHistory(t *testing.T) {
	p, _ := newTestProcessor(t)

	for i := range 8 {
		p.HandleTurn("s1", fmt.Sprintf("q%d", i))
		p.RecordReply("s1", fmt.Sprintf("a%d", i))
	}
	turn := p.HandleTurn("s1", "latest")

	body := strings.TrimPrefix(turn.Prompt, historyHeader+"\n")
	body = body[:strings.Index(body, "\n\n"+currentLabel)]
	lines := strings.Split(body, "\n")
	if len(lines) != sessions.DefaultContextWindow {
		t.Fatalf("Expected %d context lines, got %d:\n%s", sessions.DefaultContextWindow, len(lines), body)
	}
	if lines[0] != "User: q3" {
		t.Errorf("Expected window to start at q3, got %q", lines[0])
	}
	if lines[len(lines)-1] != "Assistant: a7" {
		t.Errorf("Expected window to end at a7, got %q", lines[len(lines)-1])
	}
	if strings.Count(turn.Prompt, "latest") != 1 {
		t.Error("Current message must appear exactly once")
	}
}

func TestTwentyFiveTurnsKeepsTwenty(t *testing.T) {
	p, _ := newTestProcessor(t)

	for i := range 25 {
		p.HandleTurn("s1", fmt.Sprintf("q%d", i))
		p.RecordReply("s1", fmt.Sprintf("a%d", i))
	}

	history, _ := p.History("s1")
	if len(history) != 20 {
		t.Fatalf("Expected 20 messages, got %d", len(history))
	}
	if history[0].Content != "q15" {
		t.Errorf("Expected oldest retained message q15, got %q", history[0].Content)
	}
	for _, msg := range history {
		if msg.Content == "q0" || msg.Content == "a4" {
			t.Errorf("Expected early turns to be dropped, found %q", msg.Content)
		}
	}
}

func TestRecordReplyOnMissingSessionIsNoop(t *testing.T) {
	p, store := newTestProcessor(t)

	p.RecordReply("ghost", "hello?")

	if store.Len() != 0 {
		t.Errorf("RecordReply must not create sessions, got %d", store.Len())
	}
}

func TestRecordReplyAfterExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := sessions.NewStore(sessions.DefaultConfig(), sessions.WithClock(func() time.Time { return now }))
	p := NewProcessor(store)

	p.HandleTurn("s1", "hello")
	now = now.Add(2 * time.Hour)
	store.Expire()
	p.RecordReply("s1", "late answer")

	if _, ok := p.History("s1"); ok {
		t.Error("Expected expired session to stay gone")
	}

	turn := p.HandleTurn("s1", "hello again")
	if !turn.Created || turn.MessageCount != 1 {
		t.Errorf("Expected a fresh session, got %+v", turn)
	}
}

func TestRecordReplyMessageKeepsMetadata(t *testing.T) {
	p, _ := newTestProcessor(t)
	p.HandleTurn("s1", "hi")

	reply := messages.ChatMessage{Content: "hello", StopReason: messages.StopReasonEndTurn}
	reply.SetTokenUsage(12, 34)
	p.RecordReplyMessage("s1", reply)

	history, _ := p.History("s1")
	last := history[len(history)-1]
	if last.Role != messages.MessageRoleAssistant {
		t.Errorf("Expected assistant role, got %s", last.Role)
	}
	if last.GetInputTokens() != 12 || last.GetOutputTokens() != 34 {
		t.Errorf("Expected token usage 12/34, got %d/%d", last.GetInputTokens(), last.GetOutputTokens())
	}
	if last.Timestamp.IsZero() {
		t.Error("Expected reply to be timestamped")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	p, _ := newTestProcessor(t)

	p.HandleTurn("A", "from A")
	turn := p.HandleTurn("B", "from B")

	if !turn.Created || turn.Prompt != "from B" {
		t.Errorf("Expected B to start fresh, got %+v", turn)
	}
	a, _ := p.History("A")
	if len(a) != 1 || a[0].Content != "from A" {
		t.Errorf("Expected A untouched, got %+v", a)
	}
}

func TestRenderContext(t *testing.T) {
	history := []messages.ChatMessage{
		{Role: messages.MessageRoleUser, Content: "one"},
		{Role: messages.MessageRoleAssistant, Content: "two"},
	}
	if got := RenderContext(history); got != "User: one\nAssistant: two" {
		t.Errorf("Unexpected render: %q", got)
	}
	if got := RenderContext(nil); got != "" {
		t.Errorf("Expected empty render, got %q", got)
	}
}

func TestHistoryOfEmptySessionIsNotFound(t *testing.T) {
	p, store := newTestProcessor(t)

	// Registered by a first turn that has not appended yet
	store.GetOrCreate("s1")

	if history, ok := p.History("s1"); ok {
		t.Errorf("Expected an empty session to be reported missing, got %+v", history)
	}

	p.HandleTurn("s1", "hello")
	if history, ok := p.History("s1"); !ok || len(history) != 1 {
		t.Errorf("Expected one message after the turn, got %+v (%v)", history, ok)
	}
}

func TestRecordReplyStampsAssistantMessage(t *testing.T) {
	p, _ := newTestProcessor(t)
	p.HandleTurn("s1", "hi")
	p.RecordReply("s1", "hello")

	history, _ := p.History("s1")
	last := history[len(history)-1]
	if last.Role != messages.MessageRoleAssistant || last.Content != "hello" {
		t.Errorf("Unexpected reply %+v", last)
	}
	if last.Timestamp.IsZero() {
		t.Error("Expected reply to be timestamped")
	}
}
