package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/alexschlessinger/calmchat/messages"
)

// recordingLLM captures the routed request
type recordingLLM struct {
	req *CompletionRequest
}

func (r *recordingLLM) Complete(_ context.Context, req *CompletionRequest) (*messages.ChatMessage, error) {
	r.req = req
	return &messages.ChatMessage{Role: messages.MessageRoleAssistant, Content: "ok"}, nil
}

func newTestMultiPass(keys map[string]string) (*MultiPass, *recordingLLM, *string) {
	rec := &recordingLLM{}
	var provider string
	m := NewMultiPass(keys, "https://upstream.example")
	m.newClient = func(p, apiKey, baseURL string) (LLM, error) {
		provider = p
		return rec, nil
	}
	return m, rec, &provider
}

func TestParseModel(t *testing.T) {
	tests := []struct {
		model        string
		wantProvider string
		wantName     string
		wantErr      bool
	}{
		{"openai/gpt-4o-mini", "openai", "gpt-4o-mini", false},
		{"Anthropic/claude-sonnet-4-20250514", "anthropic", "claude-sonnet-4-20250514", false},
		{"ollama/library/llama3", "ollama", "library/llama3", false},
		{"gpt-4o", "", "", true},
		{"/gpt-4o", "", "", true},
		{"openai/", "", "", true},
	}

	for _, tt := range tests {
		provider, name, err := ParseModel(tt.model)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidModel) {
				t.Errorf("ParseModel(%q): expected ErrInvalidModel, got %v", tt.model, err)
			}
			continue
		}
		if err != nil || provider != tt.wantProvider || name != tt.wantName {
			t.Errorf("ParseModel(%q) = %q, %q, %v; want %q, %q", tt.model, provider, name, err, tt.wantProvider, tt.wantName)
		}
	}
}

func TestMultiPassRoutesAndFillsKey(t *testing.T) {
	m, rec, provider := newTestMultiPass(map[string]string{"anthropic": "sk-ant"})

	req := &CompletionRequest{Model: "anthropic/claude-sonnet-4-20250514"}
	if _, err := m.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if *provider != "anthropic" {
		t.Errorf("Expected anthropic provider, got %q", *provider)
	}
	if rec.req.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Expected prefix stripped, got %q", rec.req.Model)
	}
	if rec.req.APIKey != "sk-ant" {
		t.Errorf("Expected API key filled from key map, got %q", rec.req.APIKey)
	}
	if rec.req.BaseURL != "https://upstream.example" {
		t.Errorf("Expected base URL default, got %q", rec.req.BaseURL)
	}
	if req.Model != "anthropic/claude-sonnet-4-20250514" || req.APIKey != "" {
		t.Error("Caller's request must not be modified")
	}
}

func TestMultiPassErrors(t *testing.T) {
	m, _, _ := newTestMultiPass(map[string]string{})

	tests := []struct {
		model string
		want  error
	}{
		{"gpt-4o", ErrInvalidModel},
		{"mystery/model", ErrUnknownProvider},
		{"openai/gpt-4o", ErrMissingAPIKey},
	}
	for _, tt := range tests {
		_, err := m.Complete(context.Background(), &CompletionRequest{Model: tt.model})
		if !errors.Is(err, tt.want) {
			t.Errorf("Complete(%q): expected %v, got %v", tt.model, tt.want, err)
		}
		if err := m.CheckCredentials(tt.model); !errors.Is(err, tt.want) {
			t.Errorf("CheckCredentials(%q): expected %v, got %v", tt.model, tt.want, err)
		}
	}
}

func TestMultiPassOllamaKeyless(t *testing.T) {
	m, _, provider := newTestMultiPass(map[string]string{})

	if err := m.CheckCredentials("ollama/llama3"); err != nil {
		t.Errorf("Expected ollama to be keyless, got %v", err)
	}
	if _, err := m.Complete(context.Background(), &CompletionRequest{Model: "ollama/llama3"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if *provider != "ollama" {
		t.Errorf("Expected ollama provider, got %q", *provider)
	}
}

func TestEnvVarNameForProvider(t *testing.T) {
	if got := EnvVarNameForProvider("openai"); got != "CALMCHAT_OPENAIKEY" {
		t.Errorf("Expected CALMCHAT_OPENAIKEY, got %q", got)
	}
}
