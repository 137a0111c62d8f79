package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexschlessinger/calmchat/messages"
	ollamaapi "github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// DefaultOllamaURL is used when no base URL is configured
const DefaultOllamaURL = "http://localhost:11434"

var _ LLM = (*OllamaClient)(nil)

type OllamaClient struct {
	client *ollamaapi.Client
}

// authTransport adds Bearer token authentication to HTTP requests
type authTransport struct {
	Token string
	Base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.Token)
	return t.Base.RoundTrip(req)
}

func NewOllamaClient(baseURL string, apiKey string) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		zap.S().Warnw("ollama_invalid_url", "url", baseURL, "error", err)
		u, _ = url.Parse(DefaultOllamaURL)
	}

	// Create HTTP client with optional Bearer token authentication
	httpClient := http.DefaultClient
	if apiKey != "" {
		httpClient = &http.Client{
			Transport: &authTransport{
				Token: apiKey,
				Base:  http.DefaultTransport,
			},
		}
		zap.S().Debugw("ollama_bearer_auth_enabled")
	}

	return &OllamaClient{
		client: ollamaapi.NewClient(u, httpClient),
	}
}

// Complete implements LLM using the chat endpoint with streaming disabled
func (o *OllamaClient) Complete(ctx context.Context, req *CompletionRequest) (*messages.ChatMessage, error) {
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()

	stream := false
	chatReq := &ollamaapi.ChatRequest{
		Model:    req.Model,
		Messages: MessagesToOllama(req.Messages),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	zap.S().Debugw("ollama_completion_started", "model", req.Model)

	var (
		content    strings.Builder
		doneReason string
		promptEval int
		eval       int
	)
	err := o.client.Chat(ctx, chatReq, func(resp ollamaapi.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			doneReason = resp.DoneReason
			promptEval = resp.PromptEvalCount
			eval = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama completion failed: %w", err)
	}

	msg := &messages.ChatMessage{
		Role:       messages.MessageRoleAssistant,
		Content:    content.String(),
		StopReason: messages.StopReasonEndTurn,
	}
	if doneReason == "length" {
		msg.StopReason = messages.StopReasonMaxTokens
	}
	msg.SetTokenUsage(promptEval, eval)
	return msg, nil
}

// MessagesToOllama converts messages to Ollama format
func MessagesToOllama(msgs []messages.ChatMessage) []ollamaapi.Message {
	ollamaMessages := make([]ollamaapi.Message, len(msgs))
	for i, msg := range msgs {
		ollamaMessages[i] = ollamaapi.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return ollamaMessages
}
