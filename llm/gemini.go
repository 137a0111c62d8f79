package llm

import (
	"context"
	"fmt"

	"github.com/alexschlessinger/calmchat/messages"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var _ LLM = (*GeminiClient)(nil)

type GeminiClient struct {
	apiKey  string
	baseURL string
}

func NewGeminiClient(apiKey string, baseURL string) *GeminiClient {
	if apiKey == "" {
		zap.S().Debugw("gemini_missing_api_key")
	}
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

// Complete implements LLM using GenerateContent
func (g *GeminiClient) Complete(ctx context.Context, req *CompletionRequest) (*messages.ChatMessage, error) {
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()

	cfg := &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions.BaseURL = g.baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	contents, systemInstruction := MessagesToGeminiContent(req.Messages)
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	zap.S().Debugw("gemini_completion_started", "model", req.Model)
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	msg := &messages.ChatMessage{
		Role:       messages.MessageRoleAssistant,
		Content:    resp.Text(),
		StopReason: mapGeminiFinishReason(resp.Candidates[0].FinishReason),
	}
	if resp.UsageMetadata != nil {
		msg.SetTokenUsage(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
	}
	return msg, nil
}

// MessagesToGeminiContent converts messages to Gemini contents and a system instruction
func MessagesToGeminiContent(msgs []messages.ChatMessage) ([]*genai.Content, string) {
	systemInstruction, conversation := splitSystem(msgs)

	contents := make([]*genai.Content, 0, len(conversation))
	for _, msg := range conversation {
		var role genai.Role = genai.RoleUser
		if msg.Role == messages.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents, systemInstruction
}

// mapGeminiFinishReason converts Gemini's finish reason to our normalized type
func mapGeminiFinishReason(fr genai.FinishReason) messages.StopReason {
	switch fr {
	case genai.FinishReasonMaxTokens:
		return messages.StopReasonMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII:
		return messages.StopReasonContentFilter
	default:
		return messages.StopReasonEndTurn
	}
}
