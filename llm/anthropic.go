package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexschlessinger/calmchat/messages"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

var _ LLM = (*AnthropicClient)(nil)

type AnthropicClient struct {
	client anthropic.Client
}

func NewAnthropicClient(apiKey string, baseURL string) *AnthropicClient {
	if apiKey == "" {
		zap.S().Debugw("anthropic_missing_api_key")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
	}
}

// buildRequestParams creates the Anthropic API request parameters
func (a *AnthropicClient) buildRequestParams(req *CompletionRequest) anthropic.MessageNewParams {
	anthropicMessages, systemPrompt := MessagesToAnthropicParams(req.Messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(float64(req.Temperature)),
		Messages:    anthropicMessages,
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		}
	}

	return params
}

// Complete implements LLM using the messages endpoint
func (a *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*messages.ChatMessage, error) {
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()
	zap.S().Debugw("anthropic_completion_started", "model", req.Model)

	resp, err := a.client.Messages.New(ctx, a.buildRequestParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	msg := &messages.ChatMessage{
		Role:       messages.MessageRoleAssistant,
		Content:    text.String(),
		StopReason: mapAnthropicStopReason(resp.StopReason),
	}
	msg.SetTokenUsage(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	return msg, nil
}

// MessagesToAnthropicParams converts messages to Anthropic message parameters
func MessagesToAnthropicParams(msgs []messages.ChatMessage) ([]anthropic.MessageParam, string) {
	systemPrompt, conversation := splitSystem(msgs)

	var anthropicMessages []anthropic.MessageParam
	for _, msg := range conversation {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case messages.MessageRoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case messages.MessageRoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return anthropicMessages, systemPrompt
}

// mapAnthropicStopReason converts Anthropic's stop reason to our normalized type
func mapAnthropicStopReason(sr anthropic.StopReason) messages.StopReason {
	switch sr {
	case "max_tokens":
		return messages.StopReasonMaxTokens
	case "refusal":
		return messages.StopReasonContentFilter
	default:
		return messages.StopReasonEndTurn
	}
}
