package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexschlessinger/calmchat/messages"
	ai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var _ LLM = (*OpenAIClient)(nil)

type OpenAIClient struct {
	ClientConfig ai.ClientConfig
	Client       *ai.Client
}

func NewOpenAIClient(apiKey string, baseURL string) *OpenAIClient {
	cfg := ai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		ClientConfig: cfg,
		Client:       ai.NewClientWithConfig(cfg),
	}
}

// Complete implements LLM using the chat completions endpoint
func (o *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*messages.ChatMessage, error) {
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()
	zap.S().Debugw("openai_completion_started", "model", req.Model, "messages", len(req.Messages))

	ccr := ai.ChatCompletionRequest{
		MaxCompletionTokens: req.MaxTokens,
		Model:               req.Model,
		Messages:            MessagesToOpenAI(req.Messages),
		Temperature:         req.Temperature,
	}

	resp, err := o.Client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		var apiErr *ai.APIError
		if errors.As(err, &apiErr) {
			zap.S().Debugw("openai_api_error", "status", apiErr.HTTPStatusCode, "error", apiErr.Message)
		}
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	msg := &messages.ChatMessage{
		Role:       messages.MessageRoleAssistant,
		Content:    choice.Message.Content,
		StopReason: mapOpenAIFinishReason(choice.FinishReason),
	}
	msg.SetTokenUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return msg, nil
}

// MessagesToOpenAI converts a slice of agnostic messages to OpenAI format
func MessagesToOpenAI(msgs []messages.ChatMessage) []ai.ChatCompletionMessage {
	result := make([]ai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		result[i] = ai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

// mapOpenAIFinishReason converts OpenAI's finish reason to our normalized type
func mapOpenAIFinishReason(fr ai.FinishReason) messages.StopReason {
	switch fr {
	case ai.FinishReasonLength:
		return messages.StopReasonMaxTokens
	case ai.FinishReasonContentFilter:
		return messages.StopReasonContentFilter
	default:
		return messages.StopReasonEndTurn
	}
}
