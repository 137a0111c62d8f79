package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/alexschlessinger/calmchat/messages"
)

var (
	// ErrInvalidModel is returned when a model lacks the provider prefix
	ErrInvalidModel = errors.New("model must include provider prefix (e.g., 'openai/gpt-4.1', 'anthropic/claude-sonnet-4-20250514')")
	// ErrUnknownProvider is returned for a provider prefix with no client
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrMissingAPIKey is returned when a provider needs a key that is not configured
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrEmptyResponse is returned when the upstream answers without any choice
	ErrEmptyResponse = errors.New("upstream returned no choices")
)

// Providers lists the supported provider prefixes
var Providers = []string{"openai", "anthropic", "gemini", "ollama"}

// MultiPass routes requests to different LLM providers based on model prefix
type MultiPass struct {
	apiKeys map[string]string
	baseURL string
	// newClient builds the provider client; replaced in tests
	newClient func(provider, apiKey, baseURL string) (LLM, error)
}

var _ LLM = (*MultiPass)(nil)

// EnvVarNameForProvider returns the environment variable name holding the provider's key
func EnvVarNameForProvider(provider string) string {
	return fmt.Sprintf("CALMCHAT_%sKEY", strings.ToUpper(provider))
}

// NewMultiPass creates a new multi-provider router. baseURL, when set,
// overrides every provider's default endpoint.
func NewMultiPass(apiKeys map[string]string, baseURL string) *MultiPass {
	return &MultiPass{
		apiKeys:   apiKeys,
		baseURL:   baseURL,
		newClient: newProviderClient,
	}
}

func newProviderClient(provider, apiKey, baseURL string) (LLM, error) {
	switch provider {
	case "openai":
		return NewOpenAIClient(apiKey, baseURL), nil
	case "anthropic":
		return NewAnthropicClient(apiKey, baseURL), nil
	case "gemini":
		return NewGeminiClient(apiKey, baseURL), nil
	case "ollama":
		return NewOllamaClient(baseURL, apiKey), nil
	default:
		return nil, fmt.Errorf("%w '%s'. Valid providers: %s", ErrUnknownProvider, provider, strings.Join(Providers, ", "))
	}
}

// ParseModel splits "provider/model" into its parts
func ParseModel(model string) (provider, name string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w. Got: %s", ErrInvalidModel, model)
	}
	return strings.ToLower(parts[0]), parts[1], nil
}

// CheckCredentials reports whether a request for model could be sent,
// without contacting the provider. Ollama can be keyless.
func (m *MultiPass) CheckCredentials(model string) error {
	provider, _, err := ParseModel(model)
	if err != nil {
		return err
	}
	if !slices.Contains(Providers, provider) {
		return fmt.Errorf("%w '%s'. Valid providers: %s", ErrUnknownProvider, provider, strings.Join(Providers, ", "))
	}
	if m.apiKeys[provider] == "" && provider != "ollama" {
		return fmt.Errorf("%w for provider '%s'. Set the %s environment variable", ErrMissingAPIKey, provider, EnvVarNameForProvider(provider))
	}
	return nil
}

// Complete routes the request to the appropriate provider
func (m *MultiPass) Complete(ctx context.Context, req *CompletionRequest) (*messages.ChatMessage, error) {
	provider, model, err := ParseModel(req.Model)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(Providers, provider) {
		return nil, fmt.Errorf("%w '%s'. Valid providers: %s", ErrUnknownProvider, provider, strings.Join(Providers, ", "))
	}

	// Copy so the caller's request keeps its prefixed model name
	routed := *req
	routed.Model = model
	if routed.BaseURL == "" {
		routed.BaseURL = m.baseURL
	}
	if routed.APIKey == "" {
		routed.APIKey = m.apiKeys[provider]
	}
	if routed.APIKey == "" && provider != "ollama" {
		return nil, fmt.Errorf("%w for provider '%s'. Set the %s environment variable", ErrMissingAPIKey, provider, EnvVarNameForProvider(provider))
	}

	client, err := m.newClient(provider, routed.APIKey, routed.BaseURL)
	if err != nil {
		return nil, err
	}
	return client.Complete(ctx, &routed)
}
