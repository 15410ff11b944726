// Package openai provides an OpenAI-compatible LLM provider implementation.
//
// It works against any chat-completions endpoint that speaks the OpenAI wire
// format, which includes DeepSeek, Azure OpenAI, and local inference servers.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("DEEPSEEK_API_KEY"),
//	    openai.WithBaseURL("https://api.deepseek.com"),
//	    openai.WithModel("deepseek-chat"),
//	    openai.WithTemperature(0.2),
//	)
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/neuralops/auditor/pkg/types"
	"github.com/openai/openai-go"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// defaultTimeout bounds a single completion request.
	defaultTimeout = 120 * time.Second

	// maxAttempts is the total number of tries for a single completion,
	// including the first. Only transport-level failures and retryable
	// HTTP statuses consume extra attempts.
	maxAttempts = 3

	// baseRetryDelay is the initial backoff; it doubles per attempt.
	baseRetryDelay = 2 * time.Second
)

// Provider implements the LLM provider interface for OpenAI-compatible APIs.
type Provider struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	modelInfo   *types.ModelInfo

	// retryDelay is the initial backoff between attempts; shortened in tests.
	retryDelay time.Duration
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
// This enables using DeepSeek, Azure OpenAI, or local compatible services.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithTemperature sets the sampling temperature sent on requests.
func WithTemperature(t float64) ProviderOption {
	return func(p *Provider) {
		p.temperature = t
	}
}

// WithHTTPClient sets a custom HTTP client, primarily for tests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// NewProvider creates a new OpenAI-compatible provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the OPENAI_API_KEY
// environment variable. If baseURL is not provided via WithBaseURL, the
// OPENAI_BASE_URL environment variable is consulted before falling back to
// the public OpenAI endpoint.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		model:       "gpt-4o",
		apiKey:      apiKey,
		temperature: 0.2,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     DefaultBaseURL,
		retryDelay:  baseRetryDelay,
	}

	for _, opt := range opts {
		opt(p)
	}

	// If baseURL wasn't set by options, check environment variable
	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}

	p.modelInfo = &types.ModelInfo{
		Provider: "openai",
		Name:     p.model,
		Metadata: make(map[string]interface{}),
	}
	if p.baseURL != DefaultBaseURL {
		p.modelInfo.Metadata["base_url"] = p.baseURL
	}

	return p, nil
}

// Complete sends messages to the chat-completions endpoint and returns the
// full response message.
//
// Transport failures and retryable statuses (429, 5xx) are retried with
// exponential backoff up to maxAttempts; 4xx responses are returned
// immediately since retrying cannot fix them.
func (p *Provider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	var lastErr error
	delay := p.retryDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		msg, retryable, err := p.sendCompletionRequest(ctx, messages)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if !retryable || attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}

	return nil, lastErr
}

// sendCompletionRequest performs one request. The second return value
// reports whether the failure is worth retrying.
func (p *Provider) sendCompletionRequest(ctx context.Context, messages []*types.Message) (*types.Message, bool, error) {
	reqBody := map[string]interface{}{
		"model":       p.model,
		"messages":    convertToOpenAIMessages(messages),
		"temperature": p.temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, isRetryableStatus(resp.StatusCode), fmt.Errorf("API request failed with status %d (failed to read error body: %w)", resp.StatusCode, readErr)
		}
		return nil, isRetryableStatus(resp.StatusCode), fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, false, fmt.Errorf("response contained no choices")
	}

	role := completion.Choices[0].Message.Role
	if role == "" {
		role = string(types.RoleAssistant)
	}

	return &types.Message{
		Role:    types.MessageRole(role),
		Content: completion.Choices[0].Message.Content,
	}, false, nil
}

// isRetryableStatus reports whether a completion should be retried for the
// given HTTP status. Rate limiting and server-side failures are transient;
// other client errors are not.
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// GetModelInfo returns information about the model being used.
func (p *Provider) GetModelInfo() *types.ModelInfo {
	return p.modelInfo
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

// convertToOpenAIMessages converts our Message format to OpenAI's
// ChatCompletionMessageParamUnion format.
func convertToOpenAIMessages(messages []*types.Message) []openai.ChatCompletionMessageParamUnion {
	openaiMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			openaiMessages = append(openaiMessages, openai.SystemMessage(msg.Content))
		case types.RoleUser:
			openaiMessages = append(openaiMessages, openai.UserMessage(msg.Content))
		case types.RoleAssistant:
			openaiMessages = append(openaiMessages, openai.AssistantMessage(msg.Content))
		default:
			// Default to user message for unknown roles
			openaiMessages = append(openaiMessages, openai.UserMessage(msg.Content))
		}
	}

	return openaiMessages
}
