package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openaicompat"
)

// Retry configuration defaults
const (
	defaultMaxRetries  = 5
	defaultInitBackoff = 1 * time.Second
	defaultMaxBackoff  = 60 * time.Second
	backoffFactor      = 2.0
)

// isRateLimitError checks if the error is a rate limit error.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "capacity")
}

// isServerError checks if the error is a transient server error (5xx).
func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") ||
		strings.Contains(errStr, "temporarily unavailable")
}

// isRetryableError checks if the error is retryable (rate limit or server error).
func isRetryableError(err error) bool {
	return isRateLimitError(err) || isServerError(err)
}

// isBillingError checks if the error is a billing/payment/quota error (fatal, no retry).
func isBillingError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "billing") ||
		strings.Contains(errStr, "payment") ||
		strings.Contains(errStr, "credits") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "insufficient") ||
		strings.Contains(errStr, "402") ||
		strings.Contains(errStr, "subscription") ||
		strings.Contains(errStr, "expired")
}

// Options configures the chat transport.
type Options struct {
	Provider   string // lmstudio|openai-compat|openrouter|litellm|ollama|openai|anthropic
	Model      string
	BaseURL    string
	APIKey     string
	MaxTokens  int
	MaxRetries int
	MaxBackoff time.Duration
}

// FantasyAdapter wraps a fantasy.LanguageModel to implement Provider.
type FantasyAdapter struct {
	model      fantasy.LanguageModel
	maxTokens  int
	maxRetries int
	maxBackoff time.Duration
}

// Model returns the wrapped model's identifier.
func (a *FantasyAdapter) Model() string {
	return a.model.Model()
}

// Chat implements Provider using fantasy's Generate method, retrying
// transient failures with exponential backoff.
func (a *FantasyAdapter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var prompt fantasy.Prompt

	for _, m := range req.Messages {
		var msg fantasy.Message

		switch m.Role {
		case RoleSystem:
			msg = fantasy.NewSystemMessage(m.Content)
		case RoleUser:
			msg = fantasy.NewUserMessage(m.Content)
		case RoleAssistant:
			var parts []fantasy.MessagePart
			if m.Content != "" {
				parts = append(parts, fantasy.TextPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				parts = append(parts, fantasy.ToolCallPart{
					ToolCallID: tc.ID,
					ToolName:   tc.Name,
					Input:      string(argsJSON),
				})
			}
			msg = fantasy.Message{
				Role:    fantasy.MessageRoleAssistant,
				Content: parts,
			}
		case RoleTool:
			msg = fantasy.Message{
				Role: fantasy.MessageRoleTool,
				Content: []fantasy.MessagePart{
					fantasy.ToolResultPart{
						ToolCallID: m.ToolCallID,
						Output:     fantasy.ToolResultOutputContentText{Text: m.Content},
					},
				},
			}
		default:
			continue
		}

		prompt = append(prompt, msg)
	}

	var tools []fantasy.Tool
	for _, t := range req.Tools {
		tools = append(tools, fantasy.FunctionTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	maxTokens := int64(a.maxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	call := fantasy.Call{
		Prompt:          prompt,
		Tools:           tools,
		MaxOutputTokens: &maxTokens,
	}

	maxRetries := a.maxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	maxBackoff := a.maxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	var resp *fantasy.Response
	var err error
	backoff := defaultInitBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err = a.model.Generate(ctx, call)
		if err == nil {
			break
		}

		// Billing errors are fatal - no retry
		if isBillingError(err) {
			return nil, fmt.Errorf("billing/payment error (fatal): %w", err)
		}

		if !isRetryableError(err) {
			return nil, fmt.Errorf("chat completion failed: %w", err)
		}

		if attempt == maxRetries {
			return nil, fmt.Errorf("chat completion failed after %d retries: %w", maxRetries, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	result := &ChatResponse{
		StopReason:   string(resp.FinishReason),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Model:        a.model.Model(),
	}

	for _, content := range resp.Content {
		switch c := content.(type) {
		case *fantasy.TextContent:
			result.Content += c.Text
		case fantasy.TextContent:
			result.Content += c.Text
		case *fantasy.ReasoningContent:
			result.Thinking += c.Text
		case fantasy.ReasoningContent:
			result.Thinking += c.Text
		case *fantasy.ToolCallContent:
			result.ToolCalls = append(result.ToolCalls, parseToolCall(c.ToolCallID, c.ToolName, c.Input))
		case fantasy.ToolCallContent:
			result.ToolCalls = append(result.ToolCalls, parseToolCall(c.ToolCallID, c.ToolName, c.Input))
		}
	}

	return result, nil
}

// parseToolCall decodes the model's JSON argument payload. Undecodable
// input yields nil Args; the dispatcher reports the missing parameters.
func parseToolCall(id, name, input string) ToolCall {
	var args map[string]interface{}
	json.Unmarshal([]byte(input), &args)
	return ToolCall{ID: id, Name: name, Args: args}
}

// newFantasyProvider creates a fantasy provider for the given provider
// name, API key, and base URL. Local and aggregator providers speak the
// OpenAI-compatible dialect.
func newFantasyProvider(providerName, apiKey, baseURL string) (fantasy.Provider, error) {
	switch providerName {
	case "anthropic":
		if baseURL != "" {
			return openaicompat.New(
				openaicompat.WithBaseURL(baseURL),
				openaicompat.WithAPIKey(apiKey),
				openaicompat.WithName("anthropic"),
			)
		}
		return anthropic.New(anthropic.WithAPIKey(apiKey))
	case "openai":
		if baseURL != "" {
			return openaicompat.New(
				openaicompat.WithBaseURL(baseURL),
				openaicompat.WithAPIKey(apiKey),
				openaicompat.WithName("openai"),
			)
		}
		return openai.New(openai.WithAPIKey(apiKey))
	case "openrouter":
		url := "https://openrouter.ai/api/v1"
		if baseURL != "" {
			url = baseURL
		}
		return openaicompat.New(
			openaicompat.WithBaseURL(url),
			openaicompat.WithAPIKey(apiKey),
			openaicompat.WithName("openrouter"),
		)
	case "ollama":
		url := "http://localhost:11434/v1"
		if baseURL != "" {
			url = baseURL
		}
		return openaicompat.New(
			openaicompat.WithBaseURL(url),
			openaicompat.WithAPIKey(apiKey),
			openaicompat.WithName("ollama"),
		)
	case "lmstudio":
		url := "http://localhost:1234/v1"
		if baseURL != "" {
			url = baseURL
		}
		return openaicompat.New(
			openaicompat.WithBaseURL(url),
			openaicompat.WithAPIKey(apiKey),
			openaicompat.WithName("lmstudio"),
		)
	case "openai-compat", "litellm":
		if baseURL == "" {
			return nil, fmt.Errorf("base_url is required for provider %s", providerName)
		}
		return openaicompat.New(
			openaicompat.WithBaseURL(baseURL),
			openaicompat.WithAPIKey(apiKey),
			openaicompat.WithName(providerName),
		)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}

// NewProvider creates the chat transport from resolved options.
func NewProvider(opts Options) (Provider, error) {
	if opts.Provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	fantasyProvider, err := newFantasyProvider(opts.Provider, opts.APIKey, opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", opts.Provider, err)
	}

	model, err := fantasyProvider.LanguageModel(context.Background(), opts.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to get model %s: %w", opts.Model, err)
	}

	return &FantasyAdapter{
		model:      model,
		maxTokens:  opts.MaxTokens,
		maxRetries: opts.MaxRetries,
		maxBackoff: opts.MaxBackoff,
	}, nil
}
