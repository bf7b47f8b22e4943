package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/services/providers"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	chatCompletionsPath = "/chat/completions"
)

// Adapter implements the Provider interface for OpenAI's GPT models
type Adapter struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

// New creates a new OpenAI adapter
func New(cfg providers.Config, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	defaults, _ := providers.DefaultsFor("openai")
	model, maxTokens, temperature := defaults.Resolve(cfg)

	return &Adapter{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "openai"
}

// Analyze performs one chat completion call and normalizes the response
func (a *Adapter) Analyze(ctx context.Context, req *providers.AnalysisRequest) (*providers.Analysis, error) {
	if req == nil || req.UserPrompt == "" {
		return nil, providers.NewProviderError(a.Name(), providers.KindFatal, "user prompt is required", 0, nil)
	}

	model, maxTokens, temperature := a.resolveParams(req.Overrides)

	body := chatRequest{
		Model:               model,
		MaxCompletionTokens: maxTokens,
		Temperature:         temperature,
		Messages:            buildMessages(req),
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindFatal, "failed to marshal request", 0, err)
	}

	a.logger.Debug("openai analyze request",
		zap.String("model", model),
		zap.Int("max_tokens", maxTokens))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+chatCompletionsPath, bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindFatal, "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindTransientNetwork, "request failed", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindTransientNetwork, "failed to read response", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.translateError(httpResp.StatusCode, respBody)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindVendor5xx, "failed to unmarshal response", httpResp.StatusCode, err)
	}
	if len(resp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), providers.KindVendor5xx, "response contained no choices", httpResp.StatusCode, nil)
	}

	result := &providers.Analysis{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        model,
		Provider:     a.Name(),
	}

	a.logger.Debug("openai analyze response",
		zap.Int("input_tokens", result.InputTokens),
		zap.Int("output_tokens", result.OutputTokens))

	return result, nil
}

// resolveParams applies per-call overrides over the adapter defaults
func (a *Adapter) resolveParams(o *providers.Overrides) (model string, maxTokens int, temperature float64) {
	model, maxTokens, temperature = a.model, a.maxTokens, a.temperature
	if o == nil {
		return model, maxTokens, temperature
	}
	if o.Model != "" {
		model = o.Model
	}
	if o.MaxTokens > 0 {
		maxTokens = o.MaxTokens
	}
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	return model, maxTokens, temperature
}

// buildMessages converts the unified request to the chat messages shape
func buildMessages(req *providers.AnalysisRequest) []chatMessage {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})
	return messages
}

// translateError maps an OpenAI error response to a classified error
func (a *Adapter) translateError(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return providers.NewProviderError(a.Name(), providers.KindFromStatus(statusCode), string(body), statusCode, err)
	}
	return providers.NewProviderError(
		a.Name(),
		providers.KindFromStatus(statusCode),
		errResp.Error.Message,
		statusCode,
		errors.New(errResp.Error.Type),
	)
}

// OpenAI-specific request/response types

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
	Temperature         float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
