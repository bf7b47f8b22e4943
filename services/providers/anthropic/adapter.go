package anthropic

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
	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Adapter implements the Provider interface for Anthropic's Claude models
type Adapter struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

// New creates a new Anthropic adapter
func New(cfg providers.Config, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	defaults, _ := providers.DefaultsFor("anthropic")
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
	return "anthropic"
}

// Analyze performs one messages API call and normalizes the response
func (a *Adapter) Analyze(ctx context.Context, req *providers.AnalysisRequest) (*providers.Analysis, error) {
	if req == nil || req.UserPrompt == "" {
		return nil, providers.NewProviderError(a.Name(), providers.KindFatal, "user prompt is required", 0, nil)
	}

	model, maxTokens, temperature := a.resolveParams(req.Overrides)

	body := messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []message{
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if req.SystemPrompt != "" {
		body.System = req.SystemPrompt
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindFatal, "failed to marshal request", 0, err)
	}

	a.logger.Debug("anthropic analyze request",
		zap.String("model", model),
		zap.Int("max_tokens", maxTokens))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+messagesPath, bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindFatal, "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

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

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindVendor5xx, "failed to unmarshal response", httpResp.StatusCode, err)
	}
	if len(resp.Content) == 0 {
		return nil, providers.NewProviderError(a.Name(), providers.KindVendor5xx, "response contained no content blocks", httpResp.StatusCode, nil)
	}

	result := &providers.Analysis{
		Content:      resp.Content[0].Text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Model:        model,
		Provider:     a.Name(),
	}

	a.logger.Debug("anthropic analyze response",
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

// translateError maps an Anthropic error response to a classified error
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

// Anthropic-specific request/response types

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Content []contentBlock `json:"content"`
	Usage   usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
