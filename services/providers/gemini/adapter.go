package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/services/providers"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Adapter implements the Provider interface for Google's Gemini models
type Adapter struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

// New creates a new Gemini adapter
func New(cfg providers.Config, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	defaults, _ := providers.DefaultsFor("google")
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

// Name returns the provider name. The id is "google" to match the
// credential registry, not the model family.
func (a *Adapter) Name() string {
	return "google"
}

// Analyze performs one generateContent call and normalizes the response
func (a *Adapter) Analyze(ctx context.Context, req *providers.AnalysisRequest) (*providers.Analysis, error) {
	if req == nil || req.UserPrompt == "" {
		return nil, providers.NewProviderError(a.Name(), providers.KindFatal, "user prompt is required", 0, nil)
	}

	model, maxTokens, temperature := a.resolveParams(req.Overrides)

	body := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.UserPrompt}}},
		},
		GenerationConfig: generationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     temperature,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindFatal, "failed to marshal request", 0, err)
	}

	a.logger.Debug("gemini analyze request",
		zap.String("model", model),
		zap.Int("max_tokens", maxTokens))

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindFatal, "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.apiKey)

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

	var resp generateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindVendor5xx, "failed to unmarshal response", httpResp.StatusCode, err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, providers.NewProviderError(a.Name(), providers.KindVendor5xx, "response contained no candidates", httpResp.StatusCode, nil)
	}

	result := &providers.Analysis{
		Content:      resp.Candidates[0].Content.Parts[0].Text,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		Model:        model,
		Provider:     a.Name(),
	}

	a.logger.Debug("gemini analyze response",
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

// translateError maps a Gemini error response to a classified error
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
		errors.New(errResp.Error.Status),
	)
}

// Gemini-specific request/response types

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
