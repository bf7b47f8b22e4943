package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/middleware"
	"github.com/flakeguard/flakeguard/services/analysis"
	"github.com/flakeguard/flakeguard/services/providers"
	"github.com/flakeguard/flakeguard/utils"
)

// AnalyzeRequest represents a test-failure diagnosis request
type AnalyzeRequest struct {
	UserPrompt   string   `json:"user_prompt" validate:"required"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Temperature  *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// AnalysisService defines the orchestration capability this handler consumes
type AnalysisService interface {
	Analyze(ctx context.Context, systemPrompt, userPrompt string, overrides *providers.Overrides, apiKeyHash string) (*analysis.Result, error)
}

// AnalyzeHandler handles diagnosis HTTP requests
type AnalyzeHandler struct {
	service  AnalysisService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAnalyzeHandler creates a new AnalyzeHandler
func NewAnalyzeHandler(service AnalysisService, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// HandleAnalyze handles POST /api/v1/analyze
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		details := validationDetails(err)
		h.logger.Warn("request validation failed", zap.Any("details", details))
		_ = utils.WriteBadRequest(w, "Validation failed", details)
		return
	}

	var overrides *providers.Overrides
	if req.Model != "" || req.MaxTokens > 0 || req.Temperature != nil {
		overrides = &providers.Overrides{
			Model:       req.Model,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		}
	}

	apiKeyHash := middleware.GetAPIKeyHashFromContext(ctx)

	result, err := h.service.Analyze(ctx, req.SystemPrompt, req.UserPrompt, overrides, apiKeyHash)
	if err != nil {
		h.writeAnalyzeError(w, err)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, result)
}

// writeAnalyzeError maps service failures onto HTTP statuses. A recoverable
// classification here means every provider was tried and failed.
func (h *AnalyzeHandler) writeAnalyzeError(w http.ResponseWriter, err error) {
	if providers.IsRecoverable(err) {
		h.logger.Error("all providers failed", zap.Error(err))
		_ = utils.WriteBadGateway(w, "")
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.logger.Warn("request aborted", zap.Error(err))
		_ = utils.WriteBadGateway(w, "Request timed out")
		return
	}
	h.logger.Error("analysis failed", zap.Error(err))
	_ = utils.WriteInternalServerError(w, "")
}

// validationDetails flattens validator errors into a field→reason map
func validationDetails(err error) map[string]interface{} {
	details := make(map[string]interface{})
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			details[fieldErr.Field()] = fieldErr.Tag()
		}
	}
	return details
}
