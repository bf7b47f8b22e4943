// Package analysis orchestrates a diagnosis request end to end: routed LLM
// call with retry, cost calculation, usage recording, and budget alerting.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/internal/retry"
	"github.com/flakeguard/flakeguard/models"
	"github.com/flakeguard/flakeguard/repositories"
	"github.com/flakeguard/flakeguard/services/costing"
	"github.com/flakeguard/flakeguard/services/providers"
)

// Analyzer is the routing capability this service consumes
type Analyzer interface {
	Analyze(ctx context.Context, systemPrompt, userPrompt string, overrides *providers.Overrides) (*providers.Analysis, error)
}

// Result bundles a completed analysis with its accounting
type Result struct {
	RequestID string              `json:"request_id"`
	Analysis  *providers.Analysis `json:"analysis"`
	Cost      decimal.Decimal     `json:"cost"`
}

// Service handles analysis orchestration
type Service struct {
	router          Analyzer
	calculator      *costing.Calculator
	usage           repositories.UsageRepository // nil when no database is configured
	retryCfg        retry.Config
	budgetThreshold decimal.Decimal
	logger          *zap.Logger
}

// NewService creates a new analysis service. usage may be nil, in which case
// the ledger and budget alerting are skipped.
func NewService(
	router Analyzer,
	calculator *costing.Calculator,
	usage repositories.UsageRepository,
	retryCfg retry.Config,
	budgetThreshold decimal.Decimal,
	logger *zap.Logger,
) *Service {
	return &Service{
		router:          router,
		calculator:      calculator,
		usage:           usage,
		retryCfg:        retryCfg,
		budgetThreshold: budgetThreshold,
		logger:          logger,
	}
}

// Analyze routes one diagnosis request and accounts for its cost.
//
// The router call is wrapped in the retry layer; transient network failures
// keep their cause chain through the adapter's error translation, so the
// default retry filter sees through to the underlying net error. Ledger
// writes are best-effort: a failed insert is logged, not surfaced, because
// the analysis itself succeeded and the caller paid for it.
func (s *Service) Analyze(ctx context.Context, systemPrompt, userPrompt string, overrides *providers.Overrides, apiKeyHash string) (*Result, error) {
	requestID := uuid.NewString()

	result, err := retry.Do(ctx, s.retryCfg, s.logger, func(ctx context.Context) (*providers.Analysis, error) {
		return s.router.Analyze(ctx, systemPrompt, userPrompt, overrides)
	})
	if err != nil {
		return nil, err
	}

	cost := s.calculator.Cost(result.Model, result.InputTokens, result.OutputTokens)

	s.logger.Info("analysis completed",
		zap.String("request_id", requestID),
		zap.String("provider", result.Provider),
		zap.String("model", result.Model),
		zap.Int("total_tokens", result.TotalTokens()),
		zap.String("cost", cost.String()))

	if s.usage != nil {
		s.recordUsage(ctx, requestID, apiKeyHash, result, cost)
		s.checkBudget(ctx)
	}

	return &Result{
		RequestID: requestID,
		Analysis:  result,
		Cost:      cost,
	}, nil
}

// recordUsage appends one entry to the usage ledger
func (s *Service) recordUsage(ctx context.Context, requestID, apiKeyHash string, result *providers.Analysis, cost decimal.Decimal) {
	record := &models.UsageRecord{
		ID:           uuid.New(),
		RequestID:    requestID,
		APIKeyHash:   apiKeyHash,
		Provider:     result.Provider,
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.TotalTokens(),
		Cost:         cost,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.usage.Create(ctx, record); err != nil {
		s.logger.Error("failed to record usage",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// checkBudget compares month-to-date spend against the alert threshold
func (s *Service) checkBudget(ctx context.Context) {
	if s.budgetThreshold.LessThanOrEqual(decimal.Zero) {
		return
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	summary, err := s.usage.Summary(ctx, monthStart, now)
	if err != nil {
		s.logger.Error("failed to query spend for budget check", zap.Error(err))
		return
	}

	alert := costing.CheckBudgetAlert(summary.TotalCost, s.budgetThreshold)
	if alert.Alert {
		s.logger.Warn("budget threshold exceeded",
			zap.String("current_spend", alert.CurrentSpend.String()),
			zap.String("threshold", alert.Threshold.String()),
			zap.Float64("percentage", alert.Percentage))
	}
}
