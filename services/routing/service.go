package routing

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/services/providers"
)

// ErrNoProviders is returned when a router is constructed without providers
var ErrNoProviders = errors.New("at least one provider is required")

// Router dispatches analysis requests across an ordered provider list.
// Index 0 is the primary; later entries are fallbacks tried strictly in
// order, one full request/response cycle at a time.
type Router struct {
	providers []providers.Provider
	logger    *zap.Logger
}

// NewRouter creates a router over the given priority-ordered providers
func NewRouter(provs []providers.Provider, logger *zap.Logger) (*Router, error) {
	if len(provs) == 0 {
		return nil, ErrNoProviders
	}
	return &Router{
		providers: provs,
		logger:    logger,
	}, nil
}

// Providers returns the configured provider list in priority order.
func (r *Router) Providers() []providers.Provider {
	return r.providers
}

// Analyze tries each provider in order until one succeeds.
//
// A recoverable failure (classified vendor/network error) logs a warning and
// falls through to the next provider. Any other error is treated as a
// programming bug and propagates immediately, without fallback, so that it
// is never masked as a vendor outage. When every provider fails recoverably,
// the error from the last provider attempted is returned.
func (r *Router) Analyze(ctx context.Context, systemPrompt, userPrompt string, overrides *providers.Overrides) (*providers.Analysis, error) {
	req := &providers.AnalysisRequest{
		UserPrompt:   userPrompt,
		SystemPrompt: systemPrompt,
		Overrides:    overrides,
	}

	var lastErr error

	for _, provider := range r.providers {
		r.logger.Info("router attempt", zap.String("provider", provider.Name()))

		result, err := provider.Analyze(ctx, req)
		if err == nil {
			r.logger.Info("router success",
				zap.String("provider", provider.Name()),
				zap.Int("input_tokens", result.InputTokens),
				zap.Int("output_tokens", result.OutputTokens))
			return result, nil
		}

		if !providers.IsRecoverable(err) {
			return nil, err
		}

		lastErr = err
		r.logger.Warn("router fallback",
			zap.String("failed_provider", provider.Name()),
			zap.Error(err))
	}

	r.logger.Error("all providers failed",
		zap.Int("providers_tried", len(r.providers)),
		zap.Error(lastErr))

	return nil, lastErr
}
