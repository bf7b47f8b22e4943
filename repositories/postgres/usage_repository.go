package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/models"
	"github.com/flakeguard/flakeguard/repositories"
)

// UsageRepository implements the repositories.UsageRepository interface
type UsageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB, logger *zap.Logger) repositories.UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores one usage record
func (r *UsageRepository) Create(ctx context.Context, record *models.UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			id, request_id, api_key_hash, provider, model,
			input_tokens, output_tokens, total_tokens, cost, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.RequestID,
		record.APIKeyHash,
		record.Provider,
		record.Model,
		record.InputTokens,
		record.OutputTokens,
		record.TotalTokens,
		record.Cost,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}

	r.logger.Debug("usage record created",
		zap.String("id", record.ID.String()),
		zap.String("provider", record.Provider),
		zap.String("cost", record.Cost.String()))
	return nil
}

// Summary aggregates usage between the given instants
func (r *UsageRepository) Summary(ctx context.Context, start, end time.Time) (*models.UsageSummary, error) {
	query := `
		SELECT COUNT(id),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE created_at >= $1 AND created_at < $2
	`

	summary := &models.UsageSummary{
		PeriodStart: start,
		PeriodEnd:   end,
	}

	err := r.db.QueryRowContext(ctx, query, start, end).Scan(
		&summary.TotalRequests,
		&summary.TotalInputTokens,
		&summary.TotalOutputTokens,
		&summary.TotalCost,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage summary: %w", err)
	}

	return summary, nil
}
