// Package repositories defines the persistence interfaces consumed by the
// service layer. Concrete implementations live in subpackages.
package repositories

import (
	"context"
	"time"

	"github.com/flakeguard/flakeguard/models"
)

// UsageRepository persists the usage ledger
type UsageRepository interface {
	// Create stores one usage record
	Create(ctx context.Context, record *models.UsageRecord) error

	// Summary aggregates usage between the given instants
	Summary(ctx context.Context, start, end time.Time) (*models.UsageSummary, error)
}
