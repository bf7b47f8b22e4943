package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/repositories"
	"github.com/flakeguard/flakeguard/utils"
)

const (
	defaultSummaryDays = 30
	maxSummaryDays     = 365
)

// UsageHandler serves aggregated usage statistics
type UsageHandler struct {
	usage  repositories.UsageRepository
	logger *zap.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usage repositories.UsageRepository, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// HandleSummary handles GET /api/v1/usage/summary?days=N
func (h *UsageHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	days := defaultSummaryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxSummaryDays {
			_ = utils.WriteBadRequest(w, "days must be between 1 and 365", nil)
			return
		}
		days = parsed
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	summary, err := h.usage.Summary(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to query usage summary", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, summary)
}
