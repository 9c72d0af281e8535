package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// StatsProvider supplies the aggregate numbers for the status endpoint.
type StatsProvider interface {
	Stats(ctx context.Context) (domain.MarketStats, error)
}

// StatusHandler serves the platform status snapshot for dashboards.
type StatusHandler struct {
	mode   string
	stats  StatsProvider
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler for the given run mode.
func NewStatusHandler(mode string, stats StatsProvider, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{mode: mode, stats: stats, logger: logger}
}

// GetStatus responds with the run mode and aggregate market statistics.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"total_markets":  st.TotalMarkets,
		"active_markets": st.ActiveMarkets,
		"total_volume":   st.TotalVolume,
	})
}
