package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// FeeConfigService defines what the fee-config handler requires.
type FeeConfigService interface {
	RegisterFeeConfig(ctx context.Context, fc domain.FeeConfig) (domain.FeeConfig, error)
	GetFeeConfig(ctx context.Context, tier uint8) (domain.FeeConfig, error)
	ListFeeConfigs(ctx context.Context) ([]domain.FeeConfig, error)
}

// FeeConfigHandler serves the fee schedule registry.
type FeeConfigHandler struct {
	svc    FeeConfigService
	logger *slog.Logger
}

// NewFeeConfigHandler creates a FeeConfigHandler with the given service and logger.
func NewFeeConfigHandler(svc FeeConfigService, logger *slog.Logger) *FeeConfigHandler {
	return &FeeConfigHandler{svc: svc, logger: logger}
}

type registerFeeConfigRequest struct {
	Tier              uint8  `json:"tier"`
	PlatformFeeBps    uint16 `json:"platform_fee_bps"`
	TeamFeeBps        uint16 `json:"team_fee_bps"`
	CreatorFeeBps     uint16 `json:"creator_fee_bps"`
	BurnFeeBps        uint16 `json:"burn_fee_bps"`
	BeneficiaryFeeBps uint16 `json:"beneficiary_fee_bps"`
	Beneficiary       string `json:"beneficiary"`
}

// RegisterFeeConfig registers a new immutable fee schedule.
// POST /api/fee-configs
func (h *FeeConfigHandler) RegisterFeeConfig(w http.ResponseWriter, r *http.Request) {
	var req registerFeeConfigRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fc, err := h.svc.RegisterFeeConfig(r.Context(), domain.FeeConfig{
		Tier:              req.Tier,
		PlatformFeeBps:    req.PlatformFeeBps,
		TeamFeeBps:        req.TeamFeeBps,
		CreatorFeeBps:     req.CreatorFeeBps,
		BurnFeeBps:        req.BurnFeeBps,
		BeneficiaryFeeBps: req.BeneficiaryFeeBps,
		Beneficiary:       req.Beneficiary,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "register fee config")
		return
	}
	writeJSON(w, http.StatusCreated, fc)
}

// ListFeeConfigs returns all registered fee schedules.
// GET /api/fee-configs
func (h *FeeConfigHandler) ListFeeConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.svc.ListFeeConfigs(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list fee configs")
		return
	}
	if configs == nil {
		configs = []domain.FeeConfig{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fee_configs": configs})
}

// GetFeeConfig returns one fee schedule by tier.
// GET /api/fee-configs/{tier}
func (h *FeeConfigHandler) GetFeeConfig(w http.ResponseWriter, r *http.Request) {
	tier, err := strconv.ParseUint(pathParam(r, "tier"), 10, 8)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fee tier")
		return
	}

	fc, err := h.svc.GetFeeConfig(r.Context(), uint8(tier))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get fee config")
		return
	}
	writeJSON(w, http.StatusOK, fc)
}
