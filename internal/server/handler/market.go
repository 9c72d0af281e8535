package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/zmartlabs/zmartd/internal/domain"
	"github.com/zmartlabs/zmartd/internal/service"
)

// MarketService defines what the market handler requires from the service
// layer. Declared locally so the handler package does not depend on the
// concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, in service.CreateMarketInput) (domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetMarketByAddress(ctx context.Context, address string) (domain.Market, error)
	ListMarkets(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error)
	ResolveMarket(ctx context.Context, marketID string, outcome domain.MarketOutcome, sigHex string) (domain.Market, error)
	CancelMarket(ctx context.Context, marketID, authority string) (domain.Market, error)
	Odds(ctx context.Context, marketID string) (yes, no float64, err error)
}

// MarketHandler serves market lifecycle endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

type createMarketRequest struct {
	Question    string    `json:"question"`
	Creator     string    `json:"creator"`
	EndTime     time.Time `json:"end_time"`
	FeeConfigID uint8     `json:"fee_config_id"`
}

// CreateMarket opens a new market directly, outside governance.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.markets.CreateMarket(r.Context(), service.CreateMarketInput{
		Question:    req.Question,
		Creator:     req.Creator,
		EndTime:     req.EndTime,
		FeeConfigID: req.FeeConfigID,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "create market")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets, optionally filtered by status.
// GET /api/markets?status=active&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	status := domain.MarketStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.MarketStatusActive, domain.MarketStatusResolved, domain.MarketStatusCancelled:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	markets, err := h.markets.ListMarkets(r.Context(), status, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list markets")
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by id.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetMarketByAddress returns a single market by its derived record address.
// GET /api/markets/address/{address}
func (h *MarketHandler) GetMarketByAddress(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	m, err := h.markets.GetMarketByAddress(r.Context(), address)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get market by address")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetOdds returns the display odds for a market.
// GET /api/markets/{id}/odds
func (h *MarketHandler) GetOdds(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	yes, no, err := h.markets.Odds(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get odds")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"yes": yes,
		"no":  no,
	})
}

type resolveMarketRequest struct {
	Outcome   domain.MarketOutcome `json:"outcome"`
	Signature string               `json:"signature"`
}

// ResolveMarket settles an ended market. The body carries the outcome and a
// resolver signature over market address and outcome.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req resolveMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.markets.ResolveMarket(r.Context(), id, req.Outcome, req.Signature)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "resolve market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type cancelMarketRequest struct {
	Authority string `json:"authority"`
}

// CancelMarket voids an active market, making all stakes refundable.
// POST /api/markets/{id}/cancel
func (h *MarketHandler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req cancelMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.markets.CancelMarket(r.Context(), id, req.Authority)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "cancel market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}
