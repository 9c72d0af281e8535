package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zmartlabs/zmartd/internal/domain"
	"github.com/zmartlabs/zmartd/internal/service"
)

// BetService defines what the bet handler requires from the service layer.
type BetService interface {
	PlaceBet(ctx context.Context, in service.PlaceBetInput) (domain.UserBet, error)
	GetBet(ctx context.Context, user, marketID string) (domain.UserBet, error)
	ListBetsByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.UserBet, error)
	ListBetsByUser(ctx context.Context, user string, opts domain.ListOpts) ([]domain.UserBet, error)
	ClaimWinnings(ctx context.Context, user, marketID string) (domain.Settlement, error)
	ClaimCreatorFees(ctx context.Context, marketID, caller string) (uint64, error)
}

// BetHandler serves betting and settlement endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

type placeBetRequest struct {
	User      string         `json:"user"`
	Side      domain.BetSide `json:"side"`
	Amount    uint64         `json:"amount"`
	MinPayout uint64         `json:"min_payout"`
}

// PlaceBet stakes on one side of an active market.
// POST /api/markets/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	var req placeBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Side != domain.SideYes && req.Side != domain.SideNo {
		writeError(w, http.StatusBadRequest, "side must be yes or no")
		return
	}

	bet, err := h.bets.PlaceBet(r.Context(), service.PlaceBetInput{
		User:      req.User,
		MarketID:  marketID,
		Side:      req.Side,
		Amount:    req.Amount,
		MinPayout: req.MinPayout,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "place bet")
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

// ListMarketBets returns the bets on a market.
// GET /api/markets/{id}/bets
func (h *BetHandler) ListMarketBets(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	bets, err := h.bets.ListBetsByMarket(r.Context(), marketID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list market bets")
		return
	}
	if bets == nil {
		bets = []domain.UserBet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets})
}

// GetBet returns the bet one user holds on a market.
// GET /api/markets/{id}/bets/{user}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	user := pathParam(r, "user")

	bet, err := h.bets.GetBet(r.Context(), user, marketID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get bet")
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// ListUserBets returns a user's bets across all markets.
// GET /api/users/{user}/bets
func (h *BetHandler) ListUserBets(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")
	bets, err := h.bets.ListBetsByUser(r.Context(), user, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list user bets")
		return
	}
	if bets == nil {
		bets = []domain.UserBet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets})
}

type claimRequest struct {
	User string `json:"user"`
}

// ClaimWinnings settles the caller's bet on a terminal market.
// POST /api/markets/{id}/claim
func (h *BetHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settlement, err := h.bets.ClaimWinnings(r.Context(), req.User, marketID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "claim winnings")
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

type claimCreatorFeesRequest struct {
	Creator string `json:"creator"`
}

// ClaimCreatorFees releases the market's accrued creator fees to its creator.
// POST /api/markets/{id}/creator-fees/claim
func (h *BetHandler) ClaimCreatorFees(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	var req claimCreatorFeesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := h.bets.ClaimCreatorFees(r.Context(), marketID, req.Creator)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "claim creator fees")
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"amount": amount})
}
