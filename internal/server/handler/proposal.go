package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zmartlabs/zmartd/internal/domain"
	"github.com/zmartlabs/zmartd/internal/service"
)

// GovernanceService defines what the proposal handler requires from the
// service layer.
type GovernanceService interface {
	CreateProposal(ctx context.Context, in service.CreateProposalInput) (domain.Proposal, error)
	GetProposal(ctx context.Context, id uint64) (domain.Proposal, error)
	GetProposalByAddress(ctx context.Context, address string) (domain.Proposal, error)
	ListProposals(ctx context.Context, status domain.ProposalStatus, opts domain.ListOpts) ([]domain.Proposal, error)
	Vote(ctx context.Context, in service.VoteInput) (domain.Proposal, error)
	Execute(ctx context.Context, proposalID uint64) (domain.Proposal, domain.Market, error)
	ListVotes(ctx context.Context, proposalID uint64, opts domain.ListOpts) ([]domain.ProposalVote, error)
}

// ProposalHandler serves governance endpoints.
type ProposalHandler struct {
	gov    GovernanceService
	logger *slog.Logger
}

// NewProposalHandler creates a ProposalHandler with the given service and logger.
func NewProposalHandler(gov GovernanceService, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{gov: gov, logger: logger}
}

func parseProposalID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(pathParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

type createProposalRequest struct {
	Proposer    string    `json:"proposer"`
	Question    string    `json:"question"`
	EndTime     time.Time `json:"end_time"`
	FeeConfigID uint8     `json:"fee_config_id"`
}

// CreateProposal submits a market proposal for community voting.
// POST /api/proposals
func (h *ProposalHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.gov.CreateProposal(r.Context(), service.CreateProposalInput{
		Proposer:    req.Proposer,
		Question:    req.Question,
		EndTime:     req.EndTime,
		FeeConfigID: req.FeeConfigID,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "create proposal")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListProposals returns proposals, optionally filtered by status.
// GET /api/proposals?status=pending
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	status := domain.ProposalStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.ProposalStatusPending, domain.ProposalStatusApproved,
		domain.ProposalStatusRejected, domain.ProposalStatusExecuted:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	proposals, err := h.gov.ListProposals(r.Context(), status, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list proposals")
		return
	}
	if proposals == nil {
		proposals = []domain.Proposal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"proposals": proposals,
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})
}

// GetProposal returns a single proposal by id.
// GET /api/proposals/{id}
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProposalID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	p, err := h.gov.GetProposal(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get proposal")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetProposalByAddress returns a proposal by its derived record address.
// GET /api/proposals/address/{address}
func (h *ProposalHandler) GetProposalByAddress(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing proposal address")
		return
	}

	p, err := h.gov.GetProposalByAddress(r.Context(), address)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get proposal by address")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type voteRequest struct {
	Voter    string          `json:"voter"`
	VoteType domain.VoteType `json:"vote_type"`
}

// Vote casts an up or down vote on a pending proposal.
// POST /api/proposals/{id}/votes
func (h *ProposalHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProposalID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}
	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.gov.Vote(r.Context(), service.VoteInput{
		Voter:      req.Voter,
		ProposalID: id,
		VoteType:   req.VoteType,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "cast vote")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListVotes returns the votes cast on a proposal.
// GET /api/proposals/{id}/votes
func (h *ProposalHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProposalID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	votes, err := h.gov.ListVotes(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list votes")
		return
	}
	if votes == nil {
		votes = []domain.ProposalVote{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes})
}

type executeResponse struct {
	Proposal domain.Proposal `json:"proposal"`
	Market   domain.Market   `json:"market"`
}

// Execute turns an approved proposal into a live market.
// POST /api/proposals/{id}/execute
func (h *ProposalHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProposalID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	p, m, err := h.gov.Execute(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "execute proposal")
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{Proposal: p, Market: m})
}
