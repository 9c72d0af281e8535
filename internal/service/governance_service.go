package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zmartlabs/zmartd/internal/crypto"
	"github.com/zmartlabs/zmartd/internal/domain"
	"github.com/zmartlabs/zmartd/internal/engine"
)

// GovernanceServiceConfig carries the tunables for GovernanceService.
type GovernanceServiceConfig struct {
	Governance engine.GovernanceParams
	Market     engine.MarketParams
	VoteRate   RateLimit
}

// GovernanceService owns the proposal lifecycle: creation, voting, the
// approval rule, and execution into a live market. Decisions are evaluated
// lazily; there is no background scheduler watching voting windows, so every
// read and mutation first settles any decision the clock has already made.
type GovernanceService struct {
	proposals domain.ProposalStore
	fees      domain.FeeConfigStore
	cache     domain.ProposalCache
	limiter   domain.RateLimiter
	bus       domain.SignalBus
	audit     domain.AuditStore
	clock     domain.Clock
	logger    *slog.Logger
	params    engine.GovernanceParams
	market    engine.MarketParams
	voteRate  RateLimit
}

// NewGovernanceService creates a GovernanceService with all required
// dependencies. Cache, limiter, bus, and audit may be nil.
func NewGovernanceService(
	proposals domain.ProposalStore,
	fees domain.FeeConfigStore,
	cache domain.ProposalCache,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	audit domain.AuditStore,
	clock domain.Clock,
	logger *slog.Logger,
	cfg GovernanceServiceConfig,
) *GovernanceService {
	return &GovernanceService{
		proposals: proposals,
		fees:      fees,
		cache:     cache,
		limiter:   limiter,
		bus:       bus,
		audit:     audit,
		clock:     clock,
		logger:    logger,
		params:    cfg.Governance,
		market:    cfg.Market,
		voteRate:  cfg.VoteRate,
	}
}

// CreateProposalInput carries the parameters for a new proposal.
type CreateProposalInput struct {
	Proposer    string
	Question    string
	EndTime     time.Time // end time of the market the proposal would create
	FeeConfigID uint8
}

// CreateProposal validates the input and persists a pending proposal. The
// proposal id comes from the store's counter; the future market's id is
// fixed now so the community votes on a fully specified market.
func (s *GovernanceService) CreateProposal(ctx context.Context, in CreateProposalInput) (domain.Proposal, error) {
	if !crypto.ValidIdentity(in.Proposer) {
		return domain.Proposal{}, domain.ErrInvalidIdentity
	}
	if _, err := s.fees.GetByTier(ctx, in.FeeConfigID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Proposal{}, domain.ErrUnknownFeeConfig
		}
		return domain.Proposal{}, fmt.Errorf("governance_service: look up fee tier %d: %w", in.FeeConfigID, err)
	}

	marketID := uuid.New().String()
	p, err := engine.NewProposal(in.Proposer, marketID, in.Question, in.EndTime, in.FeeConfigID, s.clock.Now())
	if err != nil {
		return domain.Proposal{}, err
	}

	p, err = s.proposals.Create(ctx, p, crypto.ProposalAddress)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("governance_service: create proposal: %w", err)
	}

	s.logger.InfoContext(ctx, "proposal created",
		slog.Uint64("proposal_id", p.ProposalID),
		slog.String("proposer", p.Proposer),
		slog.String("market_id", p.MarketID),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelProposals, domain.Event{
		Type: domain.EventProposalCreated, At: p.CreatedAt, Proposal: &p,
	})
	auditLog(ctx, s.audit, s.logger, domain.EventProposalCreated, map[string]any{
		"proposal_id": p.ProposalID,
		"proposer":    p.Proposer,
	})
	return p, nil
}

// VoteInput carries the parameters for one vote.
type VoteInput struct {
	Voter      string
	ProposalID uint64
	VoteType   domain.VoteType
}

// Vote casts a vote and applies the approval rule to the new tally. When
// the vote tips the proposal over the threshold, or the voting window has
// already closed, the decision lands in the same call.
func (s *GovernanceService) Vote(ctx context.Context, in VoteInput) (domain.Proposal, error) {
	if !crypto.ValidIdentity(in.Voter) {
		return domain.Proposal{}, domain.ErrInvalidIdentity
	}
	if in.VoteType != domain.VoteUp && in.VoteType != domain.VoteDown {
		return domain.Proposal{}, fmt.Errorf("governance_service: %w: vote type %q", domain.ErrInvalidAmount, in.VoteType)
	}
	if err := s.allow(ctx, "vote:"+in.Voter); err != nil {
		return domain.Proposal{}, err
	}

	p, err := s.proposals.GetByID(ctx, in.ProposalID)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("governance_service: get proposal %d: %w", in.ProposalID, err)
	}

	// Settle an already-elapsed window before accepting the vote.
	p, err = s.settleDecision(ctx, p)
	if err != nil {
		return domain.Proposal{}, err
	}
	if err := engine.ValidateVote(p); err != nil {
		return domain.Proposal{}, err
	}

	vote := domain.ProposalVote{
		Voter:      in.Voter,
		ProposalID: in.ProposalID,
		Address:    crypto.ProposalVoteAddress(in.Voter, in.ProposalID),
		VoteType:   in.VoteType,
		CastAt:     s.clock.Now(),
	}

	p, err = s.proposals.CastVote(ctx, vote)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateVote) ||
			errors.Is(err, domain.ErrProposalNotPending) ||
			errors.Is(err, domain.ErrNotFound) {
			return domain.Proposal{}, err
		}
		return domain.Proposal{}, fmt.Errorf("governance_service: cast vote: %w", err)
	}

	s.invalidate(ctx, in.ProposalID)
	s.logger.InfoContext(ctx, "vote cast",
		slog.Uint64("proposal_id", in.ProposalID),
		slog.String("voter", in.Voter),
		slog.String("vote_type", string(in.VoteType)),
		slog.Int64("net", p.Net()),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelProposals, domain.Event{
		Type: domain.EventVoteCast, At: vote.CastAt, Vote: &vote,
	})
	auditLog(ctx, s.audit, s.logger, domain.EventVoteCast, map[string]any{
		"proposal_id": in.ProposalID,
		"voter":       in.Voter,
		"vote_type":   string(in.VoteType),
	})

	// The new tally may have crossed the instant-approval threshold.
	p, err = s.settleDecision(ctx, p)
	if err != nil {
		return domain.Proposal{}, err
	}
	return p, nil
}

// Execute turns an approved proposal into a live market. Anyone may execute;
// approval is the only gate.
func (s *GovernanceService) Execute(ctx context.Context, proposalID uint64) (domain.Proposal, domain.Market, error) {
	p, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, domain.Market{}, fmt.Errorf("governance_service: get proposal %d: %w", proposalID, err)
	}

	p, err = s.settleDecision(ctx, p)
	if err != nil {
		return domain.Proposal{}, domain.Market{}, err
	}
	if err := engine.ValidateExecute(p); err != nil {
		return domain.Proposal{}, domain.Market{}, err
	}

	now := s.clock.Now()
	m, err := engine.MarketFromProposal(p, now, s.market)
	if err != nil {
		return domain.Proposal{}, domain.Market{}, err
	}
	m.Address = crypto.MarketAddress(m.MarketID)

	if err := s.proposals.Execute(ctx, proposalID, m, now); err != nil {
		if errors.Is(err, domain.ErrAlreadyExecuted) || errors.Is(err, domain.ErrProposalNotApproved) {
			return domain.Proposal{}, domain.Market{}, err
		}
		return domain.Proposal{}, domain.Market{}, fmt.Errorf("governance_service: execute proposal %d: %w", proposalID, err)
	}

	p, err = s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, domain.Market{}, fmt.Errorf("governance_service: reload proposal %d: %w", proposalID, err)
	}

	s.invalidate(ctx, proposalID)
	s.logger.InfoContext(ctx, "proposal executed",
		slog.Uint64("proposal_id", proposalID),
		slog.String("market_id", m.MarketID),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelProposals, domain.Event{
		Type: domain.EventProposalExecuted, At: now, Proposal: &p,
	})
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type: domain.EventMarketCreated, At: now, Market: &m,
	})
	auditLog(ctx, s.audit, s.logger, domain.EventProposalExecuted, map[string]any{
		"proposal_id": proposalID,
		"market_id":   m.MarketID,
	})
	return p, m, nil
}

// GetProposal retrieves a proposal by id, settling any pending decision the
// clock has already made.
func (s *GovernanceService) GetProposal(ctx context.Context, id uint64) (domain.Proposal, error) {
	if s.cache != nil {
		if p, err := s.cache.Get(ctx, id); err == nil && p.Status != domain.ProposalStatusPending {
			// Terminal statuses never move again; pending entries must be
			// re-evaluated against the clock.
			return p, nil
		}
	}

	p, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("governance_service: get proposal %d: %w", id, err)
	}

	p, err = s.settleDecision(ctx, p)
	if err != nil {
		return domain.Proposal{}, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, p); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.Uint64("proposal_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return p, nil
}

// GetProposalByAddress retrieves a proposal by its derived record address.
func (s *GovernanceService) GetProposalByAddress(ctx context.Context, address string) (domain.Proposal, error) {
	p, err := s.proposals.GetByAddress(ctx, address)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("governance_service: get by address %q: %w", address, err)
	}
	return s.settleDecision(ctx, p)
}

// ListProposals returns proposals filtered by status; an empty status lists
// all. Listing does not settle elapsed windows, so a pending entry whose
// window has closed stays pending until it is next read or voted on.
func (s *GovernanceService) ListProposals(ctx context.Context, status domain.ProposalStatus, opts domain.ListOpts) ([]domain.Proposal, error) {
	proposals, err := s.proposals.List(ctx, status, opts)
	if err != nil {
		return nil, fmt.Errorf("governance_service: list proposals: %w", err)
	}
	return proposals, nil
}

// ListVotes returns the votes on a proposal.
func (s *GovernanceService) ListVotes(ctx context.Context, proposalID uint64, opts domain.ListOpts) ([]domain.ProposalVote, error) {
	votes, err := s.proposals.ListVotes(ctx, proposalID, opts)
	if err != nil {
		return nil, fmt.Errorf("governance_service: list votes %d: %w", proposalID, err)
	}
	return votes, nil
}

// settleDecision applies the approval rule to a pending proposal and, when
// the rule decides, persists the transition. A concurrent decision by
// another instance is treated as ours.
func (s *GovernanceService) settleDecision(ctx context.Context, p domain.Proposal) (domain.Proposal, error) {
	if p.Status != domain.ProposalStatusPending {
		return p, nil
	}

	now := s.clock.Now()
	decided := engine.EvaluateProposal(p, now, s.params)
	if decided == domain.ProposalStatusPending {
		return p, nil
	}

	id := p.ProposalID
	err := s.proposals.SetStatus(ctx, id, domain.ProposalStatusPending, decided, now)
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		return domain.Proposal{}, fmt.Errorf("governance_service: settle proposal %d: %w", id, err)
	}

	p, getErr := s.proposals.GetByID(ctx, id)
	if getErr != nil {
		return domain.Proposal{}, fmt.Errorf("governance_service: reload proposal %d: %w", id, getErr)
	}

	if err == nil {
		// We made the transition; announce it.
		s.invalidate(ctx, p.ProposalID)
		eventType := domain.EventProposalApproved
		if decided == domain.ProposalStatusRejected {
			eventType = domain.EventProposalRejected
		}
		s.logger.InfoContext(ctx, "proposal decided",
			slog.Uint64("proposal_id", p.ProposalID),
			slog.String("status", string(decided)),
			slog.Int64("net", p.Net()),
		)
		publishEvent(ctx, s.bus, s.logger, domain.ChannelProposals, domain.Event{
			Type: eventType, At: now, Proposal: &p,
		})
		auditLog(ctx, s.audit, s.logger, eventType, map[string]any{
			"proposal_id": p.ProposalID,
			"net":         p.Net(),
		})
	}
	return p, nil
}

func (s *GovernanceService) allow(ctx context.Context, key string) error {
	if s.limiter == nil || s.voteRate.Limit <= 0 {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, key, s.voteRate.Limit, s.voteRate.Window)
	if err != nil {
		s.logger.WarnContext(ctx, "rate limiter unavailable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

func (s *GovernanceService) invalidate(ctx context.Context, proposalID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, proposalID); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.Uint64("proposal_id", proposalID),
			slog.String("error", err.Error()),
		)
	}
}
