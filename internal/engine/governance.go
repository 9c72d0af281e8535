package engine

import (
	"math"
	"time"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// Default governance parameters.
const (
	// DefaultApprovalThreshold approves a proposal the instant
	// votesFor - votesAgainst reaches it, regardless of elapsed time.
	DefaultApprovalThreshold int64 = 50

	// DefaultVotingWindow is the period after which a pending proposal is
	// decided by simple majority: net > 0 approves, net <= 0 rejects.
	DefaultVotingWindow = 24 * time.Hour
)

// GovernanceParams carries the configured auto-resolution rule inputs.
type GovernanceParams struct {
	ApprovalThreshold int64
	VotingWindow      time.Duration
}

// DefaultGovernanceParams returns the built-in governance parameters.
func DefaultGovernanceParams() GovernanceParams {
	return GovernanceParams{
		ApprovalThreshold: DefaultApprovalThreshold,
		VotingWindow:      DefaultVotingWindow,
	}
}

// NewProposal validates the creation preconditions and assembles a Pending
// proposal. The proposal id and record address are assigned by the store's
// atomic counter at insert time.
func NewProposal(proposer, marketID, question string, endTime time.Time, feeConfigID uint8, now time.Time) (domain.Proposal, error) {
	if question == "" || len(question) > MaxQuestionLen {
		return domain.Proposal{}, domain.ErrQuestionTooLong
	}
	if !endTime.After(now) {
		return domain.Proposal{}, domain.ErrInvalidTimeRange
	}
	return domain.Proposal{
		Proposer:    proposer,
		MarketID:    marketID,
		Question:    question,
		EndTime:     endTime,
		FeeConfigID: feeConfigID,
		CreatedAt:   now,
		Status:      domain.ProposalStatusPending,
	}, nil
}

// EvaluateProposal applies the deterministic auto-resolution rule to a
// pending proposal at the given instant and returns the status it should
// hold. There is no scheduler in this system, so callers re-run this lazily
// on every vote, read, and execution attempt:
//
//   - net >= threshold            => Approved, immediately
//   - window elapsed and net > 0  => Approved
//   - window elapsed and net <= 0 => Rejected
//   - otherwise                   => Pending
//
// Non-pending proposals are returned unchanged; decided states are final.
func EvaluateProposal(p domain.Proposal, now time.Time, params GovernanceParams) domain.ProposalStatus {
	if p.Status != domain.ProposalStatusPending {
		return p.Status
	}

	threshold := params.ApprovalThreshold
	if threshold <= 0 {
		threshold = DefaultApprovalThreshold
	}
	window := params.VotingWindow
	if window <= 0 {
		window = DefaultVotingWindow
	}

	net := p.Net()
	if net >= threshold {
		return domain.ProposalStatusApproved
	}
	if now.Sub(p.CreatedAt) >= window {
		if net > 0 {
			return domain.ProposalStatusApproved
		}
		return domain.ProposalStatusRejected
	}
	return domain.ProposalStatusPending
}

// ValidateVote checks that a proposal still accepts votes.
func ValidateVote(p domain.Proposal) error {
	if p.Status != domain.ProposalStatusPending {
		return domain.ErrProposalNotPending
	}
	if p.VotesFor == math.MaxUint64 || p.VotesAgainst == math.MaxUint64 {
		return domain.ErrCounterExhausted
	}
	return nil
}

// ValidateExecute checks that a proposal is ready to spawn its market.
// Execution is permissionless; only the status gates it.
func ValidateExecute(p domain.Proposal) error {
	switch p.Status {
	case domain.ProposalStatusApproved:
		return nil
	case domain.ProposalStatusExecuted:
		return domain.ErrAlreadyExecuted
	default:
		return domain.ErrProposalNotApproved
	}
}

// MarketFromProposal builds the market an executed proposal spawns: the
// reserved market id, question, end time, and fee tier carry over verbatim,
// with the proposer as creator.
func MarketFromProposal(p domain.Proposal, now time.Time, params MarketParams) (domain.Market, error) {
	return NewMarket(p.MarketID, p.Question, p.Proposer, p.EndTime, p.FeeConfigID, now, params)
}
