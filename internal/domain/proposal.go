package domain

import "time"

// ProposalStatus is the governance lifecycle state of a proposal.
// Transitions are one-directional:
// pending -> approved -> executed, or pending -> rejected.
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusApproved ProposalStatus = "approved"
	ProposalStatusRejected ProposalStatus = "rejected"
	ProposalStatusExecuted ProposalStatus = "executed"
)

// VoteType is the direction of a governance vote.
type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// Proposal is a community question waiting to become a market. MarketID is
// reserved at proposal time and used verbatim when the proposal executes.
type Proposal struct {
	ProposalID   uint64         `json:"proposal_id"`
	Address      string         `json:"address"` // derived record key
	Proposer     string         `json:"proposer"`
	MarketID     string         `json:"market_id"`
	Question     string         `json:"question"`
	EndTime      time.Time      `json:"end_time"` // future market's end time
	FeeConfigID  uint8          `json:"fee_config_id"`
	CreatedAt    time.Time      `json:"created_at"`
	Status       ProposalStatus `json:"status"`
	VotesFor     uint64         `json:"votes_for"`
	VotesAgainst uint64         `json:"votes_against"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`
	ExecutedAt   *time.Time     `json:"executed_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Net returns votesFor - votesAgainst as a signed count.
func (p Proposal) Net() int64 {
	return int64(p.VotesFor) - int64(p.VotesAgainst)
}

// ProposalVote records one voter's vote on one proposal. Exactly one exists
// per (voter, proposal); the store enforces uniqueness on insert.
type ProposalVote struct {
	Voter      string    `json:"voter"`
	ProposalID uint64    `json:"proposal_id"`
	Address    string    `json:"address"` // derived record key
	VoteType   VoteType  `json:"vote_type"`
	CastAt     time.Time `json:"cast_at"`
}
