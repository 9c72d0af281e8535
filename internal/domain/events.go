package domain

import "time"

// Signal bus channels. Downstream consumers subscribe to these to mirror
// committed state; they must treat the feed as eventually consistent.
const (
	ChannelMarkets   = "markets"
	ChannelProposals = "proposals"
)

// Event types published on the signal bus.
const (
	EventMarketCreated      = "market_created"
	EventBetPlaced          = "bet_placed"
	EventMarketResolved     = "market_resolved"
	EventMarketCancelled    = "market_cancelled"
	EventWinningsClaimed    = "winnings_claimed"
	EventCreatorFeesClaimed = "creator_fees_claimed"
	EventProposalCreated    = "proposal_created"
	EventVoteCast           = "vote_cast"
	EventProposalApproved   = "proposal_approved"
	EventProposalRejected   = "proposal_rejected"
	EventProposalExecuted   = "proposal_executed"
)

// Event is the envelope published for every committed state transition.
// Exactly one of the entity pointers is set, matching the event type.
type Event struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	At       time.Time     `json:"at"`
	Market   *Market       `json:"market,omitempty"`
	Bet      *UserBet      `json:"bet,omitempty"`
	Proposal *Proposal     `json:"proposal,omitempty"`
	Vote     *ProposalVote `json:"vote,omitempty"`
}
