package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PoolUpdate describes the post-trade pool state of one bet. The previous
// pool values act as an optimistic guard: the store rejects the update with
// ErrConflict when the market row no longer matches, and the caller
// re-quotes against the latest committed state.
type PoolUpdate struct {
	MarketID   string
	PrevYes    uint64
	PrevNo     uint64
	NewYes     uint64
	NewNo      uint64
	Side       BetSide
}

// FeeConfigStore persists immutable fee schedules.
type FeeConfigStore interface {
	Create(ctx context.Context, fc FeeConfig) error
	GetByTier(ctx context.Context, tier uint8) (FeeConfig, error)
	List(ctx context.Context) ([]FeeConfig, error)
}

// MarketStore persists markets and applies their guarded state transitions.
// Every mutating method executes as a single transaction with its
// preconditions in the WHERE clause, so a failed call leaves no effects.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetByAddress(ctx context.Context, address string) (Market, error)
	List(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)

	// ApplyBet atomically moves the pools to their post-trade sizes and
	// inserts the bet record. It fails with ErrConflict when the pools
	// moved since the quote, ErrMarketNotActive when the market is no
	// longer active, and ErrDuplicateBet when the user already bet.
	ApplyBet(ctx context.Context, upd PoolUpdate, bet UserBet) error

	// Resolve transitions active -> resolved with the given outcome.
	Resolve(ctx context.Context, id string, outcome MarketOutcome, at time.Time) error
	// Cancel transitions active -> cancelled.
	Cancel(ctx context.Context, id string, at time.Time) error
	// ReleaseCreatorFees flips creatorFeesClaimed exactly once and returns
	// the accrued amount released. Fails with ErrAlreadyClaimed on repeat.
	ReleaseCreatorFees(ctx context.Context, id string) (uint64, error)

	Stats(ctx context.Context) (MarketStats, error)
	// ListTerminalBefore returns resolved/cancelled markets whose end time
	// is older than cutoff, for cold-storage archival.
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]Market, error)
}

// BetStore persists per-(user, market) bet records.
type BetStore interface {
	Get(ctx context.Context, user, marketID string) (UserBet, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]UserBet, error)
	ListByUser(ctx context.Context, user string, opts ListOpts) ([]UserBet, error)

	// Claim flips the bet's claimed flag exactly once and accrues the
	// withheld creator fee onto the market, in one transaction. Fails with
	// ErrAlreadyClaimed when the flag is already set.
	Claim(ctx context.Context, user, marketID string, creatorFee uint64, at time.Time) error
}

// ProposalStore persists proposals, votes, and the proposal id counter.
type ProposalStore interface {
	// Create allocates the next proposal id from the single-row counter and
	// inserts the proposal in the same transaction. The derive callback
	// computes the record address once the id is known.
	Create(ctx context.Context, p Proposal, derive func(id uint64) string) (Proposal, error)
	GetByID(ctx context.Context, id uint64) (Proposal, error)
	GetByAddress(ctx context.Context, address string) (Proposal, error)
	List(ctx context.Context, status ProposalStatus, opts ListOpts) ([]Proposal, error)

	// CastVote inserts the vote and bumps the matching tally in one
	// transaction, returning the updated proposal. Fails with
	// ErrDuplicateVote for a repeat (voter, proposal) pair and
	// ErrProposalNotPending when voting has closed.
	CastVote(ctx context.Context, v ProposalVote) (Proposal, error)
	ListVotes(ctx context.Context, proposalID uint64, opts ListOpts) ([]ProposalVote, error)

	// SetStatus applies a guarded pending -> to transition. It is a no-op
	// returning ErrConflict when the proposal is no longer in from.
	SetStatus(ctx context.Context, id uint64, from, to ProposalStatus, at time.Time) error

	// Execute transitions approved -> executed and creates the market in
	// one transaction. Fails with ErrAlreadyExecuted when already executed
	// and ErrProposalNotApproved otherwise.
	Execute(ctx context.Context, id uint64, m Market, at time.Time) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of state transitions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
