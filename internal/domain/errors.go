package domain

import "errors"

// Precondition violations. Every failed operation surfaces exactly one of
// these with zero state mutation, so callers and tests can branch on kind.
var (
	ErrInvalidTimeRange   = errors.New("end time must be in the future")
	ErrUnknownFeeConfig   = errors.New("unknown fee config")
	ErrMarketNotActive    = errors.New("market not active")
	ErrMarketNotYetEnded  = errors.New("market not yet ended")
	ErrAlreadyResolved    = errors.New("market already resolved")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrBelowMinimumBet    = errors.New("bet below minimum amount")
	ErrDuplicateBet       = errors.New("bet already placed on this market")
	ErrSlippageExceeded   = errors.New("payout below minimum acceptable")
	ErrMarketNotResolved  = errors.New("market not resolved")
	ErrNotAWinner         = errors.New("bet did not win")
	ErrAlreadyClaimed     = errors.New("winnings already claimed")
	ErrDuplicateVote      = errors.New("already voted on this proposal")
	ErrProposalNotPending = errors.New("proposal not pending")
	ErrProposalNotApproved = errors.New("proposal not approved")
	ErrAlreadyExecuted    = errors.New("proposal already executed")
	ErrCounterExhausted   = errors.New("proposal counter exhausted")
	ErrQuestionTooLong    = errors.New("question exceeds length bound")
	ErrInvalidIdentity    = errors.New("invalid identity")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// Infrastructure sentinels.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("concurrent modification")
	ErrRateLimited   = errors.New("rate limited")
	ErrLockHeld      = errors.New("lock already held")
)
