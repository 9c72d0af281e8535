package engine

import (
	"time"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// Default market parameters, in lamports where applicable.
const (
	// DefaultSeedLiquidity is the equal virtual liquidity both pools start
	// with, keeping the constant product defined on the first trade.
	DefaultSeedLiquidity uint64 = 1_000_000

	// DefaultMinBet is the floor for a single bet.
	DefaultMinBet uint64 = 1_000_000

	// MaxQuestionLen bounds a market or proposal question.
	MaxQuestionLen = 500
)

// MarketParams carries the configured policy floors for market operations.
type MarketParams struct {
	SeedLiquidity uint64
	MinBet        uint64
}

// DefaultMarketParams returns the built-in market parameters.
func DefaultMarketParams() MarketParams {
	return MarketParams{
		SeedLiquidity: DefaultSeedLiquidity,
		MinBet:        DefaultMinBet,
	}
}

// NewMarket validates the creation preconditions and assembles a fresh
// Active market with equally seeded pools. The record address is left for
// the caller to derive.
func NewMarket(marketID, question, creator string, endTime time.Time, feeConfigID uint8, now time.Time, p MarketParams) (domain.Market, error) {
	if question == "" || len(question) > MaxQuestionLen {
		return domain.Market{}, domain.ErrQuestionTooLong
	}
	if !endTime.After(now) {
		return domain.Market{}, domain.ErrInvalidTimeRange
	}
	seed := p.SeedLiquidity
	if seed == 0 {
		seed = DefaultSeedLiquidity
	}
	return domain.Market{
		MarketID:    marketID,
		Question:    question,
		Creator:     creator,
		CreatedAt:   now,
		EndTime:     endTime,
		Status:      domain.MarketStatusActive,
		Outcome:     domain.OutcomePending,
		YesPool:     seed,
		NoPool:      seed,
		FeeConfigID: feeConfigID,
		UpdatedAt:   now,
	}, nil
}

// PrepareBet checks every bet precondition against the market's current
// state and returns the priced quote. minPayout is the caller's slippage
// tolerance: the quote is rejected when the AMM payout falls below it.
func PrepareBet(m domain.Market, side domain.BetSide, amount, minPayout uint64, now time.Time, p MarketParams) (Quote, error) {
	if m.Status != domain.MarketStatusActive {
		return Quote{}, domain.ErrMarketNotActive
	}
	if !now.Before(m.EndTime) {
		return Quote{}, domain.ErrMarketNotActive
	}
	min := p.MinBet
	if min == 0 {
		min = DefaultMinBet
	}
	if amount < min {
		return Quote{}, domain.ErrBelowMinimumBet
	}

	q, err := QuoteBet(m.YesPool, m.NoPool, side, amount)
	if err != nil {
		return Quote{}, err
	}
	if q.Payout < minPayout {
		return Quote{}, domain.ErrSlippageExceeded
	}
	return q, nil
}

// ApplyQuote returns the market with the quoted pool update and bet counter
// applied, for callers that track state in memory (tests, dry runs). The
// store applies the same update transactionally in production.
func ApplyQuote(m domain.Market, q Quote, now time.Time) domain.Market {
	m.YesPool, m.NoPool = q.NewYes, q.NewNo
	if q.Side == domain.SideYes {
		m.TotalYesBets++
	} else {
		m.TotalNoBets++
	}
	m.UpdatedAt = now
	return m
}

// ValidateResolve checks the resolution preconditions: the market must be
// Active and past its end time, and the outcome must be terminal.
func ValidateResolve(m domain.Market, outcome domain.MarketOutcome, now time.Time) error {
	switch m.Status {
	case domain.MarketStatusActive:
	case domain.MarketStatusResolved:
		return domain.ErrAlreadyResolved
	default:
		return domain.ErrMarketNotActive
	}
	if now.Before(m.EndTime) {
		return domain.ErrMarketNotYetEnded
	}
	switch outcome {
	case domain.OutcomeYes, domain.OutcomeNo, domain.OutcomeInvalid:
		return nil
	default:
		return domain.ErrInvalidAmount
	}
}

// ValidateCancel checks the administrative cancellation precondition.
// Cancellation exists to unwind a market pre-resolution with full refunds.
func ValidateCancel(m domain.Market) error {
	switch m.Status {
	case domain.MarketStatusActive:
		return nil
	case domain.MarketStatusResolved:
		return domain.ErrAlreadyResolved
	default:
		return domain.ErrMarketNotActive
	}
}

// SettleBet computes what an unclaimed bet is owed on a terminal market.
//
// Cancelled markets and Invalid outcomes refund the stake in full with no
// fees. A bet on the winning side receives its locked potential payout minus
// the fee splits from the market's schedule. A losing bet fails with
// ErrNotAWinner; a market still Active fails with ErrMarketNotResolved.
func SettleBet(m domain.Market, b domain.UserBet, fc domain.FeeConfig) (domain.Settlement, error) {
	if b.Claimed {
		return domain.Settlement{}, domain.ErrAlreadyClaimed
	}

	switch m.Status {
	case domain.MarketStatusCancelled:
		return domain.Settlement{Gross: b.Amount, Net: b.Amount, Refund: true}, nil
	case domain.MarketStatusResolved:
	default:
		return domain.Settlement{}, domain.ErrMarketNotResolved
	}

	if m.Outcome == domain.OutcomeInvalid {
		return domain.Settlement{Gross: b.Amount, Net: b.Amount, Refund: true}, nil
	}

	won := (m.Outcome == domain.OutcomeYes && b.Side == domain.SideYes) ||
		(m.Outcome == domain.OutcomeNo && b.Side == domain.SideNo)
	if !won {
		return domain.Settlement{}, domain.ErrNotAWinner
	}

	return SplitFees(b.PotentialPayout, fc), nil
}
