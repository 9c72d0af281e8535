// Package engine implements the core state machines of the platform: the
// constant-product AMM pricing and settlement rules for markets, and the
// deterministic vote-driven lifecycle of governance proposals. Everything in
// this package is pure computation over domain values; persistence,
// locking, and time all live with the callers.
package engine

import (
	"math/bits"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// Quote is the priced result of a prospective bet against the current pool
// state. Payout is the additional amount taken from the opposing pool if the
// side wins; the bettor also gets their stake back, so the locked potential
// payout is Amount + Payout.
type Quote struct {
	Side   domain.BetSide
	Amount uint64
	Payout uint64
	NewYes uint64
	NewNo  uint64
}

// PotentialPayout is the total locked at bet time: stake plus AMM payout.
func (q Quote) PotentialPayout() uint64 {
	return q.Amount + q.Payout
}

// QuoteBet prices a bet of amount on side against pools of the given sizes
// using the constant product k = yesPool * noPool. The bettor's stake grows
// their own pool; the opposing pool shrinks to k divided by the grown pool,
// rounded up so the rounding dust stays in the pool rather than leaking to
// the bettor.
//
// Both pools must be nonzero (markets are seeded with equal nonzero
// liquidity at creation) and amount must be nonzero.
func QuoteBet(yesPool, noPool uint64, side domain.BetSide, amount uint64) (Quote, error) {
	if amount == 0 {
		return Quote{}, domain.ErrInvalidAmount
	}
	if yesPool == 0 || noPool == 0 {
		return Quote{}, domain.ErrMarketNotActive
	}

	var grown, opposing uint64
	switch side {
	case domain.SideYes:
		grown, opposing = yesPool, noPool
	case domain.SideNo:
		grown, opposing = noPool, yesPool
	default:
		return Quote{}, domain.ErrInvalidAmount
	}

	newGrown := grown + amount
	if newGrown < grown {
		return Quote{}, domain.ErrInvalidAmount // u64 overflow
	}

	newOpposing := ceilDivProduct(grown, opposing, newGrown)
	payout := opposing - newOpposing

	q := Quote{Side: side, Amount: amount, Payout: payout}
	if side == domain.SideYes {
		q.NewYes, q.NewNo = newGrown, newOpposing
	} else {
		q.NewYes, q.NewNo = newOpposing, newGrown
	}
	return q, nil
}

// ceilDivProduct computes ceil(a*b / d) using a 128-bit intermediate so the
// constant product never overflows. d must exceed the high word of a*b,
// which holds whenever d > a and b fits in a u64.
func ceilDivProduct(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	quo, rem := bits.Div64(hi, lo, d)
	if rem > 0 {
		quo++
	}
	return quo
}

// Odds returns the display probabilities implied by the pool ratio: a side's
// odds are the opposing pool's share of total liquidity. This is a UI
// approximation only; settlement always uses the QuoteBet payout locked at
// bet time, never these figures.
func Odds(yesPool, noPool uint64) (yesOdds, noOdds float64) {
	total := yesPool + noPool
	if total == 0 {
		return 0.5, 0.5
	}
	return float64(noPool) / float64(total), float64(yesPool) / float64(total)
}
