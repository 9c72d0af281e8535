package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// MarketOutcome is the resolved outcome of a market. It stays Pending for
// exactly as long as the market is Active.
type MarketOutcome string

const (
	OutcomePending MarketOutcome = "pending"
	OutcomeYes     MarketOutcome = "yes"
	OutcomeNo      MarketOutcome = "no"
	OutcomeInvalid MarketOutcome = "invalid"
)

// BetSide is the side of a binary market a bet is placed on.
type BetSide string

const (
	SideYes BetSide = "yes"
	SideNo  BetSide = "no"
)

// Market is a single binary prediction market with its AMM pools.
//
// YesPool and NoPool are lamport-denominated virtual liquidity pools; both
// are seeded to an equal nonzero value at creation so the constant-product
// formula is defined on the first trade. TotalYesBets/TotalNoBets count
// placed bets per side.
type Market struct {
	MarketID           string        `json:"market_id"`
	Address            string        `json:"address"` // derived record key
	Question           string        `json:"question"`
	Creator            string        `json:"creator"`
	CreatedAt          time.Time     `json:"created_at"`
	EndTime            time.Time     `json:"end_time"`
	Status             MarketStatus  `json:"status"`
	Outcome            MarketOutcome `json:"outcome"`
	YesPool            uint64        `json:"yes_pool"`
	NoPool             uint64        `json:"no_pool"`
	TotalYesBets       uint64        `json:"total_yes_bets"`
	TotalNoBets        uint64        `json:"total_no_bets"`
	FeeConfigID        uint8         `json:"fee_config_id"`
	CreatorFeesClaimed bool          `json:"creator_fees_claimed"`
	AccruedCreatorFees uint64        `json:"accrued_creator_fees"`
	ResolvedAt         *time.Time    `json:"resolved_at,omitempty"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Terminal reports whether the market can never change state again.
func (m Market) Terminal() bool {
	return m.Status == MarketStatusResolved || m.Status == MarketStatusCancelled
}

// MarketStats aggregates platform-wide market figures for read endpoints.
type MarketStats struct {
	TotalMarkets  int64  `json:"total_markets"`
	ActiveMarkets int64  `json:"active_markets"`
	TotalVolume   uint64 `json:"total_volume"`
}
