package domain

import "time"

// UserBet is a single user's position in a market. There is at most one per
// (user, market); repeat bets are rejected rather than merged so the locked
// PotentialPayout can never be silently recomputed.
type UserBet struct {
	User            string     `json:"user"`
	MarketID        string     `json:"market_id"`
	Address         string     `json:"address"` // derived record key
	Side            BetSide    `json:"side"`
	Amount          uint64     `json:"amount"`
	PotentialPayout uint64     `json:"potential_payout"` // stake + AMM payout, locked at bet time
	PlacedAt        time.Time  `json:"placed_at"`
	Claimed         bool       `json:"claimed"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
}

// Settlement is the outcome of claiming a bet: the net amount owed to the
// bettor plus the fee amounts withheld, all in lamports.
type Settlement struct {
	Gross          uint64 `json:"gross"`
	Net            uint64 `json:"net"`
	PlatformFee    uint64 `json:"platform_fee"`
	TeamFee        uint64 `json:"team_fee"`
	CreatorFee     uint64 `json:"creator_fee"`
	BurnFee        uint64 `json:"burn_fee"`
	BeneficiaryFee uint64 `json:"beneficiary_fee"`
	Refund         bool   `json:"refund"` // true for Invalid/Cancelled stake refunds
}

// TotalFees returns the sum of all withheld fee amounts.
func (s Settlement) TotalFees() uint64 {
	return s.PlatformFee + s.TeamFee + s.CreatorFee + s.BurnFee + s.BeneficiaryFee
}
