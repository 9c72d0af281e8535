package domain

import "time"

// FeeDenominator is the basis-point denominator: fees are expressed as
// parts of 10,000.
const FeeDenominator = 10_000

// FeeConfig is an immutable fee schedule looked up by tier at market
// creation. The sum of all bps fields never exceeds FeeDenominator.
type FeeConfig struct {
	Tier              uint8     `json:"tier"`
	Address           string    `json:"address"` // derived record key
	PlatformFeeBps    uint16    `json:"platform_fee_bps"`
	TeamFeeBps        uint16    `json:"team_fee_bps"`
	CreatorFeeBps     uint16    `json:"creator_fee_bps"`
	BurnFeeBps        uint16    `json:"burn_fee_bps"`
	BeneficiaryFeeBps uint16    `json:"beneficiary_fee_bps"`
	Beneficiary       string    `json:"beneficiary,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// TotalBps returns the combined fee rate of the schedule.
func (fc FeeConfig) TotalBps() uint32 {
	return uint32(fc.PlatformFeeBps) + uint32(fc.TeamFeeBps) +
		uint32(fc.CreatorFeeBps) + uint32(fc.BurnFeeBps) +
		uint32(fc.BeneficiaryFeeBps)
}
