package engine

import (
	"math/bits"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// ValidateFeeConfig checks a fee schedule before registration: the tier must
// be nonzero and the combined rate must not exceed 100%. A schedule with a
// beneficiary cut must name the beneficiary.
func ValidateFeeConfig(fc domain.FeeConfig) error {
	if fc.Tier == 0 {
		return domain.ErrUnknownFeeConfig
	}
	if fc.TotalBps() > domain.FeeDenominator {
		return domain.ErrInvalidAmount
	}
	if fc.BeneficiaryFeeBps > 0 && fc.Beneficiary == "" {
		return domain.ErrInvalidIdentity
	}
	return nil
}

// SplitFees prorates a gross payout across the schedule's fee recipients.
// Each cut is gross * bps / 10,000 rounded down; the remainder, including
// all rounding dust, stays with the bettor. The identity
// net + total fees == gross always holds.
func SplitFees(gross uint64, fc domain.FeeConfig) domain.Settlement {
	s := domain.Settlement{
		Gross:          gross,
		PlatformFee:    feeCut(gross, fc.PlatformFeeBps),
		TeamFee:        feeCut(gross, fc.TeamFeeBps),
		CreatorFee:     feeCut(gross, fc.CreatorFeeBps),
		BurnFee:        feeCut(gross, fc.BurnFeeBps),
		BeneficiaryFee: feeCut(gross, fc.BeneficiaryFeeBps),
	}
	s.Net = gross - s.TotalFees()
	return s
}

// feeCut computes gross * bps / 10,000 with a 128-bit intermediate.
func feeCut(gross uint64, bps uint16) uint64 {
	if bps == 0 {
		return 0
	}
	// Denominator exceeds the high word of the product for any bps <= 10,000.
	hi, lo := bits.Mul64(gross, uint64(bps))
	quo, _ := bits.Div64(hi, lo, domain.FeeDenominator)
	return quo
}
