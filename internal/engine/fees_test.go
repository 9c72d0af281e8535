package engine

import (
	"testing"

	"github.com/zmartlabs/zmartd/internal/domain"
)

func standardTier() domain.FeeConfig {
	return domain.FeeConfig{
		Tier:              1,
		PlatformFeeBps:    200,
		TeamFeeBps:        100,
		CreatorFeeBps:     100,
		BurnFeeBps:        50,
		BeneficiaryFeeBps: 50,
		Beneficiary:       "0x00000000000000000000000000000000000000b1",
	}
}

func TestValidateFeeConfig(t *testing.T) {
	if err := ValidateFeeConfig(standardTier()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	over := standardTier()
	over.PlatformFeeBps = 9_800
	over.TeamFeeBps = 300
	if err := ValidateFeeConfig(over); err != domain.ErrInvalidAmount {
		t.Fatalf("bps over 10000: err=%v want=ErrInvalidAmount", err)
	}

	noTier := standardTier()
	noTier.Tier = 0
	if err := ValidateFeeConfig(noTier); err != domain.ErrUnknownFeeConfig {
		t.Fatalf("tier 0: err=%v want=ErrUnknownFeeConfig", err)
	}

	orphan := standardTier()
	orphan.Beneficiary = ""
	if err := ValidateFeeConfig(orphan); err != domain.ErrInvalidIdentity {
		t.Fatalf("beneficiary cut without beneficiary: err=%v want=ErrInvalidIdentity", err)
	}
}

func TestSplitFees_Conservation(t *testing.T) {
	fc := standardTier()
	for _, gross := range []uint64{0, 1, 9_999, 190_909, 1_000_000_000, 1 << 62} {
		s := SplitFees(gross, fc)
		if s.Net+s.TotalFees() != gross {
			t.Fatalf("gross=%d: net %d + fees %d != gross", gross, s.Net, s.TotalFees())
		}
	}
}

func TestSplitFees_ExactCuts(t *testing.T) {
	s := SplitFees(190_909, standardTier())
	if s.PlatformFee != 3_818 { // floor(190909*200/10000)
		t.Fatalf("platform=%d want=3818", s.PlatformFee)
	}
	if s.TeamFee != 1_909 {
		t.Fatalf("team=%d want=1909", s.TeamFee)
	}
	if s.CreatorFee != 1_909 {
		t.Fatalf("creator=%d want=1909", s.CreatorFee)
	}
	if s.BurnFee != 954 { // floor(190909*50/10000)
		t.Fatalf("burn=%d want=954", s.BurnFee)
	}
	if s.BeneficiaryFee != 954 {
		t.Fatalf("beneficiary=%d want=954", s.BeneficiaryFee)
	}
	if s.Net != 190_909-3_818-1_909-1_909-954-954 {
		t.Fatalf("net=%d", s.Net)
	}
}

func TestSplitFees_ZeroSchedule(t *testing.T) {
	s := SplitFees(500_000, domain.FeeConfig{Tier: 2})
	if s.Net != 500_000 || s.TotalFees() != 0 {
		t.Fatalf("zero schedule: net=%d fees=%d", s.Net, s.TotalFees())
	}
}
