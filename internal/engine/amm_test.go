package engine

import (
	"math/bits"
	"testing"

	"github.com/zmartlabs/zmartd/internal/domain"
)

func TestQuoteBet_SeedPoolsYesBet(t *testing.T) {
	// 1,000,000 / 1,000,000 pools, 100,000 on YES:
	// k = 1e12, newYes = 1,100,000, newNo = ceil(1e12/1,100,000) = 909,091,
	// payout = 90,909, locked potential payout = 190,909.
	q, err := QuoteBet(1_000_000, 1_000_000, domain.SideYes, 100_000)
	if err != nil {
		t.Fatalf("QuoteBet: %v", err)
	}
	if q.NewYes != 1_100_000 {
		t.Fatalf("NewYes=%d want=1100000", q.NewYes)
	}
	if q.NewNo != 909_091 {
		t.Fatalf("NewNo=%d want=909091", q.NewNo)
	}
	if q.Payout != 90_909 {
		t.Fatalf("Payout=%d want=90909", q.Payout)
	}
	if q.PotentialPayout() != 190_909 {
		t.Fatalf("PotentialPayout=%d want=190909", q.PotentialPayout())
	}
}

func TestQuoteBet_NoBetSymmetric(t *testing.T) {
	yes, err := QuoteBet(1_000_000, 1_000_000, domain.SideYes, 100_000)
	if err != nil {
		t.Fatalf("yes quote: %v", err)
	}
	no, err := QuoteBet(1_000_000, 1_000_000, domain.SideNo, 100_000)
	if err != nil {
		t.Fatalf("no quote: %v", err)
	}
	if no.Payout != yes.Payout {
		t.Fatalf("asymmetric payouts: yes=%d no=%d", yes.Payout, no.Payout)
	}
	if no.NewNo != yes.NewYes || no.NewYes != yes.NewNo {
		t.Fatalf("pools not mirrored: yes=(%d,%d) no=(%d,%d)",
			yes.NewYes, yes.NewNo, no.NewYes, no.NewNo)
	}
}

func TestQuoteBet_ConstantProductNeverShrinks(t *testing.T) {
	// Ceil rounding keeps the dust in the pool, so the product after a
	// trade is at least the product before it.
	cases := []struct {
		yes, no, amount uint64
		side            domain.BetSide
	}{
		{1_000_000, 1_000_000, 100_000, domain.SideYes},
		{1_000_000, 1_000_000, 1, domain.SideNo},
		{3, 7, 5, domain.SideYes},
		{1_000_000_000_000, 999_999_999_999, 123_456_789, domain.SideNo},
		{1_000_000, 900_000_000_000, 50_000_000, domain.SideYes},
	}
	for _, tc := range cases {
		q, err := QuoteBet(tc.yes, tc.no, tc.side, tc.amount)
		if err != nil {
			t.Fatalf("QuoteBet(%d,%d,%s,%d): %v", tc.yes, tc.no, tc.side, tc.amount, err)
		}
		before := uint128(tc.yes, tc.no)
		after := uint128(q.NewYes, q.NewNo)
		if after.hi < before.hi || (after.hi == before.hi && after.lo < before.lo) {
			t.Fatalf("product shrank: (%d,%d) -> (%d,%d)", tc.yes, tc.no, q.NewYes, q.NewNo)
		}
	}
}

func TestQuoteBet_SkewedPoolsPayLess(t *testing.T) {
	// The more a side is already backed, the less an additional bet on it
	// can win from the opposing pool.
	balanced, err := QuoteBet(1_000_000, 1_000_000, domain.SideYes, 100_000)
	if err != nil {
		t.Fatalf("balanced: %v", err)
	}
	skewed, err := QuoteBet(2_000_000, 500_000, domain.SideYes, 100_000)
	if err != nil {
		t.Fatalf("skewed: %v", err)
	}
	if skewed.Payout >= balanced.Payout {
		t.Fatalf("skewed payout %d >= balanced payout %d", skewed.Payout, balanced.Payout)
	}
}

func TestQuoteBet_Rejections(t *testing.T) {
	if _, err := QuoteBet(1_000_000, 1_000_000, domain.SideYes, 0); err != domain.ErrInvalidAmount {
		t.Fatalf("zero amount: err=%v want=ErrInvalidAmount", err)
	}
	if _, err := QuoteBet(0, 1_000_000, domain.SideYes, 10); err != domain.ErrMarketNotActive {
		t.Fatalf("zero pool: err=%v want=ErrMarketNotActive", err)
	}
	if _, err := QuoteBet(1_000_000, 1_000_000, domain.BetSide("maybe"), 10); err != domain.ErrInvalidAmount {
		t.Fatalf("bad side: err=%v want=ErrInvalidAmount", err)
	}
}

func TestOdds_DisplayOnly(t *testing.T) {
	yesOdds, noOdds := Odds(1_000_000, 3_000_000)
	if yesOdds != 0.75 || noOdds != 0.25 {
		t.Fatalf("odds=(%v,%v) want=(0.75,0.25)", yesOdds, noOdds)
	}
	yesOdds, noOdds = Odds(0, 0)
	if yesOdds != 0.5 || noOdds != 0.5 {
		t.Fatalf("empty pools odds=(%v,%v) want=(0.5,0.5)", yesOdds, noOdds)
	}
}

type u128 struct{ hi, lo uint64 }

func uint128(a, b uint64) u128 {
	hi, lo := bits.Mul64(a, b)
	return u128{hi, lo}
}
