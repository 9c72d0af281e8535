package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/zmartlabs/zmartd/internal/crypto"
	"github.com/zmartlabs/zmartd/internal/domain"
	"github.com/zmartlabs/zmartd/internal/engine"
)

// Throwaway key used only in tests.
const testResolverKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

const (
	testCreator = "0x1111111111111111111111111111111111111111"
	testBettor  = "0x2222222222222222222222222222222222222222"
	testOther   = "0x3333333333333333333333333333333333333333"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMarketParams() engine.MarketParams {
	return engine.MarketParams{SeedLiquidity: 1_000_000, MinBet: 100_000}
}

func standardFeeConfig() domain.FeeConfig {
	return domain.FeeConfig{
		Tier:              1,
		Address:           crypto.FeeConfigAddress(1),
		PlatformFeeBps:    200,
		TeamFeeBps:        100,
		CreatorFeeBps:     100,
		BurnFeeBps:        50,
		BeneficiaryFeeBps: 50,
		Beneficiary:       "0x4444444444444444444444444444444444444444",
		CreatedAt:         t0,
	}
}

func newTestMarketService(t *testing.T) (*MarketService, *memStore, *fakeClock, *crypto.Signer) {
	t.Helper()
	ms := newMemStore()
	clock := newFakeClock(t0)

	signer, err := crypto.NewSigner(testResolverKey)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	ms.fees[1] = standardFeeConfig()

	svc := NewMarketService(
		marketStore{ms}, betStore{ms}, ms,
		nil, nil, nil, nil, nil,
		clock, testLogger(),
		MarketServiceConfig{
			Params:    testMarketParams(),
			Resolvers: []string{signer.Address().Hex()},
		},
	)
	return svc, ms, clock, signer
}

func createTestMarket(t *testing.T, svc *MarketService) domain.Market {
	t.Helper()
	m, err := svc.CreateMarket(context.Background(), CreateMarketInput{
		Question:    "Will it rain tomorrow?",
		Creator:     testCreator,
		EndTime:     t0.Add(48 * time.Hour),
		FeeConfigID: 1,
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	return m
}

func TestCreateMarketSeedsEqualPools(t *testing.T) {
	svc, _, _, _ := newTestMarketService(t)
	m := createTestMarket(t, svc)

	if m.YesPool != 1_000_000 || m.NoPool != 1_000_000 {
		t.Fatalf("pools = %d/%d, want 1000000/1000000", m.YesPool, m.NoPool)
	}
	if m.Status != domain.MarketStatusActive {
		t.Fatalf("status = %s, want active", m.Status)
	}
	if m.Outcome != domain.OutcomePending {
		t.Fatalf("outcome = %s, want pending", m.Outcome)
	}
}

func TestCreateMarketUnknownFeeTier(t *testing.T) {
	svc, _, _, _ := newTestMarketService(t)
	_, err := svc.CreateMarket(context.Background(), CreateMarketInput{
		Question:    "q",
		Creator:     testCreator,
		EndTime:     t0.Add(time.Hour),
		FeeConfigID: 9,
	})
	if !errors.Is(err, domain.ErrUnknownFeeConfig) {
		t.Fatalf("err = %v, want ErrUnknownFeeConfig", err)
	}
}

func TestCreateMarketBadIdentity(t *testing.T) {
	svc, _, _, _ := newTestMarketService(t)
	_, err := svc.CreateMarket(context.Background(), CreateMarketInput{
		Question:    "q",
		Creator:     "not-an-address",
		EndTime:     t0.Add(time.Hour),
		FeeConfigID: 1,
	})
	if !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Fatalf("err = %v, want ErrInvalidIdentity", err)
	}
}

func TestPlaceBetLocksQuotedPayout(t *testing.T) {
	svc, ms, _, _ := newTestMarketService(t)
	m := createTestMarket(t, svc)

	bet, err := svc.PlaceBet(context.Background(), PlaceBetInput{
		User:     testBettor,
		MarketID: m.MarketID,
		Side:     domain.SideYes,
		Amount:   100_000,
	})
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	// 1M/1M pools plus a 100k yes stake pays out 90,909 on top of the stake.
	if bet.PotentialPayout != 190_909 {
		t.Fatalf("potential payout = %d, want 190909", bet.PotentialPayout)
	}

	got := ms.markets[m.MarketID]
	if got.YesPool != 1_100_000 {
		t.Fatalf("yes pool = %d, want 1100000", got.YesPool)
	}
	if got.NoPool != 909_091 {
		t.Fatalf("no pool = %d, want 909091", got.NoPool)
	}
	if got.TotalYesBets != 1 || got.TotalNoBets != 0 {
		t.Fatalf("bet counts = %d/%d, want 1/0", got.TotalYesBets, got.TotalNoBets)
	}
}

func TestPlaceBetDuplicateRejected(t *testing.T) {
	svc, _, _, _ := newTestMarketService(t)
	m := createTestMarket(t, svc)

	in := PlaceBetInput{User: testBettor, MarketID: m.MarketID, Side: domain.SideYes, Amount: 100_000}
	if _, err := svc.PlaceBet(context.Background(), in); err != nil {
		t.Fatalf("first PlaceBet: %v", err)
	}

	in.Side = domain.SideNo
	if _, err := svc.PlaceBet(context.Background(), in); !errors.Is(err, domain.ErrDuplicateBet) {
		t.Fatalf("err = %v, want ErrDuplicateBet", err)
	}
}

func TestPlaceBetSlippageFloor(t *testing.T) {
	svc, _, _, _ := newTestMarketService(t)
	m := createTestMarket(t, svc)

	_, err := svc.PlaceBet(context.Background(), PlaceBetInput{
		User:      testBettor,
		MarketID:  m.MarketID,
		Side:      domain.SideYes,
		Amount:    100_000,
		MinPayout: 95_000, // AMM pays 90,909
	})
	if !errors.Is(err, domain.ErrSlippageExceeded) {
		t.Fatalf("err = %v, want ErrSlippageExceeded", err)
	}
}

func TestPlaceBetAfterEndTime(t *testing.T) {
	svc, _, clock, _ := newTestMarketService(t)
	m := createTestMarket(t, svc)

	clock.Advance(72 * time.Hour)
	_, err := svc.PlaceBet(context.Background(), PlaceBetInput{
		User:     testBettor,
		MarketID: m.MarketID,
		Side:     domain.SideYes,
		Amount:   100_000,
	})
	if !errors.Is(err, domain.ErrMarketNotActive) {
		t.Fatalf("err = %v, want ErrMarketNotActive", err)
	}
}

func TestResolveRequiresConfiguredResolver(t *testing.T) {
	svc, _, clock, _ := newTestMarketService(t)
	m := createTestMarket(t, svc)
	clock.Advance(72 * time.Hour)

	// A valid signature from a key outside the resolver set must not pass.
	rogue, err := crypto.NewSigner("289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	sig, err := rogue.SignResolution(m.Address, string(domain.OutcomeYes))
	if err != nil {
		t.Fatalf("SignResolution: %v", err)
	}

	if _, err := svc.ResolveMarket(context.Background(), m.MarketID, domain.OutcomeYes, sig); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestResolveBeforeEndTime(t *testing.T) {
	svc, _, _, signer := newTestMarketService(t)
	m := createTestMarket(t, svc)

	sig, err := signer.SignResolution(m.Address, string(domain.OutcomeYes))
	if err != nil {
		t.Fatalf("SignResolution: %v", err)
	}
	if _, err := svc.ResolveMarket(context.Background(), m.MarketID, domain.OutcomeYes, sig); !errors.Is(err, domain.ErrMarketNotYetEnded) {
		t.Fatalf("err = %v, want ErrMarketNotYetEnded", err)
	}
}

func TestResolveAndClaimFlow(t *testing.T) {
	svc, ms, clock, signer := newTestMarketService(t)
	m := createTestMarket(t, svc)
	ctx := context.Background()

	if _, err := svc.PlaceBet(ctx, PlaceBetInput{
		User: testBettor, MarketID: m.MarketID, Side: domain.SideYes, Amount: 100_000,
	}); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	clock.Advance(72 * time.Hour)
	sig, err := signer.SignResolution(m.Address, string(domain.OutcomeYes))
	if err != nil {
		t.Fatalf("SignResolution: %v", err)
	}
	resolved, err := svc.ResolveMarket(ctx, m.MarketID, domain.OutcomeYes, sig)
	if err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if resolved.Status != domain.MarketStatusResolved || resolved.Outcome != domain.OutcomeYes {
		t.Fatalf("resolved = %s/%s, want resolved/yes", resolved.Status, resolved.Outcome)
	}

	settlement, err := svc.ClaimWinnings(ctx, testBettor, m.MarketID)
	if err != nil {
		t.Fatalf("ClaimWinnings: %v", err)
	}
	if settlement.Gross != 190_909 {
		t.Fatalf("gross = %d, want 190909", settlement.Gross)
	}
	// 500 bps total fees on 190,909: 3,818 platform, 1,909 team, 1,909
	// creator, 954 burn, 954 beneficiary.
	wantFees := settlement.PlatformFee + settlement.TeamFee + settlement.CreatorFee +
		settlement.BurnFee + settlement.BeneficiaryFee
	if settlement.Net+wantFees != settlement.Gross {
		t.Fatalf("net %d + fees %d != gross %d", settlement.Net, wantFees, settlement.Gross)
	}
	if settlement.CreatorFee != 1_909 {
		t.Fatalf("creator fee = %d, want 1909", settlement.CreatorFee)
	}

	// The creator fee accrues on the market for the creator to claim.
	if got := ms.markets[m.MarketID].AccruedCreatorFees; got != settlement.CreatorFee {
		t.Fatalf("accrued creator fees = %d, want %d", got, settlement.CreatorFee)
	}

	// A second claim must fail.
	if _, err := svc.ClaimWinnings(ctx, testBettor, m.MarketID); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second claim err = %v, want ErrAlreadyClaimed", err)
	}

	// Losing side cannot claim.
	if _, err := svc.ClaimWinnings(ctx, testOther, m.MarketID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no-bet claim err = %v, want ErrNotFound", err)
	}

	amount, err := svc.ClaimCreatorFees(ctx, m.MarketID, testCreator)
	if err != nil {
		t.Fatalf("ClaimCreatorFees: %v", err)
	}
	if amount != settlement.CreatorFee {
		t.Fatalf("creator claim = %d, want %d", amount, settlement.CreatorFee)
	}
	if _, err := svc.ClaimCreatorFees(ctx, m.MarketID, testCreator); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second creator claim err = %v, want ErrAlreadyClaimed", err)
	}
}

func TestCancelRefundsFullStake(t *testing.T) {
	svc, _, _, _ := newTestMarketService(t)
	m := createTestMarket(t, svc)
	ctx := context.Background()

	if _, err := svc.PlaceBet(ctx, PlaceBetInput{
		User: testBettor, MarketID: m.MarketID, Side: domain.SideNo, Amount: 250_000,
	}); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	if _, err := svc.CancelMarket(ctx, m.MarketID, testOther); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("outsider cancel err = %v, want ErrUnauthorized", err)
	}

	cancelled, err := svc.CancelMarket(ctx, m.MarketID, testCreator)
	if err != nil {
		t.Fatalf("CancelMarket: %v", err)
	}
	if cancelled.Status != domain.MarketStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	settlement, err := svc.ClaimWinnings(ctx, testBettor, m.MarketID)
	if err != nil {
		t.Fatalf("ClaimWinnings: %v", err)
	}
	if !settlement.Refund || settlement.Net != 250_000 || settlement.TotalFees() != 0 {
		t.Fatalf("settlement = %+v, want full 250000 refund with no fees", settlement)
	}
}

func TestClaimCreatorFeesAuthorization(t *testing.T) {
	svc, _, clock, signer := newTestMarketService(t)
	m := createTestMarket(t, svc)
	ctx := context.Background()

	// Active market: nothing to claim yet.
	if _, err := svc.ClaimCreatorFees(ctx, m.MarketID, testCreator); !errors.Is(err, domain.ErrMarketNotResolved) {
		t.Fatalf("active claim err = %v, want ErrMarketNotResolved", err)
	}

	clock.Advance(72 * time.Hour)
	sig, err := signer.SignResolution(m.Address, string(domain.OutcomeNo))
	if err != nil {
		t.Fatalf("SignResolution: %v", err)
	}
	if _, err := svc.ResolveMarket(ctx, m.MarketID, domain.OutcomeNo, sig); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}

	if _, err := svc.ClaimCreatorFees(ctx, m.MarketID, testOther); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-creator claim err = %v, want ErrUnauthorized", err)
	}
}

func TestOddsTrackPoolShares(t *testing.T) {
	svc, _, _, _ := newTestMarketService(t)
	m := createTestMarket(t, svc)
	ctx := context.Background()

	yes, no, err := svc.Odds(ctx, m.MarketID)
	if err != nil {
		t.Fatalf("Odds: %v", err)
	}
	if yes != 0.5 || no != 0.5 {
		t.Fatalf("fresh odds = %v/%v, want 0.5/0.5", yes, no)
	}

	if _, err := svc.PlaceBet(ctx, PlaceBetInput{
		User: testBettor, MarketID: m.MarketID, Side: domain.SideYes, Amount: 500_000,
	}); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	yes, no, err = svc.Odds(ctx, m.MarketID)
	if err != nil {
		t.Fatalf("Odds: %v", err)
	}
	if yes <= 0.5 {
		t.Fatalf("yes odds = %v, want > 0.5 after yes buying", yes)
	}
	if diff := yes + no - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("odds sum = %v, want 1", yes+no)
	}
}

func TestRegisterFeeConfigValidation(t *testing.T) {
	svc, _, _, _ := newTestMarketService(t)
	ctx := context.Background()

	over := standardFeeConfig()
	over.Tier = 2
	over.PlatformFeeBps = 9_800
	over.TeamFeeBps = 300
	if _, err := svc.RegisterFeeConfig(ctx, over); err == nil {
		t.Fatal("expected error for fee splits over 10000 bps")
	}

	dup := standardFeeConfig()
	if _, err := svc.RegisterFeeConfig(ctx, dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate tier err = %v, want ErrAlreadyExists", err)
	}
}
