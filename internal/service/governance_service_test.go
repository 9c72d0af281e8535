package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zmartlabs/zmartd/internal/domain"
	"github.com/zmartlabs/zmartd/internal/engine"
)

func newTestGovernanceService(t *testing.T) (*GovernanceService, *memStore, *fakeClock) {
	t.Helper()
	ms := newMemStore()
	clock := newFakeClock(t0)
	ms.fees[1] = standardFeeConfig()

	svc := NewGovernanceService(
		proposalStore{ms}, ms,
		nil, nil, nil, nil,
		clock, testLogger(),
		GovernanceServiceConfig{
			Governance: engine.DefaultGovernanceParams(),
			Market:     testMarketParams(),
		},
	)
	return svc, ms, clock
}

func createTestProposal(t *testing.T, svc *GovernanceService) domain.Proposal {
	t.Helper()
	p, err := svc.CreateProposal(context.Background(), CreateProposalInput{
		Proposer:    testCreator,
		Question:    "Will the launch happen this quarter?",
		EndTime:     t0.Add(30 * 24 * time.Hour),
		FeeConfigID: 1,
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	return p
}

// voter returns a deterministic hex identity for index i.
func voter(i int) string {
	return fmt.Sprintf("0x%040x", i+1)
}

func TestCreateProposalAllocatesSequentialIDs(t *testing.T) {
	svc, _, _ := newTestGovernanceService(t)

	first := createTestProposal(t, svc)
	second := createTestProposal(t, svc)

	if first.ProposalID != 1 || second.ProposalID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", first.ProposalID, second.ProposalID)
	}
	if first.Address == second.Address {
		t.Fatal("proposals must derive distinct addresses")
	}
	if first.Status != domain.ProposalStatusPending {
		t.Fatalf("status = %s, want pending", first.Status)
	}
}

func TestVoteTalliesAndDuplicateRejected(t *testing.T) {
	svc, _, _ := newTestGovernanceService(t)
	p := createTestProposal(t, svc)
	ctx := context.Background()

	got, err := svc.Vote(ctx, VoteInput{Voter: voter(0), ProposalID: p.ProposalID, VoteType: domain.VoteUp})
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if got.VotesFor != 1 || got.VotesAgainst != 0 {
		t.Fatalf("tally = %d/%d, want 1/0", got.VotesFor, got.VotesAgainst)
	}

	// Same voter, opposite direction: still one vote per proposal.
	_, err = svc.Vote(ctx, VoteInput{Voter: voter(0), ProposalID: p.ProposalID, VoteType: domain.VoteDown})
	if !errors.Is(err, domain.ErrDuplicateVote) {
		t.Fatalf("err = %v, want ErrDuplicateVote", err)
	}
}

func TestInstantApprovalAtThreshold(t *testing.T) {
	svc, _, _ := newTestGovernanceService(t)
	p := createTestProposal(t, svc)
	ctx := context.Background()

	threshold := int(engine.DefaultApprovalThreshold)
	var got domain.Proposal
	var err error
	for i := 0; i < threshold; i++ {
		got, err = svc.Vote(ctx, VoteInput{Voter: voter(i), ProposalID: p.ProposalID, VoteType: domain.VoteUp})
		if err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}

	if got.Status != domain.ProposalStatusApproved {
		t.Fatalf("status after %d net votes = %s, want approved", threshold, got.Status)
	}
	if got.DecidedAt == nil {
		t.Fatal("decided_at not set")
	}

	// Voting has closed.
	_, err = svc.Vote(ctx, VoteInput{Voter: voter(100), ProposalID: p.ProposalID, VoteType: domain.VoteUp})
	if !errors.Is(err, domain.ErrProposalNotPending) {
		t.Fatalf("post-decision vote err = %v, want ErrProposalNotPending", err)
	}
}

func TestWindowExpiryApprovesPositiveNet(t *testing.T) {
	svc, _, clock := newTestGovernanceService(t)
	p := createTestProposal(t, svc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Vote(ctx, VoteInput{Voter: voter(i), ProposalID: p.ProposalID, VoteType: domain.VoteUp}); err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}

	clock.Advance(engine.DefaultVotingWindow + time.Minute)

	got, err := svc.GetProposal(ctx, p.ProposalID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.Status != domain.ProposalStatusApproved {
		t.Fatalf("status = %s, want approved after window with net +3", got.Status)
	}
}

func TestWindowExpiryRejectsNonPositiveNet(t *testing.T) {
	for name, votes := range map[string]struct{ up, down int }{
		"negative": {1, 2},
		"tie":      {2, 2},
		"zero":     {0, 0},
	} {
		t.Run(name, func(t *testing.T) {
			svc, _, clock := newTestGovernanceService(t)
			p := createTestProposal(t, svc)
			ctx := context.Background()

			for i := 0; i < votes.up; i++ {
				if _, err := svc.Vote(ctx, VoteInput{Voter: voter(i), ProposalID: p.ProposalID, VoteType: domain.VoteUp}); err != nil {
					t.Fatalf("upvote %d: %v", i, err)
				}
			}
			for i := 0; i < votes.down; i++ {
				if _, err := svc.Vote(ctx, VoteInput{Voter: voter(100 + i), ProposalID: p.ProposalID, VoteType: domain.VoteDown}); err != nil {
					t.Fatalf("downvote %d: %v", i, err)
				}
			}

			clock.Advance(engine.DefaultVotingWindow + time.Minute)

			got, err := svc.GetProposal(ctx, p.ProposalID)
			if err != nil {
				t.Fatalf("GetProposal: %v", err)
			}
			if got.Status != domain.ProposalStatusRejected {
				t.Fatalf("status = %s, want rejected", got.Status)
			}
		})
	}
}

func TestExecuteCreatesMarketFromProposal(t *testing.T) {
	svc, ms, _ := newTestGovernanceService(t)
	p := createTestProposal(t, svc)
	ctx := context.Background()

	// Not approved yet.
	if _, _, err := svc.Execute(ctx, p.ProposalID); !errors.Is(err, domain.ErrProposalNotApproved) {
		t.Fatalf("pending execute err = %v, want ErrProposalNotApproved", err)
	}

	for i := 0; i < int(engine.DefaultApprovalThreshold); i++ {
		if _, err := svc.Vote(ctx, VoteInput{Voter: voter(i), ProposalID: p.ProposalID, VoteType: domain.VoteUp}); err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}

	executed, m, err := svc.Execute(ctx, p.ProposalID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if executed.Status != domain.ProposalStatusExecuted {
		t.Fatalf("status = %s, want executed", executed.Status)
	}
	if m.MarketID != p.MarketID {
		t.Fatalf("market id = %s, want the proposal's %s", m.MarketID, p.MarketID)
	}
	if m.Question != p.Question || m.Creator != p.Proposer || !m.EndTime.Equal(p.EndTime) || m.FeeConfigID != p.FeeConfigID {
		t.Fatal("market fields must carry over from the proposal")
	}
	if m.YesPool != 1_000_000 || m.NoPool != 1_000_000 {
		t.Fatalf("pools = %d/%d, want seeded 1000000/1000000", m.YesPool, m.NoPool)
	}
	if _, ok := ms.markets[m.MarketID]; !ok {
		t.Fatal("market not persisted")
	}

	// Execution is exactly-once.
	if _, _, err := svc.Execute(ctx, p.ProposalID); !errors.Is(err, domain.ErrAlreadyExecuted) {
		t.Fatalf("second execute err = %v, want ErrAlreadyExecuted", err)
	}
}

func TestExecuteRejectedProposal(t *testing.T) {
	svc, _, clock := newTestGovernanceService(t)
	p := createTestProposal(t, svc)
	ctx := context.Background()

	clock.Advance(engine.DefaultVotingWindow + time.Minute)

	if _, _, err := svc.Execute(ctx, p.ProposalID); !errors.Is(err, domain.ErrProposalNotApproved) {
		t.Fatalf("err = %v, want ErrProposalNotApproved", err)
	}

	got, err := svc.GetProposal(ctx, p.ProposalID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.Status != domain.ProposalStatusRejected {
		t.Fatalf("status = %s, want rejected", got.Status)
	}
}

func TestVoteAfterWindowSettlesFirst(t *testing.T) {
	svc, _, clock := newTestGovernanceService(t)
	p := createTestProposal(t, svc)
	ctx := context.Background()

	if _, err := svc.Vote(ctx, VoteInput{Voter: voter(0), ProposalID: p.ProposalID, VoteType: domain.VoteUp}); err != nil {
		t.Fatalf("Vote: %v", err)
	}

	clock.Advance(engine.DefaultVotingWindow + time.Minute)

	// The elapsed window decides the proposal before the vote is accepted.
	_, err := svc.Vote(ctx, VoteInput{Voter: voter(1), ProposalID: p.ProposalID, VoteType: domain.VoteUp})
	if !errors.Is(err, domain.ErrProposalNotPending) {
		t.Fatalf("err = %v, want ErrProposalNotPending", err)
	}

	got, err := svc.GetProposal(ctx, p.ProposalID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.Status != domain.ProposalStatusApproved {
		t.Fatalf("status = %s, want approved with net +1", got.Status)
	}
	if got.VotesFor != 1 {
		t.Fatalf("votes for = %d, the late vote must not count", got.VotesFor)
	}
}

func TestCreateProposalUnknownFeeTier(t *testing.T) {
	svc, _, _ := newTestGovernanceService(t)
	_, err := svc.CreateProposal(context.Background(), CreateProposalInput{
		Proposer:    testCreator,
		Question:    "q",
		EndTime:     t0.Add(time.Hour),
		FeeConfigID: 9,
	})
	if !errors.Is(err, domain.ErrUnknownFeeConfig) {
		t.Fatalf("err = %v, want ErrUnknownFeeConfig", err)
	}
}
