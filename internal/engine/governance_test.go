package engine

import (
	"testing"
	"time"

	"github.com/zmartlabs/zmartd/internal/domain"
)

func pendingProposal() domain.Proposal {
	p, err := NewProposal("0x00000000000000000000000000000000000000d1", "mk-42",
		"Will the launch happen this quarter?", t0.Add(14*24*time.Hour), 1, t0)
	if err != nil {
		panic(err)
	}
	p.ProposalID = 7
	return p
}

func TestNewProposal_Rejections(t *testing.T) {
	if _, err := NewProposal("p", "mk", "q?", t0, 1, t0); err != domain.ErrInvalidTimeRange {
		t.Fatalf("endTime==now: err=%v want=ErrInvalidTimeRange", err)
	}
	if _, err := NewProposal("p", "mk", "", t0.Add(time.Hour), 1, t0); err != domain.ErrQuestionTooLong {
		t.Fatalf("empty question: err=%v want=ErrQuestionTooLong", err)
	}
}

func TestEvaluateProposal_ThresholdApprovesInstantly(t *testing.T) {
	p := pendingProposal()
	params := DefaultGovernanceParams()

	// 51 up, 0 down, one second after creation: net 51 >= 50 approves
	// regardless of elapsed time.
	p.VotesFor, p.VotesAgainst = 51, 0
	if got := EvaluateProposal(p, t0.Add(time.Second), params); got != domain.ProposalStatusApproved {
		t.Fatalf("status=%s want=approved", got)
	}

	// net 49 stays pending inside the window.
	p.VotesFor, p.VotesAgainst = 54, 5
	if got := EvaluateProposal(p, t0.Add(time.Second), params); got != domain.ProposalStatusPending {
		t.Fatalf("status=%s want=pending", got)
	}
}

func TestEvaluateProposal_WindowExpiry(t *testing.T) {
	params := DefaultGovernanceParams()
	after := t0.Add(24*time.Hour + time.Minute)

	// net +3 past the window: approved on the next evaluation.
	p := pendingProposal()
	p.VotesFor, p.VotesAgainst = 5, 2
	if got := EvaluateProposal(p, after, params); got != domain.ProposalStatusApproved {
		t.Fatalf("net +3 after window: status=%s want=approved", got)
	}

	// net -1 past the window: rejected.
	p.VotesFor, p.VotesAgainst = 2, 3
	if got := EvaluateProposal(p, after, params); got != domain.ProposalStatusRejected {
		t.Fatalf("net -1 after window: status=%s want=rejected", got)
	}

	// net 0 past the window: rejected (ties do not pass).
	p.VotesFor, p.VotesAgainst = 3, 3
	if got := EvaluateProposal(p, after, params); got != domain.ProposalStatusRejected {
		t.Fatalf("tie after window: status=%s want=rejected", got)
	}

	// Just inside the window with positive net: still pending.
	p.VotesFor, p.VotesAgainst = 5, 2
	if got := EvaluateProposal(p, t0.Add(24*time.Hour-time.Second), params); got != domain.ProposalStatusPending {
		t.Fatalf("inside window: status=%s want=pending", got)
	}
}

func TestEvaluateProposal_DecidedStatesAreFinal(t *testing.T) {
	params := DefaultGovernanceParams()
	p := pendingProposal()
	p.Status = domain.ProposalStatusRejected
	p.VotesFor = 100
	if got := EvaluateProposal(p, t0.Add(time.Hour), params); got != domain.ProposalStatusRejected {
		t.Fatalf("rejected proposal re-evaluated to %s", got)
	}
	p.Status = domain.ProposalStatusExecuted
	if got := EvaluateProposal(p, t0.Add(time.Hour), params); got != domain.ProposalStatusExecuted {
		t.Fatalf("executed proposal re-evaluated to %s", got)
	}
}

func TestValidateVote(t *testing.T) {
	p := pendingProposal()
	if err := ValidateVote(p); err != nil {
		t.Fatalf("pending proposal: %v", err)
	}
	p.Status = domain.ProposalStatusApproved
	if err := ValidateVote(p); err != domain.ErrProposalNotPending {
		t.Fatalf("approved proposal: err=%v want=ErrProposalNotPending", err)
	}
}

func TestValidateExecute(t *testing.T) {
	p := pendingProposal()
	if err := ValidateExecute(p); err != domain.ErrProposalNotApproved {
		t.Fatalf("pending: err=%v want=ErrProposalNotApproved", err)
	}
	p.Status = domain.ProposalStatusApproved
	if err := ValidateExecute(p); err != nil {
		t.Fatalf("approved: %v", err)
	}
	p.Status = domain.ProposalStatusExecuted
	if err := ValidateExecute(p); err != domain.ErrAlreadyExecuted {
		t.Fatalf("executed: err=%v want=ErrAlreadyExecuted", err)
	}
	p.Status = domain.ProposalStatusRejected
	if err := ValidateExecute(p); err != domain.ErrProposalNotApproved {
		t.Fatalf("rejected: err=%v want=ErrProposalNotApproved", err)
	}
}

func TestMarketFromProposal_FieldsCarryOver(t *testing.T) {
	p := pendingProposal()
	m, err := MarketFromProposal(p, t0.Add(time.Hour), DefaultMarketParams())
	if err != nil {
		t.Fatalf("MarketFromProposal: %v", err)
	}
	if m.MarketID != p.MarketID {
		t.Fatalf("marketID=%s want=%s", m.MarketID, p.MarketID)
	}
	if m.Question != p.Question || !m.EndTime.Equal(p.EndTime) {
		t.Fatalf("question/endTime mismatch")
	}
	if m.FeeConfigID != p.FeeConfigID || m.Creator != p.Proposer {
		t.Fatalf("feeConfig/creator mismatch")
	}
}
