package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// fakeClock is a manually advanced clock for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is an in-memory implementation of the store interfaces with the
// same guarded-transition semantics as the Postgres stores.
type memStore struct {
	mu           sync.Mutex
	fees         map[uint8]domain.FeeConfig
	markets      map[string]domain.Market
	bets         map[string]domain.UserBet
	proposals    map[uint64]domain.Proposal
	votes        map[string]domain.ProposalVote
	nextProposal uint64
}

func newMemStore() *memStore {
	return &memStore{
		fees:         make(map[uint8]domain.FeeConfig),
		markets:      make(map[string]domain.Market),
		bets:         make(map[string]domain.UserBet),
		proposals:    make(map[uint64]domain.Proposal),
		votes:        make(map[string]domain.ProposalVote),
		nextProposal: 1,
	}
}

func betKey(user, marketID string) string { return user + "|" + marketID }

func voteKey(voter string, proposalID uint64) string {
	return fmt.Sprintf("%s|%d", voter, proposalID)
}

// FeeConfigStore

func (s *memStore) Create(ctx context.Context, fc domain.FeeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fees[fc.Tier]; ok {
		return domain.ErrAlreadyExists
	}
	s.fees[fc.Tier] = fc
	return nil
}

func (s *memStore) GetByTier(ctx context.Context, tier uint8) (domain.FeeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.fees[tier]
	if !ok {
		return domain.FeeConfig{}, domain.ErrNotFound
	}
	return fc, nil
}

func (s *memStore) List(ctx context.Context) ([]domain.FeeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FeeConfig
	for _, fc := range s.fees {
		out = append(out, fc)
	}
	return out, nil
}

// marketStore wraps memStore to satisfy domain.MarketStore without method
// name collisions against the fee config interface.
type marketStore struct{ *memStore }

func (s marketStore) Create(ctx context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[m.MarketID]; ok {
		return domain.ErrAlreadyExists
	}
	s.markets[m.MarketID] = m
	return nil
}

func (s marketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s marketStore) GetByAddress(ctx context.Context, address string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.markets {
		if m.Address == address {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s marketStore) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if status == "" || m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s marketStore) ApplyBet(ctx context.Context, upd domain.PoolUpdate, bet domain.UserBet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[upd.MarketID]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusActive {
		return domain.ErrMarketNotActive
	}
	if m.YesPool != upd.PrevYes || m.NoPool != upd.PrevNo {
		return domain.ErrConflict
	}
	if _, ok := s.bets[betKey(bet.User, bet.MarketID)]; ok {
		return domain.ErrDuplicateBet
	}
	m.YesPool = upd.NewYes
	m.NoPool = upd.NewNo
	if upd.Side == domain.SideYes {
		m.TotalYesBets++
	} else {
		m.TotalNoBets++
	}
	m.UpdatedAt = bet.PlacedAt
	s.markets[upd.MarketID] = m
	s.bets[betKey(bet.User, bet.MarketID)] = bet
	return nil
}

func (s marketStore) Resolve(ctx context.Context, id string, outcome domain.MarketOutcome, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status == domain.MarketStatusResolved {
		return domain.ErrAlreadyResolved
	}
	if m.Status != domain.MarketStatusActive {
		return domain.ErrMarketNotActive
	}
	m.Status = domain.MarketStatusResolved
	m.Outcome = outcome
	m.ResolvedAt = &at
	m.UpdatedAt = at
	s.markets[id] = m
	return nil
}

func (s marketStore) Cancel(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusActive {
		return domain.ErrMarketNotActive
	}
	m.Status = domain.MarketStatusCancelled
	m.Outcome = domain.OutcomeInvalid
	m.ResolvedAt = &at
	m.UpdatedAt = at
	s.markets[id] = m
	return nil
}

func (s marketStore) ReleaseCreatorFees(ctx context.Context, id string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if m.CreatorFeesClaimed {
		return 0, domain.ErrAlreadyClaimed
	}
	m.CreatorFeesClaimed = true
	s.markets[id] = m
	return m.AccruedCreatorFees, nil
}

func (s marketStore) Stats(ctx context.Context) (domain.MarketStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st domain.MarketStats
	for _, m := range s.markets {
		st.TotalMarkets++
		if m.Status == domain.MarketStatusActive {
			st.ActiveMarkets++
		}
	}
	for _, b := range s.bets {
		st.TotalVolume += b.Amount
	}
	return st, nil
}

func (s marketStore) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.Terminal() && m.EndTime.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

// betStore wraps memStore to satisfy domain.BetStore.
type betStore struct{ *memStore }

func (s betStore) Get(ctx context.Context, user, marketID string) (domain.UserBet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[betKey(user, marketID)]
	if !ok {
		return domain.UserBet{}, domain.ErrNotFound
	}
	return b, nil
}

func (s betStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.UserBet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserBet
	for _, b := range s.bets {
		if b.MarketID == marketID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s betStore) ListByUser(ctx context.Context, user string, opts domain.ListOpts) ([]domain.UserBet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserBet
	for _, b := range s.bets {
		if b.User == user {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s betStore) Claim(ctx context.Context, user, marketID string, creatorFee uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[betKey(user, marketID)]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Claimed {
		return domain.ErrAlreadyClaimed
	}
	b.Claimed = true
	b.ClaimedAt = &at
	s.bets[betKey(user, marketID)] = b
	if creatorFee > 0 {
		m := s.markets[marketID]
		m.AccruedCreatorFees += creatorFee
		s.markets[marketID] = m
	}
	return nil
}

// proposalStore wraps memStore to satisfy domain.ProposalStore.
type proposalStore struct{ *memStore }

func (s proposalStore) Create(ctx context.Context, p domain.Proposal, derive func(id uint64) string) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ProposalID = s.nextProposal
	s.nextProposal++
	p.Address = derive(p.ProposalID)
	s.proposals[p.ProposalID] = p
	return p, nil
}

func (s proposalStore) GetByID(ctx context.Context, id uint64) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return domain.Proposal{}, domain.ErrNotFound
	}
	return p, nil
}

func (s proposalStore) GetByAddress(ctx context.Context, address string) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.proposals {
		if p.Address == address {
			return p, nil
		}
	}
	return domain.Proposal{}, domain.ErrNotFound
}

func (s proposalStore) List(ctx context.Context, status domain.ProposalStatus, opts domain.ListOpts) ([]domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Proposal
	for _, p := range s.proposals {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s proposalStore) CastVote(ctx context.Context, v domain.ProposalVote) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[v.ProposalID]
	if !ok {
		return domain.Proposal{}, domain.ErrNotFound
	}
	if p.Status != domain.ProposalStatusPending {
		return domain.Proposal{}, domain.ErrProposalNotPending
	}
	if _, ok := s.votes[voteKey(v.Voter, v.ProposalID)]; ok {
		return domain.Proposal{}, domain.ErrDuplicateVote
	}
	if v.VoteType == domain.VoteUp {
		p.VotesFor++
	} else {
		p.VotesAgainst++
	}
	p.UpdatedAt = v.CastAt
	s.proposals[v.ProposalID] = p
	s.votes[voteKey(v.Voter, v.ProposalID)] = v
	return p, nil
}

func (s proposalStore) ListVotes(ctx context.Context, proposalID uint64, opts domain.ListOpts) ([]domain.ProposalVote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ProposalVote
	for _, v := range s.votes {
		if v.ProposalID == proposalID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s proposalStore) SetStatus(ctx context.Context, id uint64, from, to domain.ProposalStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != from {
		return domain.ErrConflict
	}
	p.Status = to
	p.DecidedAt = &at
	p.UpdatedAt = at
	s.proposals[id] = p
	return nil
}

func (s proposalStore) Execute(ctx context.Context, id uint64, m domain.Market, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status == domain.ProposalStatusExecuted {
		return domain.ErrAlreadyExecuted
	}
	if p.Status != domain.ProposalStatusApproved {
		return domain.ErrProposalNotApproved
	}
	p.Status = domain.ProposalStatusExecuted
	p.ExecutedAt = &at
	p.UpdatedAt = at
	s.proposals[id] = p
	s.markets[m.MarketID] = m
	return nil
}
