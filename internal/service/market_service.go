package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/zmartlabs/zmartd/internal/crypto"
	"github.com/zmartlabs/zmartd/internal/domain"
	"github.com/zmartlabs/zmartd/internal/engine"
)

// betApplyRetries bounds the re-quote loop when another instance moved the
// pools between our read and our guarded update.
const betApplyRetries = 3

const betLockTTL = 5 * time.Second

// RateLimit is a per-key request budget within a sliding window.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// MarketServiceConfig carries the tunables for MarketService.
type MarketServiceConfig struct {
	Params    engine.MarketParams
	Resolvers []string // hex addresses allowed to sign resolutions
	BetRate   RateLimit
}

// MarketService owns the market lifecycle: creation, betting, resolution,
// cancellation, and settlement. All state transitions go through the store's
// guarded updates; the service adds authorization, locking, caching, and
// event publication around them.
type MarketService struct {
	markets   domain.MarketStore
	bets      domain.BetStore
	fees      domain.FeeConfigStore
	cache     domain.MarketCache
	locks     domain.LockManager
	limiter   domain.RateLimiter
	bus       domain.SignalBus
	audit     domain.AuditStore
	clock     domain.Clock
	logger    *slog.Logger
	params    engine.MarketParams
	betRate   RateLimit
	resolvers map[common.Address]struct{}
}

// NewMarketService creates a MarketService with all required dependencies.
// Cache, locks, limiter, bus, and audit may be nil; the service degrades to
// uncached, unthrottled operation without them.
func NewMarketService(
	markets domain.MarketStore,
	bets domain.BetStore,
	fees domain.FeeConfigStore,
	cache domain.MarketCache,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	audit domain.AuditStore,
	clock domain.Clock,
	logger *slog.Logger,
	cfg MarketServiceConfig,
) *MarketService {
	resolvers := make(map[common.Address]struct{}, len(cfg.Resolvers))
	for _, r := range cfg.Resolvers {
		if crypto.ValidIdentity(r) {
			resolvers[common.HexToAddress(r)] = struct{}{}
		}
	}
	return &MarketService{
		markets:   markets,
		bets:      bets,
		fees:      fees,
		cache:     cache,
		locks:     locks,
		limiter:   limiter,
		bus:       bus,
		audit:     audit,
		clock:     clock,
		logger:    logger,
		params:    cfg.Params,
		betRate:   cfg.BetRate,
		resolvers: resolvers,
	}
}

// CreateMarketInput carries the parameters for a direct market creation.
type CreateMarketInput struct {
	Question    string
	Creator     string
	EndTime     time.Time
	FeeConfigID uint8
}

// CreateMarket validates the input, seeds a new market, and persists it.
func (s *MarketService) CreateMarket(ctx context.Context, in CreateMarketInput) (domain.Market, error) {
	if !crypto.ValidIdentity(in.Creator) {
		return domain.Market{}, domain.ErrInvalidIdentity
	}
	if _, err := s.fees.GetByTier(ctx, in.FeeConfigID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, domain.ErrUnknownFeeConfig
		}
		return domain.Market{}, fmt.Errorf("market_service: look up fee tier %d: %w", in.FeeConfigID, err)
	}

	id := uuid.New().String()
	m, err := engine.NewMarket(id, in.Question, in.Creator, in.EndTime, in.FeeConfigID, s.clock.Now(), s.params)
	if err != nil {
		return domain.Market{}, err
	}
	m.Address = crypto.MarketAddress(m.MarketID)

	if err := s.markets.Create(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create market: %w", err)
	}

	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", m.MarketID),
		slog.String("creator", m.Creator),
		slog.Time("end_time", m.EndTime),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type: domain.EventMarketCreated, At: m.CreatedAt, Market: &m,
	})
	auditLog(ctx, s.audit, s.logger, domain.EventMarketCreated, map[string]any{
		"market_id": m.MarketID,
		"creator":   m.Creator,
	})
	return m, nil
}

// PlaceBetInput carries the parameters for one bet.
type PlaceBetInput struct {
	User      string
	MarketID  string
	Side      domain.BetSide
	Amount    uint64
	MinPayout uint64 // slippage floor on potential payout, 0 disables
}

// PlaceBet quotes the bet against the current pools and applies it under a
// per-market lock. A stale quote is re-quoted up to betApplyRetries times
// before the conflict surfaces to the caller.
func (s *MarketService) PlaceBet(ctx context.Context, in PlaceBetInput) (domain.UserBet, error) {
	if !crypto.ValidIdentity(in.User) {
		return domain.UserBet{}, domain.ErrInvalidIdentity
	}
	if err := s.allow(ctx, "bet:"+in.User); err != nil {
		return domain.UserBet{}, err
	}

	unlock, err := s.acquire(ctx, "market:"+in.MarketID)
	if err != nil {
		return domain.UserBet{}, err
	}
	defer unlock()

	var bet domain.UserBet
	for attempt := 0; ; attempt++ {
		m, err := s.markets.GetByID(ctx, in.MarketID)
		if err != nil {
			return domain.UserBet{}, fmt.Errorf("market_service: get market %s: %w", in.MarketID, err)
		}

		now := s.clock.Now()
		quote, err := engine.PrepareBet(m, in.Side, in.Amount, in.MinPayout, now, s.params)
		if err != nil {
			return domain.UserBet{}, err
		}

		bet = domain.UserBet{
			User:            in.User,
			MarketID:        in.MarketID,
			Address:         crypto.UserBetAddress(in.User, in.MarketID),
			Side:            in.Side,
			Amount:          in.Amount,
			PotentialPayout: quote.PotentialPayout(),
			PlacedAt:        now,
		}
		upd := domain.PoolUpdate{
			MarketID: in.MarketID,
			PrevYes:  m.YesPool,
			PrevNo:   m.NoPool,
			NewYes:   quote.NewYes,
			NewNo:    quote.NewNo,
			Side:     in.Side,
		}

		err = s.markets.ApplyBet(ctx, upd, bet)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrConflict) && attempt < betApplyRetries {
			continue
		}
		if errors.Is(err, domain.ErrDuplicateBet) ||
			errors.Is(err, domain.ErrMarketNotActive) ||
			errors.Is(err, domain.ErrNotFound) ||
			errors.Is(err, domain.ErrConflict) {
			return domain.UserBet{}, err
		}
		return domain.UserBet{}, fmt.Errorf("market_service: apply bet: %w", err)
	}

	s.invalidate(ctx, in.MarketID)
	s.logger.InfoContext(ctx, "bet placed",
		slog.String("market_id", in.MarketID),
		slog.String("user", in.User),
		slog.String("side", string(in.Side)),
		slog.Uint64("amount", in.Amount),
		slog.Uint64("potential_payout", bet.PotentialPayout),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type: domain.EventBetPlaced, At: bet.PlacedAt, Bet: &bet,
	})
	auditLog(ctx, s.audit, s.logger, domain.EventBetPlaced, map[string]any{
		"market_id": in.MarketID,
		"user":      in.User,
		"side":      string(in.Side),
		"amount":    in.Amount,
	})
	return bet, nil
}

// ResolveMarket settles an ended market to the given outcome. The signature
// must be a resolution signature from a configured resolver over this
// market's address and outcome.
func (s *MarketService) ResolveMarket(ctx context.Context, marketID string, outcome domain.MarketOutcome, sigHex string) (domain.Market, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %s: %w", marketID, err)
	}

	resolver, err := crypto.RecoverResolver(m.Address, string(outcome), sigHex)
	if err != nil {
		return domain.Market{}, domain.ErrUnauthorized
	}
	if _, ok := s.resolvers[resolver]; !ok {
		return domain.Market{}, domain.ErrUnauthorized
	}

	now := s.clock.Now()
	if err := engine.ValidateResolve(m, outcome, now); err != nil {
		return domain.Market{}, err
	}

	if err := s.markets.Resolve(ctx, marketID, outcome, now); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: resolve market %s: %w", marketID, err)
	}

	m, err = s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: reload market %s: %w", marketID, err)
	}

	s.invalidate(ctx, marketID)
	s.logger.InfoContext(ctx, "market resolved",
		slog.String("market_id", marketID),
		slog.String("outcome", string(outcome)),
		slog.String("resolver", resolver.Hex()),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type: domain.EventMarketResolved, At: now, Market: &m,
	})
	auditLog(ctx, s.audit, s.logger, domain.EventMarketResolved, map[string]any{
		"market_id": marketID,
		"outcome":   string(outcome),
		"resolver":  resolver.Hex(),
	})
	return m, nil
}

// CancelMarket voids an active market. Only the market's creator or a
// configured resolver may cancel; every stake becomes refundable in full.
func (s *MarketService) CancelMarket(ctx context.Context, marketID, authority string) (domain.Market, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %s: %w", marketID, err)
	}

	if !s.canCancel(m, authority) {
		return domain.Market{}, domain.ErrUnauthorized
	}
	if err := engine.ValidateCancel(m); err != nil {
		return domain.Market{}, err
	}

	now := s.clock.Now()
	if err := s.markets.Cancel(ctx, marketID, now); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: cancel market %s: %w", marketID, err)
	}

	m, err = s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: reload market %s: %w", marketID, err)
	}

	s.invalidate(ctx, marketID)
	s.logger.InfoContext(ctx, "market cancelled",
		slog.String("market_id", marketID),
		slog.String("authority", authority),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type: domain.EventMarketCancelled, At: now, Market: &m,
	})
	auditLog(ctx, s.audit, s.logger, domain.EventMarketCancelled, map[string]any{
		"market_id": marketID,
		"authority": authority,
	})
	return m, nil
}

func (s *MarketService) canCancel(m domain.Market, authority string) bool {
	if !crypto.ValidIdentity(authority) {
		return false
	}
	addr := common.HexToAddress(authority)
	if addr == common.HexToAddress(m.Creator) {
		return true
	}
	_, ok := s.resolvers[addr]
	return ok
}

// ClaimWinnings settles a user's bet on a terminal market and marks it
// claimed. It returns the settlement breakdown; the net amount is what the
// payout rail owes the bettor.
func (s *MarketService) ClaimWinnings(ctx context.Context, user, marketID string) (domain.Settlement, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market_service: get market %s: %w", marketID, err)
	}
	bet, err := s.bets.Get(ctx, user, marketID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market_service: get bet %s/%s: %w", user, marketID, err)
	}
	fc, err := s.fees.GetByTier(ctx, m.FeeConfigID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market_service: get fee tier %d: %w", m.FeeConfigID, err)
	}

	settlement, err := engine.SettleBet(m, bet, fc)
	if err != nil {
		return domain.Settlement{}, err
	}

	now := s.clock.Now()
	if err := s.bets.Claim(ctx, user, marketID, settlement.CreatorFee, now); err != nil {
		return domain.Settlement{}, fmt.Errorf("market_service: claim bet %s/%s: %w", user, marketID, err)
	}

	bet.Claimed = true
	bet.ClaimedAt = &now
	s.invalidate(ctx, marketID)
	s.logger.InfoContext(ctx, "winnings claimed",
		slog.String("market_id", marketID),
		slog.String("user", user),
		slog.Uint64("gross", settlement.Gross),
		slog.Uint64("net", settlement.Net),
	)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type: domain.EventWinningsClaimed, At: now, Bet: &bet,
	})
	auditLog(ctx, s.audit, s.logger, domain.EventWinningsClaimed, map[string]any{
		"market_id": marketID,
		"user":      user,
		"gross":     settlement.Gross,
		"net":       settlement.Net,
	})
	return settlement, nil
}

// ClaimCreatorFees releases the creator fees accrued during settlement.
// Only the market's creator may claim, exactly once, after the market has
// gone terminal.
func (s *MarketService) ClaimCreatorFees(ctx context.Context, marketID, caller string) (uint64, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("market_service: get market %s: %w", marketID, err)
	}
	if !crypto.ValidIdentity(caller) || common.HexToAddress(caller) != common.HexToAddress(m.Creator) {
		return 0, domain.ErrUnauthorized
	}
	if !m.Terminal() {
		return 0, domain.ErrMarketNotResolved
	}

	amount, err := s.markets.ReleaseCreatorFees(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("market_service: release creator fees %s: %w", marketID, err)
	}

	now := s.clock.Now()
	s.invalidate(ctx, marketID)
	s.logger.InfoContext(ctx, "creator fees claimed",
		slog.String("market_id", marketID),
		slog.Uint64("amount", amount),
	)
	m.CreatorFeesClaimed = true
	publishEvent(ctx, s.bus, s.logger, domain.ChannelMarkets, domain.Event{
		Type: domain.EventCreatorFeesClaimed, At: now, Market: &m,
	})
	auditLog(ctx, s.audit, s.logger, domain.EventCreatorFeesClaimed, map[string]any{
		"market_id": marketID,
		"creator":   caller,
		"amount":    amount,
	})
	return amount, nil
}

// GetMarket retrieves a market by id, cache first.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by id %q: %w", id, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.String("market_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return m, nil
}

// GetMarketByAddress retrieves a market by its derived record address.
func (s *MarketService) GetMarketByAddress(ctx context.Context, address string) (domain.Market, error) {
	m, err := s.markets.GetByAddress(ctx, address)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by address %q: %w", address, err)
	}
	return m, nil
}

// ListMarkets returns markets filtered by status; an empty status lists all.
func (s *MarketService) ListMarkets(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.List(ctx, status, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list markets: %w", err)
	}
	return markets, nil
}

// GetBet returns the bet a user holds on a market.
func (s *MarketService) GetBet(ctx context.Context, user, marketID string) (domain.UserBet, error) {
	bet, err := s.bets.Get(ctx, user, marketID)
	if err != nil {
		return domain.UserBet{}, fmt.Errorf("market_service: get bet %s/%s: %w", user, marketID, err)
	}
	return bet, nil
}

// ListBetsByMarket returns the bets on a market.
func (s *MarketService) ListBetsByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.UserBet, error) {
	bets, err := s.bets.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list bets for market %s: %w", marketID, err)
	}
	return bets, nil
}

// ListBetsByUser returns a user's bets across markets.
func (s *MarketService) ListBetsByUser(ctx context.Context, user string, opts domain.ListOpts) ([]domain.UserBet, error) {
	bets, err := s.bets.ListByUser(ctx, user, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list bets for user %s: %w", user, err)
	}
	return bets, nil
}

// Odds returns the display odds for a market. They are a pool-share
// approximation for UIs; payouts always come from the locked quote.
func (s *MarketService) Odds(ctx context.Context, marketID string) (yes, no float64, err error) {
	m, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return 0, 0, err
	}
	yes, no = engine.Odds(m.YesPool, m.NoPool)
	return yes, no, nil
}

// Stats returns aggregate platform statistics.
func (s *MarketService) Stats(ctx context.Context) (domain.MarketStats, error) {
	st, err := s.markets.Stats(ctx)
	if err != nil {
		return domain.MarketStats{}, fmt.Errorf("market_service: stats: %w", err)
	}
	return st, nil
}

// ListFeeConfigs returns all registered fee schedules.
func (s *MarketService) ListFeeConfigs(ctx context.Context) ([]domain.FeeConfig, error) {
	configs, err := s.fees.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: list fee configs: %w", err)
	}
	return configs, nil
}

// GetFeeConfig returns one fee schedule by tier.
func (s *MarketService) GetFeeConfig(ctx context.Context, tier uint8) (domain.FeeConfig, error) {
	fc, err := s.fees.GetByTier(ctx, tier)
	if err != nil {
		return domain.FeeConfig{}, fmt.Errorf("market_service: get fee tier %d: %w", tier, err)
	}
	return fc, nil
}

// RegisterFeeConfig validates and persists a new immutable fee schedule.
func (s *MarketService) RegisterFeeConfig(ctx context.Context, fc domain.FeeConfig) (domain.FeeConfig, error) {
	if err := engine.ValidateFeeConfig(fc); err != nil {
		return domain.FeeConfig{}, err
	}
	fc.Address = crypto.FeeConfigAddress(fc.Tier)
	fc.CreatedAt = s.clock.Now()
	if err := s.fees.Create(ctx, fc); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.FeeConfig{}, err
		}
		return domain.FeeConfig{}, fmt.Errorf("market_service: create fee config: %w", err)
	}
	s.logger.InfoContext(ctx, "fee config registered",
		slog.Int("tier", int(fc.Tier)),
		slog.Int("total_bps", int(fc.TotalBps())),
	)
	return fc, nil
}

func (s *MarketService) allow(ctx context.Context, key string) error {
	if s.limiter == nil || s.betRate.Limit <= 0 {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, key, s.betRate.Limit, s.betRate.Window)
	if err != nil {
		// A limiter outage should not take betting down with it.
		s.logger.WarnContext(ctx, "rate limiter unavailable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

func (s *MarketService) acquire(ctx context.Context, key string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	unlock, err := s.locks.Acquire(ctx, key, betLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, domain.ErrLockHeld
		}
		return nil, fmt.Errorf("market_service: acquire lock %s: %w", key, err)
	}
	return unlock, nil
}

func (s *MarketService) invalidate(ctx context.Context, marketID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}
