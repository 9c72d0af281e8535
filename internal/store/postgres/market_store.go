package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zmartlabs/zmartd/internal/domain"
)

const marketColumns = `
	market_id, address, question, creator, created_at, end_time,
	status, outcome, yes_pool, no_pool, total_yes_bets, total_no_bets,
	fee_config_id, creator_fees_claimed, accrued_creator_fees,
	resolved_at, updated_at`

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Create inserts a new market.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			market_id, address, question, creator, created_at, end_time,
			status, outcome, yes_pool, no_pool, total_yes_bets, total_no_bets,
			fee_config_id, creator_fees_claimed, accrued_creator_fees,
			resolved_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17
		)`

	_, err := s.pool.Exec(ctx, query,
		m.MarketID, m.Address, m.Question, m.Creator, m.CreatedAt, m.EndTime,
		string(m.Status), string(m.Outcome),
		int64(m.YesPool), int64(m.NoPool), int64(m.TotalYesBets), int64(m.TotalNoBets),
		int16(m.FeeConfigID), m.CreatorFeesClaimed, int64(m.AccruedCreatorFees),
		m.ResolvedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create market %s: %w", m.MarketID, err)
	}
	return nil
}

// GetByID returns the market with the given id.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	query := `SELECT` + marketColumns + ` FROM markets WHERE market_id = $1`
	m, err := scanMarket(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByAddress returns the market with the given derived address.
func (s *MarketStore) GetByAddress(ctx context.Context, address string) (domain.Market, error) {
	query := `SELECT` + marketColumns + ` FROM markets WHERE address = $1`
	m, err := scanMarket(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by address %s: %w", address, err)
	}
	return m, nil
}

// List returns markets newest first, optionally filtered by status.
func (s *MarketStore) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT` + marketColumns + ` FROM markets`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, listLimit(opts), opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()
	return collectMarkets(rows)
}

// ApplyBet atomically applies the pool update and inserts the bet record.
// The previous pool sizes in the WHERE clause reject a stale quote with
// ErrConflict so the caller can re-quote and retry.
func (s *MarketStore) ApplyBet(ctx context.Context, upd domain.PoolUpdate, bet domain.UserBet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: apply bet: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const updateQuery = `
		UPDATE markets SET
			yes_pool       = $1,
			no_pool        = $2,
			total_yes_bets = total_yes_bets + CASE WHEN $3 = 'yes' THEN 1 ELSE 0 END,
			total_no_bets  = total_no_bets  + CASE WHEN $3 = 'no'  THEN 1 ELSE 0 END,
			updated_at     = $4
		WHERE market_id = $5
		  AND status    = 'active'
		  AND yes_pool  = $6
		  AND no_pool   = $7`

	tag, err := tx.Exec(ctx, updateQuery,
		int64(upd.NewYes), int64(upd.NewNo), string(upd.Side), bet.PlacedAt,
		upd.MarketID, int64(upd.PrevYes), int64(upd.PrevNo),
	)
	if err != nil {
		return fmt.Errorf("postgres: apply bet: update pools: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale quote from a market gone terminal.
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM markets WHERE market_id = $1`, upd.MarketID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: apply bet: check status: %w", err)
		}
		if domain.MarketStatus(status) != domain.MarketStatusActive {
			return domain.ErrMarketNotActive
		}
		return domain.ErrConflict
	}

	const insertQuery = `
		INSERT INTO user_bets (
			user_addr, market_id, address, side, amount,
			potential_payout, placed_at, claimed, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NULL)`

	_, err = tx.Exec(ctx, insertQuery,
		bet.User, bet.MarketID, bet.Address, string(bet.Side),
		int64(bet.Amount), int64(bet.PotentialPayout), bet.PlacedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateBet
		}
		return fmt.Errorf("postgres: apply bet: insert bet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: apply bet: commit: %w", err)
	}
	return nil
}

// Resolve transitions the market from active to resolved with the given
// outcome. A market that is not active fails with ErrMarketNotActive.
func (s *MarketStore) Resolve(ctx context.Context, id string, outcome domain.MarketOutcome, at time.Time) error {
	const query = `
		UPDATE markets SET
			status      = 'resolved',
			outcome     = $1,
			resolved_at = $2,
			updated_at  = $2
		WHERE market_id = $3 AND status = 'active'`

	tag, err := s.pool.Exec(ctx, query, string(outcome), at, id)
	if err != nil {
		return fmt.Errorf("postgres: resolve market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, id)
	}
	return nil
}

// Cancel transitions the market from active to cancelled.
func (s *MarketStore) Cancel(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE markets SET
			status      = 'cancelled',
			outcome     = 'invalid',
			resolved_at = $1,
			updated_at  = $1
		WHERE market_id = $2 AND status = 'active'`

	tag, err := s.pool.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("postgres: cancel market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, id)
	}
	return nil
}

// ReleaseCreatorFees flips the creator fee flag exactly once and returns the
// accrued amount. A second call fails with ErrAlreadyClaimed.
func (s *MarketStore) ReleaseCreatorFees(ctx context.Context, id string) (uint64, error) {
	const query = `
		UPDATE markets SET
			creator_fees_claimed = TRUE
		WHERE market_id = $1 AND creator_fees_claimed = FALSE
		RETURNING accrued_creator_fees`

	var accrued int64
	err := s.pool.QueryRow(ctx, query, id).Scan(&accrued)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the market is missing or the fees were already released.
		var claimed bool
		err := s.pool.QueryRow(ctx, `SELECT creator_fees_claimed FROM markets WHERE market_id = $1`, id).Scan(&claimed)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("postgres: release creator fees %s: %w", id, err)
		}
		return 0, domain.ErrAlreadyClaimed
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: release creator fees %s: %w", id, err)
	}
	return uint64(accrued), nil
}

// Stats returns aggregate market counts and staked volume.
func (s *MarketStore) Stats(ctx context.Context) (domain.MarketStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COALESCE((SELECT SUM(amount) FROM user_bets), 0)
		FROM markets`

	var st domain.MarketStats
	var volume int64
	if err := s.pool.QueryRow(ctx, query).Scan(&st.TotalMarkets, &st.ActiveMarkets, &volume); err != nil {
		return domain.MarketStats{}, fmt.Errorf("postgres: market stats: %w", err)
	}
	st.TotalVolume = uint64(volume)
	return st, nil
}

// ListTerminalBefore returns resolved and cancelled markets that ended before
// the cutoff, oldest first, for archival.
func (s *MarketStore) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Market, error) {
	query := `SELECT` + marketColumns + `
		FROM markets
		WHERE status IN ('resolved', 'cancelled') AND end_time < $1
		ORDER BY end_time
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal markets: %w", err)
	}
	defer rows.Close()
	return collectMarkets(rows)
}

// transitionFailure maps a zero-row guarded update to the right sentinel.
func (s *MarketStore) transitionFailure(ctx context.Context, id string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM markets WHERE market_id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: check market %s: %w", id, err)
	}
	if domain.MarketStatus(status) == domain.MarketStatusResolved {
		return domain.ErrAlreadyResolved
	}
	return domain.ErrMarketNotActive
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status, outcome string
	var yesPool, noPool, totalYes, totalNo, accrued int64
	var feeTier int16
	err := row.Scan(
		&m.MarketID, &m.Address, &m.Question, &m.Creator, &m.CreatedAt, &m.EndTime,
		&status, &outcome, &yesPool, &noPool, &totalYes, &totalNo,
		&feeTier, &m.CreatorFeesClaimed, &accrued,
		&m.ResolvedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	m.Outcome = domain.MarketOutcome(outcome)
	m.YesPool = uint64(yesPool)
	m.NoPool = uint64(noPool)
	m.TotalYesBets = uint64(totalYes)
	m.TotalNoBets = uint64(totalNo)
	m.FeeConfigID = uint8(feeTier)
	m.AccruedCreatorFees = uint64(accrued)
	return m, nil
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return markets, nil
}

// listLimit clamps a ListOpts limit to a sane default.
func listLimit(opts domain.ListOpts) int {
	if opts.Limit <= 0 || opts.Limit > 500 {
		return 100
	}
	return opts.Limit
}
