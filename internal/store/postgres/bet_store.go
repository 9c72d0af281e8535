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

const betColumns = `
	user_addr, market_id, address, side, amount,
	potential_payout, placed_at, claimed, claimed_at`

// BetStore implements domain.BetStore using PostgreSQL. Bets are inserted
// by MarketStore.ApplyBet; this store covers reads and settlement.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Get returns the bet placed by user on the given market.
func (s *BetStore) Get(ctx context.Context, user, marketID string) (domain.UserBet, error) {
	query := `SELECT` + betColumns + ` FROM user_bets WHERE user_addr = $1 AND market_id = $2`
	b, err := scanBet(s.pool.QueryRow(ctx, query, user, marketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserBet{}, domain.ErrNotFound
		}
		return domain.UserBet{}, fmt.Errorf("postgres: get bet %s/%s: %w", user, marketID, err)
	}
	return b, nil
}

// ListByMarket returns the bets on a market, oldest first.
func (s *BetStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.UserBet, error) {
	query := `SELECT` + betColumns + `
		FROM user_bets
		WHERE market_id = $1
		ORDER BY placed_at
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, marketID, listLimit(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for market %s: %w", marketID, err)
	}
	defer rows.Close()
	return collectBets(rows)
}

// ListByUser returns a user's bets, newest first.
func (s *BetStore) ListByUser(ctx context.Context, user string, opts domain.ListOpts) ([]domain.UserBet, error) {
	query := `SELECT` + betColumns + `
		FROM user_bets
		WHERE user_addr = $1
		ORDER BY placed_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, user, listLimit(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for user %s: %w", user, err)
	}
	defer rows.Close()
	return collectBets(rows)
}

// Claim flips the bet's claimed flag and accrues the withheld creator fee
// onto the market in one transaction. The guarded update makes a repeat
// claim fail with ErrAlreadyClaimed.
func (s *BetStore) Claim(ctx context.Context, user, marketID string, creatorFee uint64, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: claim bet: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const claimQuery = `
		UPDATE user_bets SET
			claimed    = TRUE,
			claimed_at = $1
		WHERE user_addr = $2 AND market_id = $3 AND claimed = FALSE`

	tag, err := tx.Exec(ctx, claimQuery, at, user, marketID)
	if err != nil {
		return fmt.Errorf("postgres: claim bet %s/%s: %w", user, marketID, err)
	}
	if tag.RowsAffected() == 0 {
		var claimed bool
		err := tx.QueryRow(ctx,
			`SELECT claimed FROM user_bets WHERE user_addr = $1 AND market_id = $2`,
			user, marketID,
		).Scan(&claimed)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: claim bet %s/%s: %w", user, marketID, err)
		}
		return domain.ErrAlreadyClaimed
	}

	if creatorFee > 0 {
		const accrueQuery = `
			UPDATE markets SET
				accrued_creator_fees = accrued_creator_fees + $1,
				updated_at           = $2
			WHERE market_id = $3`

		if _, err := tx.Exec(ctx, accrueQuery, int64(creatorFee), at, marketID); err != nil {
			return fmt.Errorf("postgres: claim bet: accrue creator fee: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: claim bet: commit: %w", err)
	}
	return nil
}

func scanBet(row pgx.Row) (domain.UserBet, error) {
	var b domain.UserBet
	var side string
	var amount, payout int64
	err := row.Scan(
		&b.User, &b.MarketID, &b.Address, &side, &amount,
		&payout, &b.PlacedAt, &b.Claimed, &b.ClaimedAt,
	)
	if err != nil {
		return domain.UserBet{}, err
	}
	b.Side = domain.BetSide(side)
	b.Amount = uint64(amount)
	b.PotentialPayout = uint64(payout)
	return b, nil
}

func collectBets(rows pgx.Rows) ([]domain.UserBet, error) {
	var bets []domain.UserBet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate bets: %w", err)
	}
	return bets, nil
}
