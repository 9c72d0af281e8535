package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// FeeConfigStore implements domain.FeeConfigStore using PostgreSQL.
type FeeConfigStore struct {
	pool *pgxpool.Pool
}

// NewFeeConfigStore creates a new FeeConfigStore backed by the given connection pool.
func NewFeeConfigStore(pool *pgxpool.Pool) *FeeConfigStore {
	return &FeeConfigStore{pool: pool}
}

// Create inserts a fee schedule. Tiers are immutable once written, so a
// repeat insert for an existing tier fails with ErrAlreadyExists.
func (s *FeeConfigStore) Create(ctx context.Context, fc domain.FeeConfig) error {
	const query = `
		INSERT INTO fee_configs (
			tier, address, platform_fee_bps, team_fee_bps, creator_fee_bps,
			burn_fee_bps, beneficiary_fee_bps, beneficiary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		int16(fc.Tier), fc.Address,
		int32(fc.PlatformFeeBps), int32(fc.TeamFeeBps), int32(fc.CreatorFeeBps),
		int32(fc.BurnFeeBps), int32(fc.BeneficiaryFeeBps),
		fc.Beneficiary, fc.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create fee config tier %d: %w", fc.Tier, err)
	}
	return nil
}

// GetByTier returns the fee schedule for the given tier.
func (s *FeeConfigStore) GetByTier(ctx context.Context, tier uint8) (domain.FeeConfig, error) {
	const query = `
		SELECT tier, address, platform_fee_bps, team_fee_bps, creator_fee_bps,
		       burn_fee_bps, beneficiary_fee_bps, beneficiary, created_at
		FROM fee_configs
		WHERE tier = $1`

	fc, err := scanFeeConfig(s.pool.QueryRow(ctx, query, int16(tier)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FeeConfig{}, domain.ErrNotFound
		}
		return domain.FeeConfig{}, fmt.Errorf("postgres: get fee config tier %d: %w", tier, err)
	}
	return fc, nil
}

// List returns all fee schedules ordered by tier.
func (s *FeeConfigStore) List(ctx context.Context) ([]domain.FeeConfig, error) {
	const query = `
		SELECT tier, address, platform_fee_bps, team_fee_bps, creator_fee_bps,
		       burn_fee_bps, beneficiary_fee_bps, beneficiary, created_at
		FROM fee_configs
		ORDER BY tier`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fee configs: %w", err)
	}
	defer rows.Close()

	var configs []domain.FeeConfig
	for rows.Next() {
		fc, err := scanFeeConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan fee config: %w", err)
		}
		configs = append(configs, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list fee configs: %w", err)
	}
	return configs, nil
}

func scanFeeConfig(row pgx.Row) (domain.FeeConfig, error) {
	var fc domain.FeeConfig
	var tier int16
	var platform, team, creator, burn, beneficiary int32
	err := row.Scan(
		&tier, &fc.Address, &platform, &team, &creator,
		&burn, &beneficiary, &fc.Beneficiary, &fc.CreatedAt,
	)
	if err != nil {
		return domain.FeeConfig{}, err
	}
	fc.Tier = uint8(tier)
	fc.PlatformFeeBps = uint16(platform)
	fc.TeamFeeBps = uint16(team)
	fc.CreatorFeeBps = uint16(creator)
	fc.BurnFeeBps = uint16(burn)
	fc.BeneficiaryFeeBps = uint16(beneficiary)
	return fc, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
