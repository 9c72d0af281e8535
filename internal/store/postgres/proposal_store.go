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

const proposalColumns = `
	proposal_id, address, proposer, market_id, question, end_time,
	fee_config_id, created_at, status, votes_for, votes_against,
	decided_at, executed_at, updated_at`

// ProposalStore implements domain.ProposalStore using PostgreSQL.
type ProposalStore struct {
	pool *pgxpool.Pool
}

// NewProposalStore creates a new ProposalStore backed by the given connection pool.
func NewProposalStore(pool *pgxpool.Pool) *ProposalStore {
	return &ProposalStore{pool: pool}
}

// Create allocates the next proposal id from the single-row counter and
// inserts the proposal in the same transaction. The derive callback turns
// the allocated id into the proposal's record address.
func (s *ProposalStore) Create(ctx context.Context, p domain.Proposal, derive func(id uint64) string) (domain.Proposal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("postgres: create proposal: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const counterQuery = `
		UPDATE proposal_counter SET next_id = next_id + 1
		WHERE id = 1
		RETURNING next_id - 1`

	var id int64
	if err := tx.QueryRow(ctx, counterQuery).Scan(&id); err != nil {
		return domain.Proposal{}, fmt.Errorf("postgres: create proposal: allocate id: %w", err)
	}

	p.ProposalID = uint64(id)
	p.Address = derive(p.ProposalID)

	const insertQuery = `
		INSERT INTO proposals (
			proposal_id, address, proposer, market_id, question, end_time,
			fee_config_id, created_at, status, votes_for, votes_against,
			decided_at, executed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14
		)`

	_, err = tx.Exec(ctx, insertQuery,
		id, p.Address, p.Proposer, p.MarketID, p.Question, p.EndTime,
		int16(p.FeeConfigID), p.CreatedAt, string(p.Status),
		int64(p.VotesFor), int64(p.VotesAgainst),
		p.DecidedAt, p.ExecutedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Proposal{}, domain.ErrAlreadyExists
		}
		return domain.Proposal{}, fmt.Errorf("postgres: create proposal: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Proposal{}, fmt.Errorf("postgres: create proposal: commit: %w", err)
	}
	return p, nil
}

// GetByID returns the proposal with the given id.
func (s *ProposalStore) GetByID(ctx context.Context, id uint64) (domain.Proposal, error) {
	query := `SELECT` + proposalColumns + ` FROM proposals WHERE proposal_id = $1`
	p, err := scanProposal(s.pool.QueryRow(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Proposal{}, domain.ErrNotFound
		}
		return domain.Proposal{}, fmt.Errorf("postgres: get proposal %d: %w", id, err)
	}
	return p, nil
}

// GetByAddress returns the proposal with the given derived address.
func (s *ProposalStore) GetByAddress(ctx context.Context, address string) (domain.Proposal, error) {
	query := `SELECT` + proposalColumns + ` FROM proposals WHERE address = $1`
	p, err := scanProposal(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Proposal{}, domain.ErrNotFound
		}
		return domain.Proposal{}, fmt.Errorf("postgres: get proposal by address %s: %w", address, err)
	}
	return p, nil
}

// List returns proposals newest first, optionally filtered by status.
func (s *ProposalStore) List(ctx context.Context, status domain.ProposalStatus, opts domain.ListOpts) ([]domain.Proposal, error) {
	query := `SELECT` + proposalColumns + ` FROM proposals`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, listLimit(opts), opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate proposals: %w", err)
	}
	return proposals, nil
}

// CastVote inserts the vote and bumps the matching tally in one transaction,
// returning the updated proposal. Voting on a decided proposal fails with
// ErrProposalNotPending and a repeat vote with ErrDuplicateVote.
func (s *ProposalStore) CastVote(ctx context.Context, v domain.ProposalVote) (domain.Proposal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("postgres: cast vote: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const tallyQuery = `
		UPDATE proposals SET
			votes_for     = votes_for     + CASE WHEN $1 = 'upvote'   THEN 1 ELSE 0 END,
			votes_against = votes_against + CASE WHEN $1 = 'downvote' THEN 1 ELSE 0 END,
			updated_at    = $2
		WHERE proposal_id = $3 AND status = 'pending'
		RETURNING` + proposalColumns

	p, err := scanProposal(tx.QueryRow(ctx, tallyQuery, string(v.VoteType), v.CastAt, int64(v.ProposalID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Missing proposal or voting already closed.
			var status string
			err := tx.QueryRow(ctx, `SELECT status FROM proposals WHERE proposal_id = $1`, int64(v.ProposalID)).Scan(&status)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.Proposal{}, domain.ErrNotFound
			}
			if err != nil {
				return domain.Proposal{}, fmt.Errorf("postgres: cast vote: check status: %w", err)
			}
			return domain.Proposal{}, domain.ErrProposalNotPending
		}
		return domain.Proposal{}, fmt.Errorf("postgres: cast vote: tally: %w", err)
	}

	const insertQuery = `
		INSERT INTO proposal_votes (voter, proposal_id, address, vote_type, cast_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = tx.Exec(ctx, insertQuery,
		v.Voter, int64(v.ProposalID), v.Address, string(v.VoteType), v.CastAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Proposal{}, domain.ErrDuplicateVote
		}
		return domain.Proposal{}, fmt.Errorf("postgres: cast vote: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Proposal{}, fmt.Errorf("postgres: cast vote: commit: %w", err)
	}
	return p, nil
}

// ListVotes returns the votes on a proposal, oldest first.
func (s *ProposalStore) ListVotes(ctx context.Context, proposalID uint64, opts domain.ListOpts) ([]domain.ProposalVote, error) {
	const query = `
		SELECT voter, proposal_id, address, vote_type, cast_at
		FROM proposal_votes
		WHERE proposal_id = $1
		ORDER BY cast_at
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, int64(proposalID), listLimit(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list votes for proposal %d: %w", proposalID, err)
	}
	defer rows.Close()

	var votes []domain.ProposalVote
	for rows.Next() {
		var v domain.ProposalVote
		var id int64
		var voteType string
		if err := rows.Scan(&v.Voter, &id, &v.Address, &voteType, &v.CastAt); err != nil {
			return nil, fmt.Errorf("postgres: scan vote: %w", err)
		}
		v.ProposalID = uint64(id)
		v.VoteType = domain.VoteType(voteType)
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate votes: %w", err)
	}
	return votes, nil
}

// SetStatus applies a guarded from -> to status transition. It fails with
// ErrConflict when the proposal is no longer in from, which callers treat
// as a concurrent decision having already landed.
func (s *ProposalStore) SetStatus(ctx context.Context, id uint64, from, to domain.ProposalStatus, at time.Time) error {
	const query = `
		UPDATE proposals SET
			status     = $1,
			decided_at = $2,
			updated_at = $2
		WHERE proposal_id = $3 AND status = $4`

	tag, err := s.pool.Exec(ctx, query, string(to), at, int64(id), string(from))
	if err != nil {
		return fmt.Errorf("postgres: set proposal %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM proposals WHERE proposal_id = $1)`, int64(id)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("postgres: set proposal %d status: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

// Execute transitions the proposal from approved to executed and creates its
// market in one transaction.
func (s *ProposalStore) Execute(ctx context.Context, id uint64, m domain.Market, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: execute proposal: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const transitionQuery = `
		UPDATE proposals SET
			status      = 'executed',
			executed_at = $1,
			updated_at  = $1
		WHERE proposal_id = $2 AND status = 'approved'`

	tag, err := tx.Exec(ctx, transitionQuery, at, int64(id))
	if err != nil {
		return fmt.Errorf("postgres: execute proposal %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM proposals WHERE proposal_id = $1`, int64(id)).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: execute proposal %d: check status: %w", id, err)
		}
		if domain.ProposalStatus(status) == domain.ProposalStatusExecuted {
			return domain.ErrAlreadyExecuted
		}
		return domain.ErrProposalNotApproved
	}

	const marketQuery = `
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

	_, err = tx.Exec(ctx, marketQuery,
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
		return fmt.Errorf("postgres: execute proposal %d: create market: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: execute proposal: commit: %w", err)
	}
	return nil
}

func scanProposal(row pgx.Row) (domain.Proposal, error) {
	var p domain.Proposal
	var id, votesFor, votesAgainst int64
	var feeTier int16
	var status string
	err := row.Scan(
		&id, &p.Address, &p.Proposer, &p.MarketID, &p.Question, &p.EndTime,
		&feeTier, &p.CreatedAt, &status, &votesFor, &votesAgainst,
		&p.DecidedAt, &p.ExecutedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Proposal{}, err
	}
	p.ProposalID = uint64(id)
	p.FeeConfigID = uint8(feeTier)
	p.Status = domain.ProposalStatus(status)
	p.VotesFor = uint64(votesFor)
	p.VotesAgainst = uint64(votesAgainst)
	return p, nil
}
