package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zmartlabs/zmartd/internal/domain"
)

const proposalTTL = 30 * time.Second

// ProposalCache implements domain.ProposalCache with JSON-serialized
// proposals under a short TTL. Vote tallies change frequently while a
// proposal is pending, so entries are invalidated on every mutation.
type ProposalCache struct {
	rdb *redis.Client
}

// NewProposalCache creates a ProposalCache backed by the given Client.
func NewProposalCache(c *Client) *ProposalCache {
	return &ProposalCache{rdb: c.Underlying()}
}

func proposalKey(id uint64) string {
	return "proposal:" + strconv.FormatUint(id, 10)
}

// Set stores a proposal in the cache.
func (pc *ProposalCache) Set(ctx context.Context, p domain.Proposal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal proposal %d: %w", p.ProposalID, err)
	}
	if err := pc.rdb.Set(ctx, proposalKey(p.ProposalID), data, proposalTTL).Err(); err != nil {
		return fmt.Errorf("redis: set proposal %d: %w", p.ProposalID, err)
	}
	return nil
}

// Get retrieves a proposal by id. It returns domain.ErrNotFound on a miss.
func (pc *ProposalCache) Get(ctx context.Context, id uint64) (domain.Proposal, error) {
	data, err := pc.rdb.Get(ctx, proposalKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Proposal{}, domain.ErrNotFound
		}
		return domain.Proposal{}, fmt.Errorf("redis: get proposal %d: %w", id, err)
	}

	var p domain.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Proposal{}, fmt.Errorf("redis: unmarshal proposal %d: %w", id, err)
	}
	return p, nil
}

// Invalidate removes a proposal from the cache.
func (pc *ProposalCache) Invalidate(ctx context.Context, id uint64) error {
	if err := pc.rdb.Del(ctx, proposalKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate proposal %d: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ProposalCache = (*ProposalCache)(nil)
