package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// Active markets move on every bet, so the TTL is short; reads that need an
// exact pool snapshot go to Postgres.
const marketTTL = 30 * time.Second

// MarketCache implements domain.MarketCache with JSON-serialized markets
// under a short TTL.
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(id string) string { return "market:" + id }

// Set stores a market in the cache.
func (mc *MarketCache) Set(ctx context.Context, m domain.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", m.MarketID, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(m.MarketID), data, marketTTL).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", m.MarketID, err)
	}
	return nil
}

// Get retrieves a market by id. It returns domain.ErrNotFound on a miss.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return m, nil
}

// Invalidate removes a market from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	if err := mc.rdb.Del(ctx, marketKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
