package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// oddsTTL bounds how long a cached pair of prices can outlive its match; the
// odds refresher rewrites live entries long before this fires.
const oddsTTL = 48 * time.Hour

// OddsCache implements domain.OddsCache using Redis hashes. Each match's
// prices are stored at key "odds:{matchID}" with fields "home", "away", and
// "ts" (Unix nanosecond timestamp).
type OddsCache struct {
	rdb *redis.Client
}

// NewOddsCache creates an OddsCache backed by the given Client.
func NewOddsCache(c *Client) *OddsCache {
	return &OddsCache{rdb: c.Underlying()}
}

func oddsKey(matchID string) string {
	return "odds:" + matchID
}

// SetOdds stores the latest head-to-head prices for a match.
func (oc *OddsCache) SetOdds(ctx context.Context, matchID string, odds domain.MatchOdds) error {
	key := oddsKey(matchID)
	fields := map[string]interface{}{
		"home": odds.HomeOdds.String(),
		"away": odds.AwayOdds.String(),
		"ts":   strconv.FormatInt(odds.UpdatedAt.UnixNano(), 10),
	}

	pipe := oc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, oddsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set odds %s: %w", matchID, err)
	}
	return nil
}

// GetOdds retrieves the latest cached prices for a match. It returns
// domain.ErrNotFound when the key does not exist.
func (oc *OddsCache) GetOdds(ctx context.Context, matchID string) (domain.MatchOdds, error) {
	vals, err := oc.rdb.HGetAll(ctx, oddsKey(matchID)).Result()
	if err != nil {
		return domain.MatchOdds{}, fmt.Errorf("redis: get odds %s: %w", matchID, err)
	}
	if len(vals) == 0 {
		return domain.MatchOdds{}, domain.ErrNotFound
	}

	var odds domain.MatchOdds

	homeStr, ok := vals["home"]
	if !ok {
		return domain.MatchOdds{}, domain.ErrNotFound
	}
	if odds.HomeOdds, err = decimal.NewFromString(homeStr); err != nil {
		return domain.MatchOdds{}, fmt.Errorf("redis: parse home odds %s: %w", matchID, err)
	}

	awayStr, ok := vals["away"]
	if !ok {
		return domain.MatchOdds{}, domain.ErrNotFound
	}
	if odds.AwayOdds, err = decimal.NewFromString(awayStr); err != nil {
		return domain.MatchOdds{}, fmt.Errorf("redis: parse away odds %s: %w", matchID, err)
	}

	if tsStr, ok := vals["ts"]; ok {
		tsNano, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return domain.MatchOdds{}, fmt.Errorf("redis: parse odds ts %s: %w", matchID, err)
		}
		odds.UpdatedAt = time.Unix(0, tsNano)
	}

	return odds, nil
}

// Invalidate drops the cached prices for a match, typically at settlement.
func (oc *OddsCache) Invalidate(ctx context.Context, matchID string) error {
	if err := oc.rdb.Del(ctx, oddsKey(matchID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate odds %s: %w", matchID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OddsCache = (*OddsCache)(nil)
