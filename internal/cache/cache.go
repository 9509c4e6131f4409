// server/internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsTTL = 10 * time.Second

// Client is a thin read-through cache over Redis. Cache failures are
// never fatal; callers fall back to recomputation.
type Client struct {
	rdb redis.UniversalClient
}

func New(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

func statsKey() string {
	return "dispatch:stats"
}

func vehicleKey(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:snapshot", vehicleID)
}

// GetStats returns the cached statistics blob, unmarshalled into dst.
// The boolean is false on miss, decode failure or Redis error.
func (c *Client) GetStats(ctx context.Context, dst interface{}) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, statsKey()).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), dst) == nil
}

// SetStats stores the statistics blob with a short TTL.
func (c *Client) SetStats(ctx context.Context, stats interface{}) {
	if c == nil || c.rdb == nil {
		return
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, statsKey(), b, statsTTL).Err()
}

// InvalidateStats drops the cached statistics after a mutation.
func (c *Client) InvalidateStats(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Del(ctx, statsKey()).Err()
}

// SetVehicleSnapshot caches the latest vehicle document for dashboards
// polling individual units.
func (c *Client) SetVehicleSnapshot(ctx context.Context, vehicleID string, v interface{}, ttl time.Duration) {
	if c == nil || c.rdb == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, vehicleKey(vehicleID), b, ttl).Err()
}

// GetVehicleSnapshot returns the cached vehicle document if present.
func (c *Client) GetVehicleSnapshot(ctx context.Context, vehicleID string, dst interface{}) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, vehicleKey(vehicleID)).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), dst) == nil
}
