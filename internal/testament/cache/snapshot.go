// Package cache fronts the testament query surface with Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"testament/internal/testament/models"
	id "testament/pkg/domain"
	"testament/pkg/platform/sentinel"
)

const keyPrefix = "testament:snapshot:"

// setIfNewer stores ARGV[1] unless the key already holds a snapshot whose
// version is at least ARGV[2]. ARGV[3] is the TTL in milliseconds, 0 for none.
// It returns 1 when the value was written.
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, decoded = pcall(cjson.decode, current)
	if ok and type(decoded) == 'table' and tonumber(decoded['version']) and tonumber(decoded['version']) >= tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// SnapshotCache stores testament snapshots as JSON with a TTL. The service
// writes the committed snapshot after every mutation and on read-through; Set
// never replaces a snapshot with an older version.
type SnapshotCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewSnapshotCache(client redis.Cmdable, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func key(testamentID id.TestamentID) string {
	return keyPrefix + testamentID.String()
}

func (c *SnapshotCache) Get(ctx context.Context, testamentID id.TestamentID) (*models.Snapshot, error) {
	raw, err := c.client.Get(ctx, key(testamentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Set stores snapshot unless the cached one is at the same or a later version.
func (c *SnapshotCache) Set(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot is required")
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = setIfNewer.Run(ctx, c.client, []string{key(snapshot.ID)}, raw, snapshot.Version, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

func (c *SnapshotCache) Invalidate(ctx context.Context, testamentID id.TestamentID) error {
	if err := c.client.Del(ctx, key(testamentID)).Err(); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	return nil
}
