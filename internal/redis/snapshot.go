package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/koios/skylight-calendar/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	snapshotKeyPrefix = "skylight:active:"
	snapshotTTL       = 24 * time.Hour
)

func snapshotKey(frameID string) string {
	return snapshotKeyPrefix + frameID
}

// saveSnapshot keeps the latest notice of a frame so late subscribers can
// read the current state without waiting for the next change
func (c *Client) saveSnapshot(ctx context.Context, body []byte, frameID string) error {
	if err := c.client.Set(ctx, snapshotKey(frameID), body, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to set key %s in Redis: %w", snapshotKey(frameID), err)
	}
	return nil
}

// ActiveSnapshot returns the last published notice for a frame
func (c *Client) ActiveSnapshot(ctx context.Context, frameID string) (models.ActiveEventNotice, bool, error) {
	body, err := c.client.Get(ctx, snapshotKey(frameID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return models.ActiveEventNotice{}, false, nil
		}
		return models.ActiveEventNotice{}, false, fmt.Errorf("failed to get key %s from Redis: %w", snapshotKey(frameID), err)
	}

	var notice models.ActiveEventNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		return models.ActiveEventNotice{}, false, fmt.Errorf("failed to decode snapshot for frame %s: %w", frameID, err)
	}
	return notice, true, nil
}

// FlushSnapshots removes the snapshots of the given frames
func (c *Client) FlushSnapshots(ctx context.Context, frameIDs ...string) error {
	if len(frameIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(frameIDs))
	for _, id := range frameIDs {
		keys = append(keys, snapshotKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// SnapshotCount returns how many frame snapshots are stored
func (c *Client) SnapshotCount(ctx context.Context) (int64, error) {
	var count int64
	iter := c.client.Scan(ctx, 0, snapshotKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count snapshot keys: %w", err)
	}
	return count, nil
}
