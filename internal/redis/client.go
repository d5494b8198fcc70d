package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/koios/skylight-calendar/internal/config"
	"github.com/koios/skylight-calendar/internal/store"
	"github.com/koios/skylight-calendar/pkg/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	entryKeyPrefix    = "skylight:entry:"
	entryIndexKey     = "skylight:entries"
	refreshStreamKey  = "skylight:refresh_requests"
	noticeChannelBase = "calendar:"
)

// Client wraps the Redis client for config entry storage, active event
// notices and refresh request streams
type Client struct {
	client *redis.Client
	config config.RedisConfig
	logger *zap.Logger
}

// NewClient creates a new Redis client
func NewClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Client, error) {
	// Generate consumer name if not provided
	if cfg.ConsumerName == "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "unknown"
		}
		cfg.ConsumerName = fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
	})

	// Test the connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client := &Client{
		client: rdb,
		config: cfg,
		logger: logger,
	}

	logger.Info("Connected to Redis",
		zap.String("addr", cfg.Addr),
		zap.String("consumer_group", cfg.ConsumerGroup),
		zap.String("consumer_name", cfg.ConsumerName))

	if err := client.initializeConsumerGroup(ctx); err != nil {
		logger.Warn("Failed to initialize consumer group (may already exist)", zap.Error(err))
	}

	return client, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Save stores an entry as JSON and indexes its id
func (c *Client) Save(ctx context.Context, entry *models.ConfigEntry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal config entry: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, entryKeyPrefix+entry.EntryID, body, 0)
	pipe.SAdd(ctx, entryIndexKey, entry.EntryID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save config entry %s: %w", entry.EntryID, err)
	}

	c.logger.Debug("Config entry saved", zap.String("entry_id", entry.EntryID))
	return nil
}

// Get loads one entry
func (c *Client) Get(ctx context.Context, entryID string) (*models.ConfigEntry, error) {
	body, err := c.client.Get(ctx, entryKeyPrefix+entryID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, store.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get config entry %s: %w", entryID, err)
	}

	var entry models.ConfigEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode config entry %s: %w", entryID, err)
	}
	return &entry, nil
}

// List loads every indexed entry ordered by creation time
func (c *Client) List(ctx context.Context) ([]*models.ConfigEntry, error) {
	ids, err := c.client.SMembers(ctx, entryIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list config entries: %w", err)
	}

	entries := make([]*models.ConfigEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := c.Get(ctx, id)
		if errors.Is(err, store.ErrEntryNotFound) {
			// Index points at a deleted key
			c.client.SRem(ctx, entryIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].EntryID < entries[j].EntryID
	})
	return entries, nil
}

// Delete removes an entry and the snapshots of its frames
func (c *Client) Delete(ctx context.Context, entryID string) error {
	if entry, err := c.Get(ctx, entryID); err == nil {
		frameIDs := make([]string, 0, len(entry.Data.FrameData))
		for _, frame := range entry.Data.FrameData {
			frameIDs = append(frameIDs, frame.ID)
		}
		if err := c.FlushSnapshots(ctx, frameIDs...); err != nil {
			c.logger.Warn("Failed to flush active event snapshots", zap.String("entry_id", entryID), zap.Error(err))
		}
	}

	removed, err := c.client.Del(ctx, entryKeyPrefix+entryID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete config entry %s: %w", entryID, err)
	}
	c.client.SRem(ctx, entryIndexKey, entryID)

	if removed == 0 {
		return store.ErrEntryNotFound
	}
	return nil
}

// PublishActiveEvent publishes a notice to the frame-specific channel
func (c *Client) PublishActiveEvent(ctx context.Context, notice models.ActiveEventNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal active event notice: %w", err)
	}

	if err := c.saveSnapshot(ctx, body, notice.FrameID); err != nil {
		c.logger.Warn("Failed to store active event snapshot", zap.String("frame_id", notice.FrameID), zap.Error(err))
	}

	channel := noticeChannelBase + notice.FrameID

	if err := c.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}

	c.logger.Debug("Published active event notice",
		zap.String("channel", channel),
		zap.String("unique_id", notice.UniqueID),
		zap.Bool("active", notice.Active))

	return nil
}

// RequestRefresh appends a refresh request to the stream
func (c *Client) RequestRefresh(ctx context.Context, request models.RefreshRequest) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: refreshStreamKey,
		Values: map[string]interface{}{"payload": string(body)},
	}).Err()
}

// initializeConsumerGroup creates the consumer group for the refresh requests stream
func (c *Client) initializeConsumerGroup(ctx context.Context) error {
	// "$" only delivers requests added after the group is created
	err := c.client.XGroupCreateMkStream(ctx, refreshStreamKey, c.config.ConsumerGroup, "$").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Consumer group initialized",
		zap.String("stream", refreshStreamKey),
		zap.String("group", c.config.ConsumerGroup))

	return nil
}

// ReadFromStream reads refresh requests using the consumer group
func (c *Client) ReadFromStream(ctx context.Context, count int64, block time.Duration) ([]redis.XStream, error) {
	// ">" means only new messages not yet delivered to other consumers
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.config.ConsumerGroup,
		Consumer: c.config.ConsumerName,
		Streams:  []string{refreshStreamKey, ">"},
		Count:    count,
		Block:    block,
		NoAck:    false,
	}).Result()

	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	return streams, nil
}

// AcknowledgeMessage acknowledges a message from the stream
func (c *Client) AcknowledgeMessage(ctx context.Context, messageID string) error {
	err := c.client.XAck(ctx, refreshStreamKey, c.config.ConsumerGroup, messageID).Err()
	if err != nil {
		return fmt.Errorf("failed to acknowledge message %s: %w", messageID, err)
	}

	return nil
}

// IsHealthy checks if Redis connection is healthy
func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}
