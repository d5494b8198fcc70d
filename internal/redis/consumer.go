package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/koios/skylight-calendar/pkg/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RefreshHandler performs an on-demand refresh
type RefreshHandler interface {
	HandleRefresh(ctx context.Context, request models.RefreshRequest) error
}

// Consumer reads refresh requests from the Redis stream
type Consumer struct {
	client  *Client
	handler RefreshHandler
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewConsumer creates a new Redis consumer
func NewConsumer(client *Client, handler RefreshHandler, logger *zap.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start consumes refresh requests until Stop is called
func (c *Consumer) Start() error {
	c.logger.Info("Starting Redis consumer for refresh requests")

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Redis consumer stopped")
			return nil
		default:
			if err := c.consumeMessages(); err != nil {
				c.logger.Error("Error consuming messages, will retry",
					zap.Error(err),
					zap.Duration("retry_delay", 5*time.Second))
				select {
				case <-c.ctx.Done():
				case <-time.After(5 * time.Second):
				}
				continue
			}
		}
	}
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	c.logger.Info("Stopping Redis consumer")
	c.cancel()
}

// consumeMessages handles the actual message consumption from Redis Streams
func (c *Consumer) consumeMessages() error {
	for {
		select {
		case <-c.ctx.Done():
			return nil
		default:
			streams, err := c.client.ReadFromStream(c.ctx, 10, 5*time.Second)
			if err != nil {
				if c.ctx.Err() != nil {
					return nil
				}
				if !c.client.IsHealthy(c.ctx) {
					return fmt.Errorf("Redis connection unhealthy, will reconnect")
				}
				c.logger.Error("Error reading from stream", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					c.handleStreamMessage(message)
				}
			}
		}
	}
}

// handleStreamMessage processes a single refresh request
func (c *Consumer) handleStreamMessage(msg redis.XMessage) {
	defer func() {
		// Requests are never retried, so every message is acknowledged
		if err := c.client.AcknowledgeMessage(c.ctx, msg.ID); err != nil {
			c.logger.Error("Failed to acknowledge message",
				zap.Error(err),
				zap.String("message_id", msg.ID))
		}
	}()

	request, err := decodeRefreshRequest(msg)
	if err != nil {
		c.logger.Error("Failed to decode refresh request",
			zap.Error(err),
			zap.String("message_id", msg.ID))
		return
	}

	if err := c.handler.HandleRefresh(c.ctx, request); err != nil {
		c.logger.Error("Failed to handle refresh request",
			zap.Error(err),
			zap.String("message_id", msg.ID),
			zap.String("unique_id", request.UniqueID),
			zap.String("entry_id", request.EntryID))
		return
	}

	c.logger.Debug("Refresh request processed",
		zap.String("message_id", msg.ID),
		zap.String("unique_id", request.UniqueID),
		zap.String("entry_id", request.EntryID))
}

func decodeRefreshRequest(msg redis.XMessage) (models.RefreshRequest, error) {
	var request models.RefreshRequest

	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return request, fmt.Errorf("message has no payload field")
	}
	if err := json.Unmarshal([]byte(payload), &request); err != nil {
		return request, fmt.Errorf("invalid payload: %w", err)
	}
	if request.UniqueID == "" && request.EntryID == "" {
		return request, fmt.Errorf("payload names neither unique_id nor entry_id")
	}
	return request, nil
}
