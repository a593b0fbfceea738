package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

// Publisher is the subset of the Redis client used to emit events
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Client publishes JSON events on Redis pub/sub channels
type Client struct {
	rdb    Publisher
	closer func() error
	logger *slog.Logger
}

// NewClient parses url, connects and verifies the connection with PING
func NewClient(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Successfully connected to Redis", slog.String("addr", opts.Addr))
	return &Client{rdb: rdb, closer: rdb.Close, logger: logger}, nil
}

// NewWithPublisher wraps an existing publisher
func NewWithPublisher(p Publisher, logger *slog.Logger) *Client {
	return &Client{rdb: p, logger: logger}
}

// PublishJSON marshals payload and publishes it on channel
func (c *Client) PublishJSON(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	c.logger.Debug("Event published",
		slog.String("channel", channel),
		slog.Int("body_size", len(body)),
	)
	return nil
}

// Close closes the underlying connection when the client owns it
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
