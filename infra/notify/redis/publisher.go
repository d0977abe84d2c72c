// Package redis publishes lifecycle events through Redis PUBLISH and,
// optionally, appends them to a capped stream so late consumers can replay
// recent history.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/infra/logger"
)

// Config holds the connection and naming settings.
type Config struct {
	Addr          string `json:"addr"`
	Password      string `json:"password"`
	DB            int    `json:"db"`
	ChannelPrefix string `json:"channel_prefix"`
	// Stream, when set, receives every event via XADD.
	Stream       string `json:"stream"`
	StreamMaxLen int64  `json:"stream_max_len"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "rescue"
	}
	if c.Stream != "" && c.StreamMaxLen <= 0 {
		c.StreamMaxLen = 10000
	}
}

// Publisher implements events.Publisher over Redis.
type Publisher struct {
	client *redis.Client
	cfg    Config
	logger logger.Logger
}

// NewPublisher dials Redis and checks the connection.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg Config) *Publisher {
	cfg.SetDefaults()
	return &Publisher{client: client, cfg: cfg, logger: logger.New("redis_notifier")}
}

func (p *Publisher) Name() string { return "redis" }

// Channel returns the Redis channel for an engine topic.
func (p *Publisher) Channel(topic string) string {
	return strings.TrimSuffix(p.cfg.ChannelPrefix, ":") + ":" + topic
}

func (p *Publisher) Publish(ctx context.Context, topic string, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	channel := p.Channel(topic)
	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	p.logger.Debugf("published %s on %s to %d receivers", ev.Kind, channel, receivers)
	if p.cfg.Stream == "" {
		return nil
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.cfg.Stream,
		MaxLen: p.cfg.StreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"topic": topic,
			"data":  string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.cfg.Stream, err)
	}
	return nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error { return p.client.Close() }
