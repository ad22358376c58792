// Package redis announces job completion events on a Redis pub/sub channel.
//
// When HistoryKey is set, each event is also pushed onto a capped list in the
// same MULTI block so late subscribers can catch up on recent sessions.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/reel/adapter"
)

const (
	DefaultChannel      = "reel:job_completed"
	DefaultTimeout      = 5 * time.Second
	DefaultRetries      = 3
	DefaultHistoryLimit = 1000
)

// Config configures the Redis adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db].
	URL     string
	Channel string
	// HistoryKey names the list that keeps recent events. Empty disables it.
	HistoryKey   string
	HistoryLimit int64
	Timeout      time.Duration
	Retries      int
}

// Adapter publishes events with PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New parses cfg.URL and applies defaults. No connection is made until the
// first Publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.HistoryLimit < 0 {
		return nil, fmt.Errorf("history limit must be >= 0, got %d", cfg.HistoryLimit)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HistoryKey != "" && cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}

	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends event to the channel, retrying connection failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.JobCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "redis", a.config.Retries, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.send(ctx, payload)
	}, nil)
}

func (a *Adapter) send(ctx context.Context, payload []byte) error {
	if a.config.HistoryKey == "" {
		return a.client.Publish(ctx, a.config.Channel, payload).Err()
	}
	_, err := a.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Publish(ctx, a.config.Channel, payload)
		p.LPush(ctx, a.config.HistoryKey, payload)
		p.LTrim(ctx, a.config.HistoryKey, 0, a.config.HistoryLimit-1)
		return nil
	})
	return err
}

// Close closes the underlying connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
