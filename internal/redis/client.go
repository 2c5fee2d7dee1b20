package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/config"
	"github.com/go-redis/redis/v8"
)

const (
	challengePrefix    = "challenge:"
	paymentsSuffix     = ":payments"
	notificationPrefix = "notifications:"

	scanBatch = 500
)

// Keyspace names every key the engine writes. The namespace is prepended
// to each key so several deployments can share one database.
type Keyspace struct {
	namespace string
}

func NewKeyspace(namespace string) Keyspace {
	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return Keyspace{namespace: namespace}
}

// Namespace returns the prefix applied to every key
func (k Keyspace) Namespace() string {
	return k.namespace
}

// Challenge is the JSON document of one challenge
func (k Keyspace) Challenge(id string) string {
	return k.namespace + challengePrefix + id
}

// Payments is the per-challenge hash of participant payment states
func (k Keyspace) Payments(challengeID string) string {
	return k.namespace + challengePrefix + challengeID + paymentsSuffix
}

// Notifications is the capped inbox list of one user
func (k Keyspace) Notifications(userID string) string {
	return k.namespace + notificationPrefix + userID
}

// Client wraps the Redis connection used for challenge storage
type Client struct {
	client *redis.Client
	config *config.RedisConfig
	keys   Keyspace
}

// NewClient connects to Redis and fails when the server does not answer
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.MinIdleConns = cfg.MinIdleConns
	opt.MaxRetries = cfg.MaxRetries
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		client: client,
		config: cfg,
		keys:   NewKeyspace(cfg.KeyPrefix),
	}, nil
}

func (c *Client) GetClient() *redis.Client {
	return c.client
}

// Keys returns the keyspace shared by the challenge, payment and
// notification stores
func (c *Client) Keys() Keyspace {
	return c.keys
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Health pings Redis and checks the namespace is writable
func (c *Client) Health(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return err
	}
	return c.client.Set(ctx, c.keys.namespace+"health", time.Now().Unix(), time.Minute).Err()
}

// StorageStats counts stored challenges, payment ledgers and notification
// inboxes in the namespace
func (c *Client) StorageStats(ctx context.Context) (map[string]interface{}, error) {
	var challenges, ledgers, inboxes int

	err := c.scan(ctx, c.keys.namespace+challengePrefix+"*", func(key string) {
		if strings.HasSuffix(key, paymentsSuffix) {
			ledgers++
		} else {
			challenges++
		}
	})
	if err != nil {
		return nil, err
	}

	err = c.scan(ctx, c.keys.namespace+notificationPrefix+"*", func(string) { inboxes++ })
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"challenges":           challenges,
		"payment_ledgers":      ledgers,
		"notification_inboxes": inboxes,
	}, nil
}

func (c *Client) scan(ctx context.Context, match string, fn func(key string)) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", match, err)
		}
		for _, key := range keys {
			fn(key)
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// GetStats returns connection pool statistics
func (c *Client) GetStats() map[string]interface{} {
	stats := c.client.PoolStats()

	return map[string]interface{}{
		"namespace":   c.keys.namespace,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
		"pool_size":   c.config.PoolSize,
	}
}
