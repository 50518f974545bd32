package clients

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"loantrack/internal/domain"
	"loantrack/pkg/cache/redis"
)

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration

	Prefix string
}

type RedisClient struct {
	raw    *redis.Client
	prefix string
}

func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	rdb, err := redis.NewRedisConnection(redis.ConnectionInfo{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.Prefix
	if prefix == "" {
		if envPrefix := os.Getenv("REDIS_PREFIX"); envPrefix != "" {
			prefix = envPrefix
		} else {
			prefix = "loantrack_"
		}
	}

	return &RedisClient{
		raw:    rdb,
		prefix: prefix,
	}, nil
}

func (c *RedisClient) Close() {
	if c.raw == nil {
		return
	}
	redis.Close(c.raw)
}

func (c *RedisClient) withPrefix(key string) string {
	return c.prefix + key
}

func (c *RedisClient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.raw.Set(ctx, c.withPrefix(key), value, ttl).Err()
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return c.raw.Get(ctx, c.withPrefix(key)).Result()
}

func (c *RedisClient) SAdd(ctx context.Context, key string, members ...any) error {
	return c.raw.SAdd(ctx, c.withPrefix(key), members...).Err()
}

func (c *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.raw.SMembers(ctx, c.withPrefix(key)).Result()
}

const balanceTTL = 5 * time.Minute

func balanceKey(loanID string) string {
	return "balance:" + loanID
}

// GetBalance reads the cached outstanding balance for a loan. A miss,
// a decode failure or any redis error all report a miss; the caller falls
// through to the database.
func (c *RedisClient) GetBalance(ctx context.Context, loanID string) (*domain.LoanBalance, bool) {
	raw, err := c.raw.Get(ctx, c.withPrefix(balanceKey(loanID))).Result()
	if err != nil {
		return nil, false
	}
	var b domain.LoanBalance
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, false
	}
	return &b, true
}

func (c *RedisClient) SetBalance(ctx context.Context, loanID string, b *domain.LoanBalance) {
	raw, err := json.Marshal(b)
	if err != nil {
		return
	}
	c.raw.Set(ctx, c.withPrefix(balanceKey(loanID)), raw, balanceTTL)
}

func (c *RedisClient) InvalidateBalance(ctx context.Context, loanID string) {
	c.raw.Del(ctx, c.withPrefix(balanceKey(loanID)))
}
