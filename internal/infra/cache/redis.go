package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"slack-digest-bot/internal/domain"
	"slack-digest-bot/internal/infra/metrics"
)

// RedisCache реализует domain.SummaryCache через Redis.
type RedisCache struct {
	client redis.Cmdable
}

var _ domain.SummaryCache = (*RedisCache)(nil)

// NewRedis создаёт кэш.
func NewRedis(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// Connect открывает клиент и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	err := client.Ping(ctx).Err()
	metrics.ObserveNetworkRequest("redis", "ping", addr, start, err)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// GetSummary возвращает пункты по ключу. Отсутствие ключа не ошибка.
func (c *RedisCache) GetSummary(ctx context.Context, key string) ([]string, bool, error) {
	start := time.Now()
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", "summary", start, nil)
		return nil, false, nil
	}
	metrics.ObserveNetworkRequest("redis", "get", "summary", start, err)
	if err != nil {
		return nil, false, err
	}
	var bullets []string
	if err := json.Unmarshal(raw, &bullets); err != nil {
		return nil, false, err
	}
	return bullets, true, nil
}

// SetSummary сохраняет пункты с TTL.
func (c *RedisCache) SetSummary(ctx context.Context, key string, bullets []string, ttl time.Duration) error {
	if bullets == nil {
		bullets = []string{}
	}
	payload, err := json.Marshal(bullets)
	if err != nil {
		return err
	}
	start := time.Now()
	err = c.client.Set(ctx, key, payload, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", "summary", start, err)
	return err
}
