// Package cache реализует кэш профилей и журнал обработанных событий на Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/subscription-checkout/internal/config"
)

// Cache обёртка над клиентом Redis.
type Cache struct {
	Db *redis.Client
}

// UserSubscriptionKey ключ кэша сводки подписки пользователя.
func UserSubscriptionKey(userUID string) string {
	return "subscription:user:" + userUID
}

// EventKey ключ отметки об обработанном событии провайдера.
func EventKey(eventID string) string {
	return "stripe:event:" + eventID
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get читает значение в result. Возвращает false, если ключа нет.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение в JSON.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func leaseKey(key string) string {
	return key + ":lease"
}

// setLeased записывает значение, только если метка чтения не была снята или перехвачена.
var setLeased = redis.NewScript(`
if redis.call("GET", KEYS[2]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	redis.call("DEL", KEYS[2])
	return 1
end
return 0
`)

// Lease ставит метку чтения перед обращением к базе и возвращает её токен.
// Invalidate снимает метку, и запись через SetLeased с этим токеном не пройдёт.
func (c *Cache) Lease(ctx context.Context, key string, ttl time.Duration) (string, error) {
	const op = "cache.Lease"
	token := uuid.NewString()
	if err := c.Db.Set(ctx, leaseKey(key), token, ttl).Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// SetLeased сохраняет значение в JSON, если метка token всё ещё на месте.
// Возвращает false, если ключ успели инвалидировать.
func (c *Cache) SetLeased(ctx context.Context, key, token string, value any, expiration time.Duration) (bool, error) {
	const op = "cache.SetLeased"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := setLeased.Run(ctx, c.Db, []string{key, leaseKey(key)}, token, jsonData, expiration.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// Invalidate удаляет ключ вместе с меткой чтения.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, key, leaseKey(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkOnce атомарно ставит отметку. Возвращает true, если отметки ещё не было.
func (c *Cache) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	const op = "cache.MarkOnce"
	ok, err := c.Db.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Seen сообщает, стоит ли отметка key.
func (c *Cache) Seen(ctx context.Context, key string) (bool, error) {
	const op = "cache.Seen"
	n, err := c.Db.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// Ping проверяет доступность Redis.
func (c *Cache) Ping(ctx context.Context) error {
	return c.Db.Ping(ctx).Err()
}

// Close закрывает клиент.
func (c *Cache) Close() error {
	return c.Db.Close()
}
