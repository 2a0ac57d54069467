package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrCacheMiss = errors.New("cart cache miss")

// Cache holds read copies of carts. It is never consulted by checkout.
//
// Writes are guarded by a per-user generation token that changes on every Invalidate:
// a reader takes the token before loading from the database and stores its copy only
// if the token is still the same, so a load that raced a mutation is never cached.
type Cache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Generation(ctx context.Context, userID string) (string, error)
	SetIfGeneration(ctx context.Context, userID, generation string, cart *domain.Cart) (bool, error)
	Invalidate(ctx context.Context, userID string) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// setIfGeneration writes KEYS[2] only while KEYS[1] still holds ARGV[1]. A missing
// generation key reads as the empty string.
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or ''
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}

	return &cart, nil
}

func (c *RedisCache) Generation(ctx context.Context, userID string) (string, error) {
	gen, err := c.client.Get(ctx, generationKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

// SetIfGeneration stores cart and reports true, or reports false without writing when
// the user's cart was invalidated after generation was read.
func (c *RedisCache) SetIfGeneration(ctx context.Context, userID, generation string, cart *domain.Cart) (bool, error) {
	data, err := json.Marshal(cart)
	if err != nil {
		return false, fmt.Errorf("marshal cart: %w", err)
	}

	stored, err := setIfGeneration.Run(ctx, c.client,
		[]string{generationKey(userID), cacheKey(userID)},
		generation, data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set: %w", err)
	}
	return stored == 1, nil
}

// Invalidate drops the cached cart and rotates the generation token in one transaction.
// A fresh random token is used so an expired generation key can never come back to a
// value an in-flight reader is holding.
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, generationKey(userID), uuid.NewString(), c.ttl)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "cart:" + userID
}

func generationKey(userID string) string {
	return "cart-gen:" + userID
}

// NopCache always misses. Used when no redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.Cart, error)  { return nil, ErrCacheMiss }
func (NopCache) Generation(context.Context, string) (string, error) { return "", nil }
func (NopCache) Invalidate(context.Context, string) error           { return nil }

func (NopCache) SetIfGeneration(context.Context, string, string, *domain.Cart) (bool, error) {
	return false, nil
}
