package coupons

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/redis"
)

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CouponKey(code string) string
}

// RedisCache stores coupon records as JSON under pd:coupon:<CODE>.
type RedisCache struct {
	store redisStore
	ttl   time.Duration
}

func NewRedisCache(store redisStore, ttl time.Duration) *RedisCache {
	return &RedisCache{store: store, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, code string) (*models.Coupon, bool, error) {
	raw, err := c.store.Get(ctx, c.store.CouponKey(NormalizeCode(code)))
	if redis.IsMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var coupon models.Coupon
	if err := json.Unmarshal([]byte(raw), &coupon); err != nil {
		return nil, false, err
	}
	return &coupon, true, nil
}

func (c *RedisCache) Set(ctx context.Context, coupon *models.Coupon) error {
	if coupon == nil {
		return nil
	}
	payload, err := json.Marshal(coupon)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.store.CouponKey(coupon.Code), string(payload), c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, code string) error {
	return c.store.Del(ctx, c.store.CouponKey(NormalizeCode(code)))
}

// NoopCache disables caching; every read goes to the database.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*models.Coupon, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, *models.Coupon) error                 { return nil }
func (NoopCache) Invalidate(context.Context, string) error                  { return nil }
