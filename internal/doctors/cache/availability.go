package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"medbook/pkg/model"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "medbook:availability:"

// AvailabilityCache holds the rendered availability projection. Entries are
// keyed by calendar day because legacy slots render against today's date.
type AvailabilityCache interface {
	Get(ctx context.Context, day string) ([]model.DoctorAvailability, bool, error)
	Set(ctx context.Context, day string, list []model.DoctorAvailability) error
	Invalidate(ctx context.Context) error
}

type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Redis-backed cache, or a no-op one when client is nil.
func New(client *redis.Client, ttl time.Duration) AvailabilityCache {
	if client == nil {
		return NoopCache{}
	}
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

func dayKey(day string) string {
	return fmt.Sprintf("%s%s", keyPrefix, day)
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, day string) ([]model.DoctorAvailability, bool, error) {
	val, err := c.client.Get(ctx, dayKey(day)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var list []model.DoctorAvailability
	if err := json.Unmarshal([]byte(val), &list); err != nil {
		// corrupt entry, treat as a miss
		return nil, false, nil
	}
	return list, true, nil
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, day string, list []model.DoctorAvailability) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dayKey(day), data, c.ttl).Err()
}

// Invalidate drops every cached day. Keys are walked with SCAN in pages.
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context) error {
	scan := func(ctx context.Context, cursor uint64) ([]string, uint64, error) {
		return c.client.Scan(ctx, cursor, keyPrefix+"*", scanCount).Result()
	}
	del := func(ctx context.Context, keys []string) error {
		return c.client.Del(ctx, keys...).Err()
	}
	return deleteScanned(ctx, scan, del)
}

const scanCount = 100

type scanPage func(ctx context.Context, cursor uint64) ([]string, uint64, error)

// deleteScanned follows a SCAN cursor until it returns to 0, deleting each
// page's keys before fetching the next.
func deleteScanned(ctx context.Context, scan scanPage, del func(context.Context, []string) error) error {
	var cursor uint64
	for {
		keys, next, err := scan(ctx, cursor)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := del(ctx, keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]model.DoctorAvailability, bool, error) {
	return nil, false, nil
}

func (NoopCache) Set(context.Context, string, []model.DoctorAvailability) error { return nil }

func (NoopCache) Invalidate(context.Context) error { return nil }
