package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/slotbot/config"
	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client      *redis.Client
	scheduleTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, scheduleTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:      redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		scheduleTTL: scheduleTTL,
	}
}

func NewRedisCacheWithClient(client *redis.Client, scheduleTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, scheduleTTL: scheduleTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetSchedule returns the cached active bookings of date, or nil on a miss.
func (c *RedisCache) GetSchedule(ctx context.Context, date string) ([]domain.Booking, error) {
	data, err := c.client.Get(ctx, scheduleKey(date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	bookings := []domain.Booking{}
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (c *RedisCache) SetSchedule(ctx context.Context, date string, bookings []domain.Booking) error {
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	payload, err := json.Marshal(bookings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, scheduleKey(date), payload, c.scheduleTTL).Err()
}

func (c *RedisCache) InvalidateSchedule(ctx context.Context, date string) error {
	return c.client.Del(ctx, scheduleKey(date)).Err()
}

// AcquireSlotLock holds a start slot of a date while a booking for it is being committed.
func (c *RedisCache) AcquireSlotLock(ctx context.Context, date string, start domain.TimeOfDay, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, slotLockKey(date, start), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseSlotLock(ctx context.Context, date string, start domain.TimeOfDay) error {
	return c.client.Del(ctx, slotLockKey(date, start)).Err()
}

// LoadSession reads the raw state of a conversation. ok is false when none is stored.
func (c *RedisCache) LoadSession(ctx context.Context, conversationID string) (data []byte, ok bool, err error) {
	data, err = c.client.Get(ctx, sessionKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisCache) SaveSession(ctx context.Context, conversationID string, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, sessionKey(conversationID), data, ttl).Err()
}

func (c *RedisCache) DeleteSession(ctx context.Context, conversationID string) error {
	return c.client.Del(ctx, sessionKey(conversationID)).Err()
}

func scheduleKey(date string) string {
	return "cache:schedule:" + date
}

func slotLockKey(date string, start domain.TimeOfDay) string {
	return fmt.Sprintf("lock:slot:%s:%s", date, start)
}

func sessionKey(conversationID string) string {
	return "session:booking:" + conversationID
}
