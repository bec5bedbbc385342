package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharath018/family-events-backend/config"
)

var redisClient *redis.Client

// InitRedis connects the shared Redis client used for registration locks
// and inbound-message dedup
func InitRedis(cfg *config.Config) error {
	redisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	log.Println("✅ Redis connected")
	return nil
}

// RedisLocker implements the lock/dedup capabilities the pipeline needs
// on top of SETNX with TTL
type RedisLocker struct{}

func NewRedisLocker() *RedisLocker {
	return &RedisLocker{}
}

// Acquire takes a named lock. Returns false when another holder has it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if redisClient == nil {
		return false, fmt.Errorf("redis not initialized")
	}
	return redisClient.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release drops a held lock. Safe to call on an expired lock.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if redisClient == nil {
		return fmt.Errorf("redis not initialized")
	}
	return redisClient.Del(ctx, key).Err()
}

// MarkProcessed records an inbound message SID. Returns false when the SID
// was already seen inside the TTL window (duplicate webhook delivery).
func (l *RedisLocker) MarkProcessed(ctx context.Context, messageSID string, ttl time.Duration) (bool, error) {
	if redisClient == nil {
		return false, fmt.Errorf("redis not initialized")
	}
	return redisClient.SetNX(ctx, "sms:processed:"+messageSID, 1, ttl).Result()
}
