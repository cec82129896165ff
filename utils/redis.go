package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharath018/community-events-backend/config"
	"go.uber.org/zap"
)

var (
	RedisClient *redis.Client
	Ctx         = context.Background()
)

// ErrCacheMiss is returned by GetJSON when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// InitRedis connects the shared client. An empty REDIS_ADDR leaves Redis
// disabled; callers check RedisEnabled before use.
func InitRedis(cfg *config.Config) error {
	if cfg.RedisAddr == "" {
		Log.Warn("REDIS_ADDR not set, running without Redis")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(Ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	RedisClient = client
	Log.Info("redis connected", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	return nil
}

func RedisEnabled() bool {
	return RedisClient != nil
}

// ===========================
// 🔑 Short-lived tokens
func SetToken(key, value string, ttl time.Duration) error {
	if !RedisEnabled() {
		return errors.New("redis not configured")
	}
	return RedisClient.Set(Ctx, key, value, ttl).Err()
}

func GetToken(key string) (string, error) {
	if !RedisEnabled() {
		return "", errors.New("redis not configured")
	}
	return RedisClient.Get(Ctx, key).Result()
}

func DeleteToken(key string) error {
	if !RedisEnabled() {
		return nil
	}
	return RedisClient.Del(Ctx, key).Err()
}

// ===========================
// 🗃 JSON cache
func SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	if !RedisEnabled() {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return RedisClient.Set(ctx, key, payload, ttl).Err()
}

func GetJSON(ctx context.Context, key string, v interface{}) error {
	if !RedisEnabled() {
		return ErrCacheMiss
	}
	raw, err := RedisClient.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// DeleteByPrefix removes every key starting with prefix.
func DeleteByPrefix(ctx context.Context, prefix string) error {
	if !RedisEnabled() {
		return nil
	}
	iter := RedisClient.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := RedisClient.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Publish sends payload on a pub/sub channel; a no-op without Redis.
func Publish(ctx context.Context, channel string, payload string) error {
	if !RedisEnabled() {
		return nil
	}
	return RedisClient.Publish(ctx, channel, payload).Err()
}
