package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"duochat/internal/auth"
	"duochat/internal/config"
)

const blacklistKeyPrefix = "duochat:revoked:"

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// redisTokenBlacklist 是 auth.TokenBlacklist 接口的 Redis 实现
type redisTokenBlacklist struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisTokenBlacklist 创建一个新的 redisTokenBlacklist 实例。
func NewRedisTokenBlacklist(client *redis.Client) auth.TokenBlacklist {
	return &redisTokenBlacklist{client: client, now: time.Now}
}

// Add 将 jti 加入黑名单，过期时间为 Token 的原始过期时间点。
func (r *redisTokenBlacklist) Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error {
	ttl := originalTokenExpTime.Sub(r.now())
	if ttl <= 0 {
		// Expired tokens are already rejected by signature validation.
		return nil
	}
	if err := r.client.Set(ctx, blacklistKeyPrefix+jti, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist jti %s: %w", jti, err)
	}
	return nil
}

// IsBlacklisted 检查 jti 是否在黑名单中。
func (r *redisTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	err := r.client.Get(ctx, blacklistKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check blacklist for jti %s: %w", jti, err)
	}
	return true, nil
}
