package services

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"iot-device-service/internal/infrastructure/config"
)

// InterfaceRedisService 限流计数使用的 Redis 操作
type InterfaceRedisService interface {
	Ping(ctx context.Context) error
	// IncrWindow 对 key 计数，首次计数时设置窗口过期时间，返回当前计数与剩余时间
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Close() error
}

// RedisService handles Redis operations
type RedisService struct {
	Client *redis.Client
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &RedisService{Client: client}
}

// Ping 检查连接
func (s *RedisService) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// IncrWindow 固定窗口计数
func (s *RedisService) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.Client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	ttl, err := s.Client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	// 过期时间丢失时补上，避免计数永不重置
	if ttl < 0 {
		if err := s.Client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return count, ttl, nil
}

// Close 关闭连接
func (s *RedisService) Close() error {
	return s.Client.Close()
}
