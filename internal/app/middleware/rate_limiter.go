package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"iot-device-service/internal/domain/services"
	"iot-device-service/internal/error/code"
	"iot-device-service/internal/error/response"
	"iot-device-service/pkg/logger"
)

// Limiter 固定窗口限流器
type Limiter interface {
	// Allow 计数一次，返回是否放行、剩余次数与窗口重置前的时间
	Allow(ctx context.Context, key string) (allowed bool, remaining int, resetIn time.Duration, err error)
	Max() int
}

type window struct {
	count int
	reset time.Time
}

// MemoryLimiter 进程内固定窗口计数，多实例部署时各自计数
type MemoryLimiter struct {
	max       int
	period    time.Duration
	now       func() time.Time
	mu        sync.Mutex
	windows   map[string]*window
	lastPrune time.Time
}

// NewMemoryLimiter 创建进程内限流器
func NewMemoryLimiter(max int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Max() int { return l.max }

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(l.period)}
		l.windows[key] = w
	}
	w.count++

	remaining := l.max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= l.max, remaining, w.reset.Sub(now), nil
}

// prune 每个窗口周期清理一次过期计数
func (l *MemoryLimiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < l.period {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.reset) {
			delete(l.windows, k)
		}
	}
	l.lastPrune = now
}

// RedisLimiter 基于 Redis 的固定窗口计数，多实例共享
type RedisLimiter struct {
	redis  services.InterfaceRedisService
	prefix string
	max    int
	period time.Duration
}

// NewRedisLimiter 创建 Redis 限流器，prefix 区分不同的限流规则
func NewRedisLimiter(redis services.InterfaceRedisService, prefix string, max int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{redis: redis, prefix: prefix, max: max, period: period}
}

func (l *RedisLimiter) Max() int { return l.max }

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, time.Duration, error) {
	count, ttl, err := l.redis.IncrWindow(ctx, "ratelimit:"+l.prefix+":"+key, l.period)
	if err != nil {
		return false, 0, 0, err
	}
	remaining := l.max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return int(count) <= l.max, remaining, ttl, nil
}

// RateLimiterConfig 限流器配置
type RateLimiterConfig struct {
	Limiter   Limiter
	LimitType string                    // 计数键前缀，默认按客户端IP计数
	KeyFunc   func(*gin.Context) string // 自定义键生成函数，优先于 LimitType
	Message   string
}

// RateLimiter 创建限流中间件，计数存储出错时放行
func RateLimiter(cfg RateLimiterConfig) gin.HandlerFunc {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		prefix := cfg.LimitType
		if prefix == "" {
			prefix = "ip"
		}
		keyFunc = func(c *gin.Context) string { return prefix + ":" + c.ClientIP() }
	}
	message := cfg.Message
	if message == "" {
		message = code.GetMessage(code.ErrTooManyRequests)
	}

	return func(c *gin.Context) {
		allowed, remaining, resetIn, err := cfg.Limiter.Allow(c.Request.Context(), keyFunc(c))
		if err != nil {
			logger.L().Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		resetSeconds := strconv.Itoa(int((resetIn + time.Second - 1) / time.Second))
		c.Header("RateLimit-Limit", strconv.Itoa(cfg.Limiter.Max()))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("RateLimit-Reset", resetSeconds)

		if !allowed {
			c.Header("Retry-After", resetSeconds)
			response.FailWithMessage(c, code.ErrTooManyRequests, message, nil)
			return
		}
		c.Next()
	}
}
