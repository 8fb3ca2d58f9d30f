package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"iot-device-service/internal/domain/repository"
	"iot-device-service/pkg/logger"
)

const (
	DefaultSweepSchedule = "0 * * * *"
	DefaultStaleAfter    = 24 * time.Hour

	sweepTimeout = 5 * time.Minute
)

// DeviceSweeper 定时把长时间没有心跳的活跃设备置为 inactive
type DeviceSweeper struct {
	store      repository.StaleDeviceStore
	schedule   string
	staleAfter time.Duration
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// SweeperOption 扫描任务可选参数
type SweeperOption func(*DeviceSweeper)

// WithClock 替换时钟，测试使用
func WithClock(now func() time.Time) SweeperOption {
	return func(s *DeviceSweeper) {
		s.now = now
	}
}

// NewDeviceSweeper 创建扫描任务，schedule 为标准五段 cron 表达式（UTC）
func NewDeviceSweeper(store repository.StaleDeviceStore, schedule string, staleAfter time.Duration, opts ...SweeperOption) *DeviceSweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	s := &DeviceSweeper{
		store:      store,
		schedule:   schedule,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 注册定时任务，重复调用无效
func (s *DeviceSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	cronLogger := cronLogger{sugar: logger.L().Sugar().Named("sweeper")}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)
	if _, err := c.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c

	logger.L().Info("device sweeper started",
		zap.String("schedule", s.schedule),
		zap.Duration("stale_after", s.staleAfter),
	)
	return nil
}

// Stop 停止调度并等待正在执行的扫描结束
func (s *DeviceSweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	logger.L().Info("device sweeper stopped")
}

// RunOnce 执行一次扫描，返回被置为 inactive 的设备数
func (s *DeviceSweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	now := s.now()
	cutoff := now.Add(-s.staleAfter)

	modified, err := s.store.DeactivateStale(ctx, cutoff, now)
	duration := time.Since(start)
	if err != nil {
		logger.L().Error("device sweep failed",
			zap.Time("cutoff", cutoff),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return 0, err
	}

	logger.L().Info("device sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("modified", modified),
		zap.Duration("duration", duration),
	)
	return modified, nil
}

// run 由 cron 调用，错误只记录，任务保持调度
func (s *DeviceSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}

// cronLogger 把 cron 内部日志接到 zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
