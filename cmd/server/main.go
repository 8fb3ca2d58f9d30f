// @title           IoT Device Service API
// @version         1.0
// @description     Device registry, heartbeat, event log and usage API.

// @BasePath  /v1

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Enter the token with the `Bearer ` prefix
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"iot-device-service/internal/app/jobs"
	"iot-device-service/internal/app/routes"
	"iot-device-service/internal/domain/repository"
	"iot-device-service/internal/domain/services"
	"iot-device-service/internal/domain/services/container"
	"iot-device-service/internal/infrastructure/config"
	"iot-device-service/internal/infrastructure/database"
	Logger "iot-device-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载.env文件，环境变量也可能通过其他方式设置
	envErr := godotenv.Load()

	// 获取配置
	cfg := config.GetConfig()

	// 初始化日志配置
	if err := Logger.SetupLogger(Logger.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir, Dev: cfg.Log.Dev}); err != nil {
		fmt.Printf("初始化日志配置失败: %v\n", err)
		os.Exit(1)
	}
	defer Logger.Sync()

	if envErr != nil {
		Logger.Warning("无法加载.env文件: %v", envErr)
	}

	// 存储层
	var (
		pool  *database.ConnectionPool
		repos *repository.Repositories
	)
	if cfg.Database.Driver == config.DriverMemory {
		Logger.Warning("使用进程内存储，重启后数据丢失")
		repos = repository.NewMemoryRepositories()
	} else {
		var err error
		pool, err = database.NewConnectionPool(cfg)
		if err != nil {
			Logger.Error("无法创建数据库连接池: %v", err)
			os.Exit(1)
		}
		if err := database.AutoMigrate(pool.GetDB()); err != nil {
			Logger.Error("自动迁移失败: %v", err)
			os.Exit(1)
		}
		repos = repository.NewGormRepositories(pool.GetDB())
	}

	// Redis 只用于限流计数，可选
	var redisService services.InterfaceRedisService
	if cfg.Redis.Addr != "" {
		redisService = services.NewRedisService(cfg)
	}

	serviceContainer := container.NewServiceContainer(cfg, repos, pool, redisService)

	// MQTT 设备上报
	if ingest, ok := serviceContainer.GetService("mqtt_ingest").(services.InterfaceMQTTIngestService); ok && ingest != nil {
		if err := ingest.Connect(); err != nil {
			Logger.Error("MQTT连接失败: %v，设备上报通道不可用", err)
		}
		defer ingest.Disconnect()
	}

	// 失活设备扫描
	sweeper := jobs.NewDeviceSweeper(repos.Stale, cfg.Sweep.Schedule, cfg.Sweep.StaleAfter.Duration())
	if err := sweeper.Start(); err != nil {
		Logger.Error("启动设备扫描任务失败: %v", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           routes.SetupRouter(serviceContainer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printSystemInfo(pool)

	go func() {
		Logger.Info("服务器启动在: http://0.0.0.0:%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Error("启动服务器失败: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	Logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Logger.Error("服务器关闭超时: %v", err)
	}

	sweeper.Stop()

	if redisService != nil {
		_ = redisService.Close()
	}
	if pool != nil {
		if err := pool.Close(); err != nil {
			Logger.Error("关闭数据库连接失败: %v", err)
		}
	}
	Logger.Info("服务器已退出")
}

// printSystemInfo 打印系统信息
func printSystemInfo(pool *database.ConnectionPool) {
	if pool != nil {
		if stats, err := pool.Stats(); err == nil {
			Logger.Info("数据库连接池状态: %+v", stats)
		}
	}

	Logger.Info("系统CPU核心数: %d", runtime.NumCPU())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	Logger.Info("系统内存使用: Alloc=%v MiB, Sys=%v MiB", m.Alloc/1024/1024, m.Sys/1024/1024)
}
