package container

import (
	"context"
	"time"

	"gorm.io/gorm"

	"iot-device-service/internal/domain/repository"
	"iot-device-service/internal/domain/services"
	"iot-device-service/internal/infrastructure/config"
	"iot-device-service/internal/infrastructure/database"
	"iot-device-service/pkg/logger"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	config *config.Config
	pool   *database.ConnectionPool // 内存模式下为 nil
	repos  *repository.Repositories

	// 基础服务
	jwtService   services.InterfaceJWTService
	redisService services.InterfaceRedisService // 未配置 Redis 时为 nil

	// 业务服务
	authService      services.InterfaceAuthService
	deviceService    services.InterfaceDeviceService
	deviceLogService services.InterfaceDeviceLogService

	// MQTT设备上报，未启用时为 nil
	mqttIngestService services.InterfaceMQTTIngestService
}

// NewServiceContainer 创建新的服务容器
func NewServiceContainer(cfg *config.Config, repos *repository.Repositories, pool *database.ConnectionPool, redisService services.InterfaceRedisService) *ServiceContainer {
	if cfg == nil {
		panic("配置为空")
	}
	if repos == nil {
		panic("存储层为空")
	}

	// 测试Redis连接
	if redisService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisService.Ping(ctx); err != nil {
			logger.Warning("Redis连接测试失败: %v，限流将退回进程内计数", err)
			redisService = nil
		}
	}

	c := &ServiceContainer{
		config:       cfg,
		pool:         pool,
		repos:        repos,
		redisService: redisService,
	}
	c.initializeServices()
	return c
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() {
	c.jwtService = services.NewJWTService(c.config)
	c.authService = services.NewAuthService(c.repos.Users, c.jwtService)

	deviceService := services.NewDeviceService(c.repos.Devices)
	deviceLogService := services.NewDeviceLogService(c.repos.Devices, c.repos.Logs)
	c.deviceService = deviceService
	c.deviceLogService = deviceLogService

	if c.config.MQTT.Enabled {
		c.mqttIngestService = services.NewMQTTIngestService(c.config.MQTT, deviceService, deviceLogService)
	}
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	switch name {
	case "config":
		return c.config
	case "jwt":
		return c.jwtService
	case "auth":
		return c.authService
	case "device":
		return c.deviceService
	case "device_log":
		return c.deviceLogService
	case "redis":
		if c.redisService == nil {
			return nil
		}
		return c.redisService
	case "mqtt_ingest":
		if c.mqttIngestService == nil {
			return nil
		}
		return c.mqttIngestService
	default:
		return nil
	}
}

// Config 当前配置
func (c *ServiceContainer) Config() *config.Config {
	return c.config
}

// Repositories 存储层，后台任务直接使用
func (c *ServiceContainer) Repositories() *repository.Repositories {
	return c.repos
}

// Pool 数据库连接池，内存模式下为 nil
func (c *ServiceContainer) Pool() *database.ConnectionPool {
	return c.pool
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	if c.pool == nil {
		return nil
	}
	return c.pool.GetDB()
}
