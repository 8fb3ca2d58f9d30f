package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "iot-device-service/docs"
	"iot-device-service/internal/app/controllers"
	"iot-device-service/internal/app/middleware"
	"iot-device-service/internal/domain/services"
	"iot-device-service/internal/domain/services/container"
	"iot-device-service/internal/error/code"
	"iot-device-service/internal/error/response"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(container *container.ServiceContainer) *gin.Engine {
	cfg := container.Config()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), middleware.SecureHeaders(cfg.IsProduction()))

	// 添加 CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "RateLimit-Limit, RateLimit-Remaining, RateLimit-Reset, Retry-After, X-Request-ID")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", controllers.HandleHealthFunc(container, "ping"))

	r.NoRoute(func(c *gin.Context) {
		response.Fail(c, code.ErrNotFound, nil)
	})

	registerRoutes(r, container)
	return r
}

// registerRoutes 配置所有API路由
func registerRoutes(r *gin.Engine, container *container.ServiceContainer) {
	// API 路由根路径
	v1 := r.Group("/v1")
	v1.GET("/health", controllers.HandleHealthFunc(container, "ping"))

	registerAuthRoutes(v1, container)
	registerDeviceRoutes(v1, container)
}

// registerAuthRoutes 注册认证路由，按IP严格限流
func registerAuthRoutes(v1 *gin.RouterGroup, container *container.ServiceContainer) {
	cfg := container.Config()

	auth := v1.Group("/auth")
	auth.Use(middleware.RateLimiter(middleware.RateLimiterConfig{
		Limiter:   newLimiter(container, "auth", cfg.RateLimit.AuthMax),
		LimitType: "ip",
	}))
	{
		auth.POST("/register", controllers.HandleAuthFunc(container, "register"))
		auth.POST("/login", controllers.HandleAuthFunc(container, "login"))
		auth.POST("/refresh", controllers.HandleAuthFunc(container, "refresh"))
	}
}

// registerDeviceRoutes 注册需要认证的设备路由，限流在认证之前按IP计数
func registerDeviceRoutes(v1 *gin.RouterGroup, container *container.ServiceContainer) {
	cfg := container.Config()
	authService := container.GetService("auth").(services.InterfaceAuthService)

	devices := v1.Group("/devices")
	devices.Use(
		middleware.RateLimiter(middleware.RateLimiterConfig{
			Limiter:   newLimiter(container, "api", cfg.RateLimit.Max),
			LimitType: "ip",
		}),
		middleware.AuthenticateUser(authService),
	)
	{
		devices.POST("", controllers.HandleDeviceFunc(container, "createDevice"))
		devices.GET("", controllers.HandleDeviceFunc(container, "getDevices"))
		devices.GET("/:id", controllers.HandleDeviceFunc(container, "getDevice"))
		devices.PATCH("/:id", controllers.HandleDeviceFunc(container, "updateDevice"))
		devices.DELETE("/:id", controllers.HandleDeviceFunc(container, "deleteDevice"))
		devices.POST("/:id/heartbeat", controllers.HandleDeviceFunc(container, "heartbeat"))
		devices.PATCH("/:id/heartbeat", controllers.HandleDeviceFunc(container, "heartbeat"))

		devices.POST("/:id/logs", controllers.HandleDeviceLogFunc(container, "appendLog"))
		devices.GET("/:id/logs", controllers.HandleDeviceLogFunc(container, "getLogs"))
		devices.GET("/:id/usage", controllers.HandleDeviceLogFunc(container, "getUsage"))
	}
}

// newLimiter 配置了 Redis 时多实例共享计数，否则进程内计数
func newLimiter(container *container.ServiceContainer, prefix string, max int) middleware.Limiter {
	window := container.Config().RateLimit.Window.Duration()
	if redisService, ok := container.GetService("redis").(services.InterfaceRedisService); ok && redisService != nil {
		return middleware.NewRedisLimiter(redisService, prefix, max, window)
	}
	return middleware.NewMemoryLimiter(max, window)
}
