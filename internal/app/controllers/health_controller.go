package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"iot-device-service/internal/domain/services/container"
	"iot-device-service/internal/error/code"
	"iot-device-service/internal/error/response"
)

// HealthCheckController 健康检查控制器
type HealthCheckController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewHealthCheckController 创建健康检查控制器实例
func NewHealthCheckController(ctx *gin.Context, container *container.ServiceContainer) *HealthCheckController {
	return &HealthCheckController{
		Ctx:       ctx,
		Container: container,
	}
}

// HandleHealthFunc 返回健康检查处理函数
func HandleHealthFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewHealthCheckController(ctx, container)

		switch method {
		case "ping":
			controller.Ping()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "invalid method", nil)
		}
	}
}

// Ping 存活检查，数据库不可用时仍返回200，db 字段反映数据库状态
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthCheckController) Ping() {
	db := "disabled"
	if pool := h.Container.Pool(); pool != nil {
		ctx, cancel := context.WithTimeout(h.Ctx.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.HealthCheck(ctx); err != nil {
			db = "down"
		} else {
			db = "up"
		}
	}

	h.Ctx.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"db":        db,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
