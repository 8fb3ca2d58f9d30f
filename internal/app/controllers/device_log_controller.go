package controllers

import (
	"bytes"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"iot-device-service/internal/domain/services"
	"iot-device-service/internal/domain/services/container"
	"iot-device-service/internal/error/code"
	"iot-device-service/internal/error/response"
)

// InterfaceDeviceLogController 定义设备日志控制器接口
type InterfaceDeviceLogController interface {
	AppendLog()
	GetLogs()
	GetUsage()
}

// DeviceLogController 处理设备日志与用量请求
type DeviceLogController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDeviceLogController 创建一个新的设备日志控制器
func NewDeviceLogController(ctx *gin.Context, container *container.ServiceContainer) *DeviceLogController {
	return &DeviceLogController{
		Ctx:       ctx,
		Container: container,
	}
}

// AppendLogRequest 追加日志请求，value 可以是任意 JSON 值
type AppendLogRequest struct {
	Event string          `json:"event" binding:"required,notblank,max=100" example:"units_consumed"`
	Value json.RawMessage `json:"value" swaggertype:"number" example:"2.5"`
}

// RecentLogsQuery 最近日志查询参数
type RecentLogsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// UsageQuery 用量查询参数
type UsageQuery struct {
	Range string `form:"range"`
}

// HandleDeviceLogFunc 返回一个处理设备日志请求的Gin处理函数
func HandleDeviceLogFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDeviceLogController(ctx, container)

		switch method {
		case "appendLog":
			controller.AppendLog()
		case "getLogs":
			controller.GetLogs()
		case "getUsage":
			controller.GetUsage()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "invalid method", nil)
		}
	}
}

func (c *DeviceLogController) logService() services.InterfaceDeviceLogService {
	return c.Container.GetService("device_log").(services.InterfaceDeviceLogService)
}

// AppendLog 追加设备事件
// @Summary      Append device log
// @Tags         Device logs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string            true  "Device ID"
// @Param        request  body  AppendLogRequest  true  "Event"
// @Success      201  {object}  response.Response{data=models.DeviceLog}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /devices/{id}/logs [post]
func (c *DeviceLogController) AppendLog() {
	ownerID, deviceID, ok := deviceRoute(c.Ctx)
	if !ok {
		return
	}

	var req AppendLogRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c.Ctx, err)
		return
	}
	value := bytes.TrimSpace(req.Value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		response.FieldInvalid(c.Ctx, "value", "value is required")
		return
	}

	log, err := c.logService().AppendLog(c.Ctx.Request.Context(), ownerID, deviceID, services.AppendLogInput{
		Event: req.Event,
		Value: value,
	})
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Created(c.Ctx, log)
}

// GetLogs 最近的设备日志，按时间倒序
// @Summary      Recent device logs
// @Tags         Device logs
// @Security     BearerAuth
// @Produce      json
// @Param        id     path   string  true   "Device ID"
// @Param        limit  query  int     false  "1-100, default 10"
// @Success      200  {object}  response.Response{data=[]models.DeviceLog}
// @Failure      404  {object}  response.Response
// @Router       /devices/{id}/logs [get]
func (c *DeviceLogController) GetLogs() {
	ownerID, deviceID, ok := deviceRoute(c.Ctx)
	if !ok {
		return
	}

	var query RecentLogsQuery
	if err := c.Ctx.ShouldBindQuery(&query); err != nil {
		response.ValidationError(c.Ctx, err)
		return
	}

	logs, err := c.logService().RecentLogs(c.Ctx.Request.Context(), ownerID, deviceID, query.Limit)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, logs)
}

// GetUsage 统计时间窗口内的用量
// @Summary      Device usage
// @Description  Sums units_consumed values over the window; range is <N>h, <N>d or <N>w and falls back to 24h
// @Tags         Device logs
// @Security     BearerAuth
// @Produce      json
// @Param        id     path   string  true   "Device ID"
// @Param        range  query  string  false  "Window, e.g. 24h, 7d, 2w"
// @Success      200  {object}  response.Response{data=services.UsageResult}
// @Failure      404  {object}  response.Response
// @Router       /devices/{id}/usage [get]
func (c *DeviceLogController) GetUsage() {
	ownerID, deviceID, ok := deviceRoute(c.Ctx)
	if !ok {
		return
	}

	var query UsageQuery
	if err := c.Ctx.ShouldBindQuery(&query); err != nil {
		response.ValidationError(c.Ctx, err)
		return
	}

	result, err := c.logService().Usage(c.Ctx.Request.Context(), ownerID, deviceID, query.Range)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, result)
}
