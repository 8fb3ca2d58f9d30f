package controllers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"iot-device-service/internal/app/middleware"
	"iot-device-service/internal/domain/models"
	"iot-device-service/internal/domain/services"
	"iot-device-service/internal/domain/services/container"
	"iot-device-service/internal/error/code"
	"iot-device-service/internal/error/response"
)

// InterfaceDeviceController 定义设备控制器接口
type InterfaceDeviceController interface {
	CreateDevice()
	GetDevices()
	GetDevice()
	UpdateDevice()
	DeleteDevice()
	Heartbeat()
}

// DeviceController 处理设备相关的请求
type DeviceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDeviceController 创建一个新的设备控制器
func NewDeviceController(ctx *gin.Context, container *container.ServiceContainer) *DeviceController {
	return &DeviceController{
		Ctx:       ctx,
		Container: container,
	}
}

// CreateDeviceRequest 创建设备请求
type CreateDeviceRequest struct {
	Name   string `json:"name" binding:"required,notblank,max=100" example:"Living room lamp"`
	Type   string `json:"type" binding:"required,oneof=light meter thermostat camera other" example:"light"`
	Status string `json:"status" binding:"omitempty,oneof=active inactive faulty" example:"inactive"`
}

// UpdateDeviceRequest 更新设备请求，未列出的字段会被忽略
type UpdateDeviceRequest struct {
	Name   *string `json:"name" binding:"omitempty,notblank,max=100"`
	Type   *string `json:"type" binding:"omitempty,oneof=light meter thermostat camera other"`
	Status *string `json:"status" binding:"omitempty,oneof=active inactive faulty"`
}

// ListDevicesQuery 设备列表查询参数
type ListDevicesQuery struct {
	Type   string `form:"type" binding:"omitempty,oneof=light meter thermostat camera other"`
	Status string `form:"status" binding:"omitempty,oneof=active inactive faulty"`
	models.PaginationQuery
}

// HeartbeatData 心跳响应
type HeartbeatData struct {
	Device       *models.Device `json:"device"`
	LastActiveAt time.Time      `json:"last_active_at"`
}

// HandleDeviceFunc 返回一个处理设备请求的Gin处理函数
func HandleDeviceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDeviceController(ctx, container)

		switch method {
		case "createDevice":
			controller.CreateDevice()
		case "getDevices":
			controller.GetDevices()
		case "getDevice":
			controller.GetDevice()
		case "updateDevice":
			controller.UpdateDevice()
		case "deleteDevice":
			controller.DeleteDevice()
		case "heartbeat":
			controller.Heartbeat()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "invalid method", nil)
		}
	}
}

func (c *DeviceController) deviceService() services.InterfaceDeviceService {
	return c.Container.GetService("device").(services.InterfaceDeviceService)
}

// CreateDevice 创建设备
// @Summary      Create device
// @Tags         Devices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body CreateDeviceRequest true "Device"
// @Success      201  {object}  response.Response{data=models.Device}
// @Failure      400  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /devices [post]
func (c *DeviceController) CreateDevice() {
	ownerID, ok := ownerFrom(c.Ctx)
	if !ok {
		return
	}

	var req CreateDeviceRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c.Ctx, err)
		return
	}

	device, err := c.deviceService().CreateDevice(c.Ctx.Request.Context(), ownerID, services.CreateDeviceInput{
		Name:   req.Name,
		Type:   models.DeviceType(req.Type),
		Status: models.DeviceStatus(req.Status),
	})
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Created(c.Ctx, device)
}

// GetDevices 分页列出当前用户的设备
// @Summary      List devices
// @Tags         Devices
// @Security     BearerAuth
// @Produce      json
// @Param        type    query  string  false  "Device type"    Enums(light, meter, thermostat, camera, other)
// @Param        status  query  string  false  "Device status"  Enums(active, inactive, faulty)
// @Param        page    query  int     false  "Page, from 1"
// @Param        limit   query  int     false  "Page size, 1-100"
// @Success      200  {object}  response.Response{data=services.DeviceListResult}
// @Failure      400  {object}  response.Response
// @Router       /devices [get]
func (c *DeviceController) GetDevices() {
	ownerID, ok := ownerFrom(c.Ctx)
	if !ok {
		return
	}

	var query ListDevicesQuery
	if err := c.Ctx.ShouldBindQuery(&query); err != nil {
		response.ValidationError(c.Ctx, err)
		return
	}

	filter := models.DeviceFilter{
		Type:   models.DeviceType(query.Type),
		Status: models.DeviceStatus(query.Status),
	}
	result, err := c.deviceService().ListDevices(c.Ctx.Request.Context(), ownerID, filter, query.PaginationQuery)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, result)
}

// GetDevice 获取设备详情
// @Summary      Get device
// @Tags         Devices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Device ID"
// @Success      200  {object}  response.Response{data=models.Device}
// @Failure      404  {object}  response.Response
// @Router       /devices/{id} [get]
func (c *DeviceController) GetDevice() {
	ownerID, deviceID, ok := deviceRoute(c.Ctx)
	if !ok {
		return
	}

	device, err := c.deviceService().GetDevice(c.Ctx.Request.Context(), ownerID, deviceID)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, device)
}

// UpdateDevice 更新设备
// @Summary      Update device
// @Description  Only name, type and status can be changed; at least one is required
// @Tags         Devices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "Device ID"
// @Param        request  body  UpdateDeviceRequest  true  "Fields to change"
// @Success      200  {object}  response.Response{data=models.Device}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /devices/{id} [patch]
func (c *DeviceController) UpdateDevice() {
	ownerID, deviceID, ok := deviceRoute(c.Ctx)
	if !ok {
		return
	}

	var req UpdateDeviceRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c.Ctx, err)
		return
	}

	update := models.DeviceUpdate{Name: req.Name}
	if req.Type != nil {
		t := models.DeviceType(*req.Type)
		update.Type = &t
	}
	if req.Status != nil {
		s := models.DeviceStatus(*req.Status)
		update.Status = &s
	}

	device, err := c.deviceService().UpdateDevice(c.Ctx.Request.Context(), ownerID, deviceID, update)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, device)
}

// DeleteDevice 删除设备
// @Summary      Delete device
// @Tags         Devices
// @Security     BearerAuth
// @Param        id   path  string  true  "Device ID"
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /devices/{id} [delete]
func (c *DeviceController) DeleteDevice() {
	ownerID, deviceID, ok := deviceRoute(c.Ctx)
	if !ok {
		return
	}

	if err := c.deviceService().DeleteDevice(c.Ctx.Request.Context(), ownerID, deviceID); err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.SuccessWithMessage(c.Ctx, "Device deleted successfully", nil)
}

// Heartbeat 设备心跳
// @Summary      Record heartbeat
// @Description  Marks the device active and stamps last_active_at
// @Tags         Devices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path  string  true  "Device ID"
// @Success      200  {object}  response.Response{data=HeartbeatData}
// @Failure      404  {object}  response.Response
// @Router       /devices/{id}/heartbeat [post]
func (c *DeviceController) Heartbeat() {
	ownerID, deviceID, ok := deviceRoute(c.Ctx)
	if !ok {
		return
	}

	device, err := c.deviceService().Heartbeat(c.Ctx.Request.Context(), ownerID, deviceID)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.SuccessWithMessage(c.Ctx,
		fmt.Sprintf("Heartbeat received at %s", device.LastActiveAt.Format(time.RFC3339Nano)),
		HeartbeatData{Device: device, LastActiveAt: *device.LastActiveAt},
	)
}

// ownerFrom 认证中间件放入的用户ID
func ownerFrom(ctx *gin.Context) (uuid.UUID, bool) {
	ownerID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.Unauthorized(ctx)
		return uuid.Nil, false
	}
	return ownerID, true
}

// deviceRoute 解析路径中的设备ID，非法ID与不存在的设备同样返回404
func deviceRoute(ctx *gin.Context) (ownerID, deviceID uuid.UUID, ok bool) {
	if ownerID, ok = ownerFrom(ctx); !ok {
		return uuid.Nil, uuid.Nil, false
	}
	deviceID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.NotFound(ctx)
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, deviceID, true
}
