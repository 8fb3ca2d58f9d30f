package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"iot-device-service/internal/domain/models"
	"iot-device-service/internal/domain/repository"
	"iot-device-service/pkg/logger"
)

// InterfaceDeviceService 设备注册表，所有操作都以调用者为所有者
type InterfaceDeviceService interface {
	CreateDevice(ctx context.Context, ownerID uuid.UUID, input CreateDeviceInput) (*models.Device, error)
	ListDevices(ctx context.Context, ownerID uuid.UUID, filter models.DeviceFilter, page models.PaginationQuery) (*DeviceListResult, error)
	GetDevice(ctx context.Context, ownerID, id uuid.UUID) (*models.Device, error)
	UpdateDevice(ctx context.Context, ownerID, id uuid.UUID, update models.DeviceUpdate) (*models.Device, error)
	DeleteDevice(ctx context.Context, ownerID, id uuid.UUID) error
	Heartbeat(ctx context.Context, ownerID, id uuid.UUID) (*models.Device, error)
}

// CreateDeviceInput 创建设备参数，Status 为空时为 inactive
type CreateDeviceInput struct {
	Name   string
	Type   models.DeviceType
	Status models.DeviceStatus
}

// DeviceListResult 分页后的设备列表
type DeviceListResult struct {
	Results []models.Device `json:"results"`
	models.PaginationResult
}

// DeviceService 提供设备相关服务
type DeviceService struct {
	devices repository.DeviceRepository
	now     func() time.Time
}

// NewDeviceService 创建设备服务
func NewDeviceService(devices repository.DeviceRepository) *DeviceService {
	return &DeviceService{
		devices: devices,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateDevice 为调用者创建设备
func (s *DeviceService) CreateDevice(ctx context.Context, ownerID uuid.UUID, input CreateDeviceInput) (*models.Device, error) {
	status := input.Status
	if status == "" {
		status = models.DeviceStatusInactive
	}

	device := &models.Device{
		OwnerID:          ownerID,
		Name:             strings.TrimSpace(input.Name),
		Type:             input.Type,
		Status:           status,
		LastStatusChange: s.now(),
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, err
	}

	logger.L().Info("device created",
		zap.String("device_id", device.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("type", string(device.Type)),
	)
	return device, nil
}

// ListDevices 分页列出调用者的设备
func (s *DeviceService) ListDevices(ctx context.Context, ownerID uuid.UUID, filter models.DeviceFilter, page models.PaginationQuery) (*DeviceListResult, error) {
	page = page.Normalize()
	devices, total, err := s.devices.List(ctx, ownerID, filter, page)
	if err != nil {
		return nil, err
	}
	return &DeviceListResult{
		Results:          devices,
		PaginationResult: models.NewPaginationResult(total, page),
	}, nil
}

// GetDevice 获取调用者的单个设备
func (s *DeviceService) GetDevice(ctx context.Context, ownerID, id uuid.UUID) (*models.Device, error) {
	return s.devices.GetByID(ctx, ownerID, id)
}

// UpdateDevice 按白名单合并字段
func (s *DeviceService) UpdateDevice(ctx context.Context, ownerID, id uuid.UUID, update models.DeviceUpdate) (*models.Device, error) {
	if update.IsEmpty() {
		return nil, models.ErrNoUpdateFields
	}

	device, err := s.devices.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := update.Apply(device, s.now()); err != nil {
		return nil, err
	}
	if err := s.devices.Update(ctx, ownerID, device); err != nil {
		return nil, err
	}
	return device, nil
}

// DeleteDevice 删除设备，已有日志保留
func (s *DeviceService) DeleteDevice(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.devices.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	logger.L().Info("device deleted", zap.String("device_id", id.String()), zap.String("owner_id", ownerID.String()))
	return nil
}

// Heartbeat 记录设备活动时间并置为 active
func (s *DeviceService) Heartbeat(ctx context.Context, ownerID, id uuid.UUID) (*models.Device, error) {
	device, err := s.devices.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	device.LastActiveAt = &now
	device.SetStatus(models.DeviceStatusActive, now)
	device.UpdatedAt = now

	if err := s.devices.Update(ctx, ownerID, device); err != nil {
		return nil, err
	}
	return device, nil
}
