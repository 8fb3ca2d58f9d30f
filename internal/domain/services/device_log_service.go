package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"iot-device-service/internal/domain/models"
	"iot-device-service/internal/domain/repository"
)

// DefaultRecentLogs 未指定 limit 时返回的日志条数
const DefaultRecentLogs = 10

// InterfaceDeviceLogService 设备事件日志与用量统计
type InterfaceDeviceLogService interface {
	AppendLog(ctx context.Context, ownerID, deviceID uuid.UUID, input AppendLogInput) (*models.DeviceLog, error)
	RecentLogs(ctx context.Context, ownerID, deviceID uuid.UUID, limit int) ([]models.DeviceLog, error)
	Usage(ctx context.Context, ownerID, deviceID uuid.UUID, rangeExpr string) (*UsageResult, error)
}

// AppendLogInput 追加日志参数
type AppendLogInput struct {
	Event string
	Value json.RawMessage
}

// UsageResult 用量统计结果
type UsageResult struct {
	Range      string  `json:"range"`
	TotalUsage float64 `json:"totalUsage"`
}

// DeviceLogService 提供设备日志相关服务
type DeviceLogService struct {
	devices repository.DeviceRepository
	logs    repository.DeviceLogRepository
	now     func() time.Time
}

// NewDeviceLogService 创建设备日志服务
func NewDeviceLogService(devices repository.DeviceRepository, logs repository.DeviceLogRepository) *DeviceLogService {
	return &DeviceLogService{
		devices: devices,
		logs:    logs,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AppendLog 设备必须属于调用者
func (s *DeviceLogService) AppendLog(ctx context.Context, ownerID, deviceID uuid.UUID, input AppendLogInput) (*models.DeviceLog, error) {
	device, err := s.devices.GetByID(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}

	log := models.NewDeviceLog(device, strings.TrimSpace(input.Event), input.Value)
	log.CreatedAt = s.now()
	if err := s.logs.Create(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// RecentLogs 最新的 limit 条日志，limit<=0 时取默认值
func (s *DeviceLogService) RecentLogs(ctx context.Context, ownerID, deviceID uuid.UUID, limit int) ([]models.DeviceLog, error) {
	if _, err := s.devices.GetByID(ctx, ownerID, deviceID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLogs
	}
	if limit > models.MaxLimit {
		limit = models.MaxLimit
	}
	return s.logs.Recent(ctx, ownerID, deviceID, limit)
}

// Usage 统计窗口内 units_consumed 事件的数值之和
func (s *DeviceLogService) Usage(ctx context.Context, ownerID, deviceID uuid.UUID, rangeExpr string) (*UsageResult, error) {
	if _, err := s.devices.GetByID(ctx, ownerID, deviceID); err != nil {
		return nil, err
	}

	window := ParseUsageRange(rangeExpr)
	now := s.now()
	total, err := s.logs.SumValues(ctx, ownerID, deviceID, models.EventUnitsConsumed, now.Add(-window.Duration), now)
	if err != nil {
		return nil, err
	}
	return &UsageResult{Range: window.Range, TotalUsage: total}, nil
}
