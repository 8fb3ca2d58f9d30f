package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"iot-device-service/internal/domain/models"
)

type deviceLogRepository struct {
	db *gorm.DB
}

// NewDeviceLogRepository 创建设备日志存储
func NewDeviceLogRepository(db *gorm.DB) DeviceLogRepository {
	return &deviceLogRepository{db: db}
}

func (r *deviceLogRepository) Create(ctx context.Context, log *models.DeviceLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("create device log: %w", err)
	}
	return nil
}

func (r *deviceLogRepository) Recent(ctx context.Context, ownerID, deviceID uuid.UUID, limit int) ([]models.DeviceLog, error) {
	logs := make([]models.DeviceLog, 0, limit)
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND owner_id = ?", deviceID, ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list device logs: %w", err)
	}
	return logs, nil
}

func (r *deviceLogRepository) SumValues(ctx context.Context, ownerID, deviceID uuid.UUID, event string, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&models.DeviceLog{}).
		Select("COALESCE(SUM(numeric_value), 0)").
		Where("device_id = ? AND owner_id = ? AND event = ?", deviceID, ownerID, event).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum device logs: %w", err)
	}
	return total, nil
}
