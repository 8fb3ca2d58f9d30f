package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"iot-device-service/internal/domain/models"
)

type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository 创建设备存储，同时实现 StaleDeviceStore
func NewDeviceRepository(db *gorm.DB) DeviceStore {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) Create(ctx context.Context, device *models.Device) error {
	if err := r.db.WithContext(ctx).Create(device).Error; err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	return nil
}

func (r *deviceRepository) List(ctx context.Context, ownerID uuid.UUID, filter models.DeviceFilter, page models.PaginationQuery) ([]models.Device, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Device{}).Where("owner_id = ?", ownerID)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count devices: %w", err)
	}

	devices := make([]models.Device, 0, page.Limit)
	if err := query.Order("created_at DESC").Limit(page.Limit).Offset(page.Offset()).Find(&devices).Error; err != nil {
		return nil, 0, fmt.Errorf("list devices: %w", err)
	}
	return devices, total, nil
}

func (r *deviceRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &device, nil
}

func (r *deviceRepository) Update(ctx context.Context, ownerID uuid.UUID, device *models.Device) error {
	result := r.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ? AND owner_id = ?", device.ID, ownerID).
		Updates(map[string]interface{}{
			"name":               device.Name,
			"type":               device.Type,
			"status":             device.Status,
			"last_active_at":     device.LastActiveAt,
			"last_status_change": device.LastStatusChange,
			"updated_at":         device.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("update device: %w", result.Error)
	}
	// 读取与写入之间被删除
	if result.RowsAffected == 0 {
		return models.ErrDeviceNotFound
	}
	return nil
}

func (r *deviceRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Device{})
	if result.Error != nil {
		return fmt.Errorf("delete device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrDeviceNotFound
	}
	return nil
}

func (r *deviceRepository) DeactivateStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Device{}).
		Where("status = ?", models.DeviceStatusActive).
		Where("last_active_at < ? OR last_active_at IS NULL", cutoff).
		Updates(map[string]interface{}{
			"status":             models.DeviceStatusInactive,
			"last_status_change": now,
			"updated_at":         now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("deactivate stale devices: %w", result.Error)
	}
	return result.RowsAffected, nil
}
