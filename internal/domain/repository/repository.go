// Package repository 持久化层。设备与日志的所有读写都必须带上 ownerID。
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"iot-device-service/internal/domain/models"
)

// UserRepository 用户凭据存储
type UserRepository interface {
	// Create 邮箱冲突时返回 models.ErrDuplicateEmail
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// DeviceRepository 按所有者隔离的设备存储，不属于 ownerID 的设备一律视为不存在
type DeviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	List(ctx context.Context, ownerID uuid.UUID, filter models.DeviceFilter, page models.PaginationQuery) ([]models.Device, int64, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Device, error)
	Update(ctx context.Context, ownerID uuid.UUID, device *models.Device) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// StaleDeviceStore 失活扫描使用的批量更新，跨所有者执行
type StaleDeviceStore interface {
	// DeactivateStale 把 cutoff 之前没有心跳的活跃设备标记为 inactive，返回修改的行数
	DeactivateStale(ctx context.Context, cutoff, now time.Time) (int64, error)
}

// DeviceStore 设备存储的完整能力
type DeviceStore interface {
	DeviceRepository
	StaleDeviceStore
}

// DeviceLogRepository 只追加的设备日志
type DeviceLogRepository interface {
	Create(ctx context.Context, log *models.DeviceLog) error
	// Recent 按创建时间倒序返回最多 limit 条
	Recent(ctx context.Context, ownerID, deviceID uuid.UUID, limit int) ([]models.DeviceLog, error)
	// SumValues 累加 [from, to] 内指定事件的数值，没有匹配时为 0
	SumValues(ctx context.Context, ownerID, deviceID uuid.UUID, event string, from, to time.Time) (float64, error)
}

// Repositories 服务层依赖的全部存储
type Repositories struct {
	Users   UserRepository
	Devices DeviceRepository
	Stale   StaleDeviceStore
	Logs    DeviceLogRepository
}

// NewGormRepositories 基于关系数据库的实现
func NewGormRepositories(db *gorm.DB) *Repositories {
	devices := NewDeviceRepository(db)
	return &Repositories{
		Users:   NewUserRepository(db),
		Devices: devices,
		Stale:   devices,
		Logs:    NewDeviceLogRepository(db),
	}
}

// NewMemoryRepositories 进程内实现，用于本地运行与测试
func NewMemoryRepositories() *Repositories {
	store := NewMemoryStore()
	return &Repositories{
		Users:   store.Users(),
		Devices: store.Devices(),
		Stale:   store.Devices(),
		Logs:    store.Logs(),
	}
}
