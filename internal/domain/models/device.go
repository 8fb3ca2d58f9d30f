package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeviceType 设备类型
type DeviceType string

const (
	DeviceTypeLight      DeviceType = "light"
	DeviceTypeMeter      DeviceType = "meter"
	DeviceTypeThermostat DeviceType = "thermostat"
	DeviceTypeCamera     DeviceType = "camera"
	DeviceTypeOther      DeviceType = "other"
)

// Valid 判断是否为受支持的设备类型
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeLight, DeviceTypeMeter, DeviceTypeThermostat, DeviceTypeCamera, DeviceTypeOther:
		return true
	}
	return false
}

// DeviceStatus 设备状态
type DeviceStatus string

const (
	DeviceStatusActive   DeviceStatus = "active"
	DeviceStatusInactive DeviceStatus = "inactive"
	DeviceStatusFaulty   DeviceStatus = "faulty"
)

// Valid 判断是否为受支持的设备状态
func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceStatusActive, DeviceStatusInactive, DeviceStatusFaulty:
		return true
	}
	return false
}

// Device 用户名下的一台物联网设备
type Device struct {
	BaseModel
	OwnerID          uuid.UUID    `gorm:"type:char(36);not null;index" json:"owner_id"`
	Name             string       `gorm:"type:varchar(100);not null" json:"name"`
	Type             DeviceType   `gorm:"type:varchar(20);not null" json:"type"`
	Status           DeviceStatus `gorm:"type:varchar(20);not null;default:'inactive';index:idx_devices_status_last_active,priority:1" json:"status"`
	LastActiveAt     *time.Time   `gorm:"index:idx_devices_status_last_active,priority:2" json:"last_active_at"`
	LastStatusChange time.Time    `json:"last_status_change"`
}

// SetStatus 修改状态，状态实际变化时记录变化时间
func (d *Device) SetStatus(status DeviceStatus, now time.Time) {
	if d.Status == status {
		return
	}
	d.Status = status
	d.LastStatusChange = now
}

// DeviceFilter 设备列表过滤条件，空值表示不过滤
type DeviceFilter struct {
	Type   DeviceType
	Status DeviceStatus
}

// DeviceUpdate 允许客户端修改的字段白名单
type DeviceUpdate struct {
	Name   *string
	Type   *DeviceType
	Status *DeviceStatus
}

// IsEmpty 没有任何可更新字段
func (u DeviceUpdate) IsEmpty() bool {
	return u.Name == nil && u.Type == nil && u.Status == nil
}

// Apply 把白名单字段合并到设备上; owner、id、时间戳等字段不可被客户端修改
func (u DeviceUpdate) Apply(d *Device, now time.Time) error {
	if u.IsEmpty() {
		return ErrNoUpdateFields
	}
	if u.Name != nil {
		d.Name = strings.TrimSpace(*u.Name)
	}
	if u.Type != nil {
		d.Type = *u.Type
	}
	if u.Status != nil {
		d.SetStatus(*u.Status, now)
	}
	d.UpdatedAt = now
	return nil
}
