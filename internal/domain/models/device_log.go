package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventUnitsConsumed 用量统计只累加该事件的数值
const EventUnitsConsumed = "units_consumed"

// DeviceLog 设备事件日志，只追加不修改
type DeviceLog struct {
	ID           uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	DeviceID     uuid.UUID      `gorm:"type:char(36);not null;index:idx_device_logs_lookup,priority:1" json:"device_id"`
	OwnerID      uuid.UUID      `gorm:"type:char(36);not null;index:idx_device_logs_lookup,priority:2" json:"owner_id"`
	Event        string         `gorm:"type:varchar(100);not null;index:idx_device_logs_lookup,priority:3" json:"event"`
	Value        datatypes.JSON `gorm:"not null" json:"value"`
	NumericValue *float64       `json:"-"` // value 为JSON数字时的数值，供 SUM 使用
	CreatedAt    time.Time      `gorm:"index:idx_device_logs_lookup,priority:4" json:"created_at"`
}

// BeforeCreate 插入前生成UUID主键
func (l *DeviceLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// NewDeviceLog 构造日志条目，value 为数字时同时填充 NumericValue
func NewDeviceLog(device *Device, event string, value json.RawMessage) *DeviceLog {
	log := &DeviceLog{
		DeviceID: device.ID,
		OwnerID:  device.OwnerID,
		Event:    event,
		Value:    datatypes.JSON(bytes.TrimSpace(value)),
	}

	var decoded interface{}
	if err := json.Unmarshal(value, &decoded); err == nil {
		if n, ok := decoded.(float64); ok {
			log.NumericValue = &n
		}
	}
	return log
}
