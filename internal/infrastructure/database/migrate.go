package database

import (
	"fmt"

	"gorm.io/gorm"

	"iot-device-service/internal/domain/models"
	"iot-device-service/pkg/logger"
)

// AutoMigrate 启动时建表与索引
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Device{},
		&models.DeviceLog{},
	); err != nil {
		return fmt.Errorf("自动建表失败: %w", err)
	}
	logger.Info("数据表已就绪")
	return nil
}
