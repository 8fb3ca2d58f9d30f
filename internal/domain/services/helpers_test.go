package services

import (
	"time"

	"iot-device-service/internal/domain/repository"
	"iot-device-service/internal/infrastructure/config"
)

func testConfig() *config.Config {
	return &config.Config{
		EnvType: config.EnvTest,
		JWT: config.JWT{
			AccessSecret:  "test-access",
			RefreshSecret: "test-refresh",
			AccessTTL:     config.TTL(15 * time.Minute),
			RefreshTTL:    config.TTL(7 * 24 * time.Hour),
			Issuer:        "iot-device-service",
		},
	}
}

type fixture struct {
	repos   *repository.Repositories
	jwt     *JWTService
	auth    *AuthService
	devices *DeviceService
	logs    *DeviceLogService
}

func newFixture() *fixture {
	repos := repository.NewMemoryRepositories()
	jwtService := NewJWTService(testConfig())
	return &fixture{
		repos:   repos,
		jwt:     jwtService,
		auth:    NewAuthService(repos.Users, jwtService),
		devices: NewDeviceService(repos.Devices),
		logs:    NewDeviceLogService(repos.Devices, repos.Logs),
	}
}
