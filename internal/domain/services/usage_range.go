package services

import (
	"time"

	"iot-device-service/pkg/utils"
)

// DefaultUsageRange 解析失败时使用的统计窗口
const DefaultUsageRange = "24h"

// UsageWindow 生效的统计窗口
type UsageWindow struct {
	Range    string
	Duration time.Duration
}

// ParseUsageRange 解析 "<正整数><h|d|w>"，空值、零值或格式错误一律回退到 24h
func ParseUsageRange(expr string) UsageWindow {
	d, err := utils.ParseSpanUnits(expr, "h", "d", "w")
	if err != nil {
		return UsageWindow{Range: DefaultUsageRange, Duration: 24 * time.Hour}
	}
	return UsageWindow{Range: expr, Duration: d}
}
