package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

var spanPattern = regexp.MustCompile(`^(\d+)([smhdw])$`)

var spanUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": Day,
	"w": Week,
}

// ParseSpan 解析 "<整数><单位>" 形式的时长，单位为 s/m/h/d/w，例如 "15m"、"7d"、"2w"。
// 与 time.ParseDuration 不同，它支持天和周，但不支持组合写法。
func ParseSpan(s string) (time.Duration, error) {
	return parseSpan(s, spanUnits)
}

// ParseSpanUnits 与 ParseSpan 相同，但只接受 units 中列出的单位
func ParseSpanUnits(s string, units ...string) (time.Duration, error) {
	allowed := make(map[string]time.Duration, len(units))
	for _, u := range units {
		if d, ok := spanUnits[u]; ok {
			allowed[u] = d
		}
	}
	return parseSpan(s, allowed)
}

func parseSpan(s string, units map[string]time.Duration) (time.Duration, error) {
	m := spanPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid span %q", s)
	}
	unit, ok := units[m[2]]
	if !ok {
		return 0, fmt.Errorf("unsupported unit in span %q", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid span %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("span %q must be positive", s)
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("span %q overflows", s)
	}
	return time.Duration(n) * unit, nil
}
