package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GetZeroTime gets 0:00 time of a certain day
// GetZeroTime 获取某一天的0点时间
func GetZeroTime(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// GetTopOfHour gets the start of the hour for the given time
// GetTopOfHour 获取传入时间所在小时的整点时间
func GetTopOfHour(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), 0, 0, 0, d.Location())
}

// ParseDuration parses durations like "30d", "24h", "15m" into time.Duration
// ParseDuration 解析 30d / 24h / 15m 格式的时长
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
