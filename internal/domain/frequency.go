package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/snapvault/vm-backup-service/pkg/util"
)

// FrequencyKind 计划的频率类型
type FrequencyKind string

const (
	FrequencyHourly FrequencyKind = "Hourly"
	FrequencyDaily  FrequencyKind = "Daily"
	FrequencyWeekly FrequencyKind = "Weekly"
)

// Frequency is the schedule frequency payload. It is a closed variant:
// HourRange for hourly schedules, DaysOfWeek for daily/weekly ones.
type Frequency interface {
	// Payload returns the persisted string form.
	Payload() string

	isFrequency()
}

// HourRange 每小时计划的小时区间，[Start, End] 含两端
type HourRange struct {
	Start int
	End   int
}

func (h HourRange) isFrequency() {}

// Payload returns the persisted "start-end" form.
func (h HourRange) Payload() string {
	return fmt.Sprintf("%d-%d", h.Start, h.End)
}

// Contains reports whether hour falls inside the range.
func (h HourRange) Contains(hour int) bool {
	return hour >= h.Start && hour <= h.End
}

// DaysOfWeek 每日/每周计划生效的星期集合，空集合表示每天
type DaysOfWeek struct {
	Days []time.Weekday
}

func (d DaysOfWeek) isFrequency() {}

// Payload returns the persisted comma-set form, e.g. "1,3,5".
func (d DaysOfWeek) Payload() string {
	parts := make([]string, 0, len(d.Days))
	for _, day := range d.Days {
		parts = append(parts, strconv.Itoa(int(day)))
	}
	return strings.Join(parts, ",")
}

// Matches reports whether day is in the set. An empty set matches every day.
func (d DaysOfWeek) Matches(day time.Weekday) bool {
	if len(d.Days) == 0 {
		return true
	}
	for _, w := range d.Days {
		if w == day {
			return true
		}
	}
	return false
}

// ParseFrequency parses the persisted payload string into the variant matching
// kind. Hourly payloads are "start-end" hour ranges, daily/weekly payloads are
// comma separated weekday numbers (0 = Sunday).
func ParseFrequency(kind FrequencyKind, payload string) (Frequency, error) {
	switch kind {
	case FrequencyHourly:
		parts := strings.SplitN(strings.TrimSpace(payload), "-", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("hourly frequency %q: want start-end", payload)
		}
		start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("hourly frequency %q: %w", payload, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("hourly frequency %q: %w", payload, err)
		}
		if start < 0 || end > 23 || start > end {
			return nil, fmt.Errorf("hourly frequency %q: range out of bounds", payload)
		}
		return HourRange{Start: start, End: end}, nil

	case FrequencyDaily, FrequencyWeekly:
		payload = strings.TrimSpace(payload)
		if payload == "" {
			return DaysOfWeek{}, nil
		}
		var days []time.Weekday
		for _, p := range strings.Split(payload, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("weekday set %q: %w", payload, err)
			}
			if n < 0 || n > 6 {
				return nil, fmt.Errorf("weekday set %q: %d out of range", payload, n)
			}
			days = append(days, time.Weekday(n))
		}
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		return DaysOfWeek{Days: days}, nil

	default:
		return nil, fmt.Errorf("unknown frequency kind %q", kind)
	}
}

// TimeOfDay 每日/每周计划的执行时刻
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "15:04".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// At anchors the time of day to the date of d, in d's location.
func (t TimeOfDay) At(d time.Time) time.Time {
	return util.GetZeroTime(d).Add(time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute)
}
