package domain

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequencyHourly(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    HourRange
		wantErr bool
	}{
		{name: "full day", payload: "0-23", want: HourRange{Start: 0, End: 23}},
		{name: "business hours", payload: "8-20", want: HourRange{Start: 8, End: 20}},
		{name: "single hour", payload: "12-12", want: HourRange{Start: 12, End: 12}},
		{name: "spaces tolerated", payload: " 8 - 20 ", want: HourRange{Start: 8, End: 20}},
		{name: "reversed range", payload: "20-8", wantErr: true},
		{name: "out of bounds", payload: "0-24", wantErr: true},
		{name: "garbage", payload: "abc", wantErr: true},
		{name: "empty", payload: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			freq, err := ParseFrequency(FrequencyHourly, tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, freq)
		})
	}
}

func TestParseFrequencyWeekdays(t *testing.T) {
	freq, err := ParseFrequency(FrequencyWeekly, "5,1,3")
	require.NoError(t, err)
	// 解析结果按星期排序
	assert.Equal(t, DaysOfWeek{Days: []time.Weekday{time.Monday, time.Wednesday, time.Friday}}, freq)

	// 空集合表示每天
	freq, err = ParseFrequency(FrequencyDaily, "")
	require.NoError(t, err)
	assert.True(t, freq.(DaysOfWeek).Matches(time.Sunday))
	assert.True(t, freq.(DaysOfWeek).Matches(time.Thursday))

	_, err = ParseFrequency(FrequencyDaily, "7")
	assert.Error(t, err)
}

func hourlySchedule(start, end int) *Schedule {
	return &Schedule{
		Enabled:   true,
		Kind:      FrequencyHourly,
		Frequency: HourRange{Start: start, End: end},
	}
}

func TestDueAtHourly(t *testing.T) {
	tick := 30 * time.Second
	s := hourlySchedule(8, 20)

	// 整点、区间内、水位线在前 => 到期
	now := time.Date(2026, 8, 3, 9, 0, 10, 0, time.UTC)
	assert.True(t, s.DueAt(now, tick))

	// 非整点不触发
	assert.False(t, s.DueAt(time.Date(2026, 8, 3, 9, 30, 0, 0, time.UTC), tick))

	// 区间外不触发
	assert.False(t, s.DueAt(time.Date(2026, 8, 3, 7, 0, 0, 0, time.UTC), tick))
	assert.False(t, s.DueAt(time.Date(2026, 8, 3, 21, 0, 0, 0, time.UTC), tick))

	// 同一小时内派发过一次后不再触发
	s.LastRun = time.Date(2026, 8, 3, 9, 0, 5, 0, time.UTC)
	assert.False(t, s.DueAt(now, tick))

	// 下一个整点恢复到期
	assert.True(t, s.DueAt(time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC), tick))

	// 禁用的计划永不到期
	s.Enabled = false
	assert.False(t, s.DueAt(time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC), tick))
}

func TestDueAtDailyWindow(t *testing.T) {
	tick := 30 * time.Second
	tod := TimeOfDay{Hour: 2, Minute: 30}
	s := &Schedule{
		Enabled:   true,
		Kind:      FrequencyDaily,
		Frequency: DaysOfWeek{},
		TimeOfDay: &tod,
	}

	day := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	scheduled := tod.At(day)

	// 窗口 [scheduled, scheduled+tick) 内到期
	assert.True(t, s.DueAt(scheduled, tick))
	assert.True(t, s.DueAt(scheduled.Add(tick-time.Second), tick))

	// 窗口边界外不触发
	assert.False(t, s.DueAt(scheduled.Add(-time.Second), tick))
	assert.False(t, s.DueAt(scheduled.Add(tick), tick))

	// 水位线挡住同一窗口的第二次派发
	s.LastRun = scheduled.Add(2 * time.Second)
	assert.False(t, s.DueAt(scheduled.Add(10*time.Second), tick))

	// 第二天同一时刻恢复到期
	assert.True(t, s.DueAt(scheduled.Add(24*time.Hour), tick))
}

func TestDueAtWeeklyDaySet(t *testing.T) {
	tick := 30 * time.Second
	tod := TimeOfDay{Hour: 23, Minute: 0}
	s := &Schedule{
		Enabled:   true,
		Kind:      FrequencyWeekly,
		Frequency: DaysOfWeek{Days: []time.Weekday{time.Saturday}},
		TimeOfDay: &tod,
	}

	saturday := time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC)
	require.Equal(t, time.Saturday, saturday.Weekday())
	assert.True(t, s.DueAt(saturday, tick))

	sunday := saturday.Add(24 * time.Hour)
	assert.False(t, s.DueAt(sunday, tick))
}

func TestDueAtDailyWithoutTimeOfDay(t *testing.T) {
	s := &Schedule{
		Enabled:   true,
		Kind:      FrequencyDaily,
		Frequency: DaysOfWeek{},
	}
	// 缺少执行时刻的计划永不到期，而不是 panic
	assert.False(t, s.DueAt(time.Now(), 30*time.Second))
}

// 同一个到期窗口内，不管调度器走过多少拍，至多派发一次
func TestProperty_HourlySingleDispatchPerHour(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("at most one dispatch per hour", prop.ForAll(
		func(start, span, hour int) bool {
			end := start + span
			if end > 23 {
				end = 23
			}
			s := hourlySchedule(start, end)
			tick := 30 * time.Second

			dispatches := 0
			// 模拟一整个小时的调度节拍
			base := time.Date(2026, 8, 3, hour, 0, 0, 0, time.UTC)
			for now := base; now.Before(base.Add(time.Hour)); now = now.Add(tick) {
				if s.DueAt(now, tick) {
					dispatches++
					s.LastRun = now
				}
			}

			if (HourRange{Start: start, End: end}).Contains(hour) {
				return dispatches == 1
			}
			return dispatches == 0
		},
		gen.IntRange(0, 23),
		gen.IntRange(0, 23),
		gen.IntRange(0, 23),
	))

	properties.TestingRun(t)
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("02:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 2, Minute: 30}, tod)
	assert.Equal(t, "02:30", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}
