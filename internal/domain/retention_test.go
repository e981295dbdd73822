package domain

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestRetentionHoursOf(t *testing.T) {
	assert.Equal(t, 5, RetentionHoursOf(5, RetentionHours))
	assert.Equal(t, 48, RetentionHoursOf(2, RetentionDays))
	assert.Equal(t, 336, RetentionHoursOf(2, RetentionWeeks))
	// 未知单位按小时折算，避免坏数据拉长保留期
	assert.Equal(t, 7, RetentionHoursOf(7, RetentionUnit("Months")))
}

func TestRetentionExpired(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, RetentionExpired(ts, 1, RetentionDays, ts.Add(23*time.Hour)))
	assert.False(t, RetentionExpired(ts, 1, RetentionDays, ts.Add(24*time.Hour)))
	assert.True(t, RetentionExpired(ts, 1, RetentionDays, ts.Add(24*time.Hour+time.Second)))
}

func TestReplicationLabel(t *testing.T) {
	assert.Equal(t, "hourly", RetentionHours.ReplicationLabel())
	assert.Equal(t, "daily", RetentionDays.ReplicationLabel())
	assert.Equal(t, "weekly", RetentionWeeks.ReplicationLabel())
	assert.Equal(t, "not_found", RetentionUnit("").ReplicationLabel())
}

func TestValidateLock(t *testing.T) {
	tests := []struct {
		name           string
		lockCount      int
		lockUnit       RetentionUnit
		retentionCount int
		retentionUnit  RetentionUnit
		want           bool
	}{
		{name: "lock shorter than retention", lockCount: 3, lockUnit: RetentionDays, retentionCount: 7, retentionUnit: RetentionDays, want: true},
		{name: "lock exceeds retention", lockCount: 10, lockUnit: RetentionDays, retentionCount: 7, retentionUnit: RetentionDays, want: false},
		{name: "lock equals retention", lockCount: 7, lockUnit: RetentionDays, retentionCount: 7, retentionUnit: RetentionDays, want: false},
		{name: "zero lock", lockCount: 0, lockUnit: RetentionDays, retentionCount: 7, retentionUnit: RetentionDays, want: false},
		{name: "lock above 720h ceiling", lockCount: 31, lockUnit: RetentionDays, retentionCount: 10, retentionUnit: RetentionWeeks, want: false},
		{name: "lock at 720h ceiling", lockCount: 30, lockUnit: RetentionDays, retentionCount: 10, retentionUnit: RetentionWeeks, want: true},
		{name: "mixed units", lockCount: 12, lockUnit: RetentionHours, retentionCount: 1, retentionUnit: RetentionDays, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateLock(tt.lockCount, tt.lockUnit, tt.retentionCount, tt.retentionUnit)
			assert.Equal(t, tt.want, got)
		})
	}
}

// 等价时长在不同单位下的过期判定一致
func TestProperty_RetentionUnitEquivalence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("N days behaves like 24N hours", prop.ForAll(
		func(days, elapsedHours int) bool {
			now := ts.Add(time.Duration(elapsedHours) * time.Hour)
			return RetentionExpired(ts, days, RetentionDays, now) ==
				RetentionExpired(ts, days*24, RetentionHours, now)
		},
		gen.IntRange(1, 60),
		gen.IntRange(0, 24*90),
	))

	properties.Property("N weeks behaves like 168N hours", prop.ForAll(
		func(weeks, elapsedHours int) bool {
			now := ts.Add(time.Duration(elapsedHours) * time.Hour)
			return RetentionExpired(ts, weeks, RetentionWeeks, now) ==
				RetentionExpired(ts, weeks*168, RetentionHours, now)
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, 168*12),
	))

	properties.TestingRun(t)
}

func TestParseRetentionUnit(t *testing.T) {
	assert.Equal(t, RetentionDays, ParseRetentionUnit("Days"))
	assert.Equal(t, RetentionDays, ParseRetentionUnit("day"))
	assert.Equal(t, RetentionWeeks, ParseRetentionUnit(" weeks "))
	assert.Equal(t, RetentionHours, ParseRetentionUnit("hours"))
	assert.Equal(t, RetentionHours, ParseRetentionUnit("anything else"))
}

func TestScheduleLockHours(t *testing.T) {
	s := &Schedule{
		LockEnabled:    true,
		LockCount:      3,
		LockUnit:       RetentionDays,
		RetentionCount: 7,
		RetentionUnit:  RetentionDays,
	}
	assert.Equal(t, 72, s.LockHours())

	// 违规配置静默降级为不加锁
	s.LockCount = 10
	assert.Equal(t, 0, s.LockHours())

	s.LockCount = 3
	s.LockEnabled = false
	assert.Equal(t, 0, s.LockHours())
}
