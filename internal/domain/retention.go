package domain

import (
	"strings"
	"time"
)

// RetentionUnit 保留时长单位
type RetentionUnit string

const (
	RetentionHours RetentionUnit = "Hours"
	RetentionDays  RetentionUnit = "Days"
	RetentionWeeks RetentionUnit = "Weeks"
)

// MaxLockHours 快照锁定的绝对上限，30 天折算为小时
const MaxLockHours = 720

// HoursPerUnit returns the hour multiplier for the unit. Unknown units count
// as hours so a bad row never extends retention.
func (u RetentionUnit) HoursPerUnit() int {
	switch u {
	case RetentionDays:
		return 24
	case RetentionWeeks:
		return 168
	default:
		return 1
	}
}

// RetentionHoursOf converts (count, unit) to a total number of hours.
func RetentionHoursOf(count int, unit RetentionUnit) int {
	return count * unit.HoursPerUnit()
}

// RetentionExpired reports whether a record created at ts with the given
// retention has expired at now.
func RetentionExpired(ts time.Time, count int, unit RetentionUnit, now time.Time) bool {
	return ts.Add(time.Duration(RetentionHoursOf(count, unit)) * time.Hour).Before(now)
}

// ReplicationLabel derives the SnapMirror rule label from the retention unit,
// "not_found" when the unit is unknown.
func (u RetentionUnit) ReplicationLabel() string {
	switch u {
	case RetentionHours:
		return "hourly"
	case RetentionDays:
		return "daily"
	case RetentionWeeks:
		return "weekly"
	default:
		return "not_found"
	}
}

// ParseRetentionUnit normalizes a stored unit string, defaulting to Hours.
func ParseRetentionUnit(s string) RetentionUnit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "days", "day":
		return RetentionDays
	case "weeks", "week":
		return RetentionWeeks
	default:
		return RetentionHours
	}
}

// ValidateLock decides whether snapshot locking may be applied for a run.
// Locking is used only when 0 < lockHours < totalRetentionHours and the lock
// stays under the absolute ceiling; any violation disables locking for the
// run instead of failing it.
func ValidateLock(lockCount int, lockUnit RetentionUnit, retentionCount int, retentionUnit RetentionUnit) bool {
	lockHours := RetentionHoursOf(lockCount, lockUnit)
	totalHours := RetentionHoursOf(retentionCount, retentionUnit)
	return lockHours > 0 && lockHours < totalHours && lockHours <= MaxLockHours
}
