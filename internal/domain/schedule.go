// Package domain 定义备份协调核心的领域模型与仓储接口
package domain

import (
	"time"

	"github.com/snapvault/vm-backup-service/pkg/util"
)

// Schedule 一条周期性备份计划
type Schedule struct {
	ID           int64
	Name         string
	ClusterID    int64
	ControllerID int64
	// VolumeName 目标存储卷
	VolumeName string
	Kind       FrequencyKind
	Frequency  Frequency
	// TimeOfDay 每日/每周计划的执行时刻，Hourly 计划为 nil
	TimeOfDay      *TimeOfDay
	RetentionCount int
	RetentionUnit  RetentionUnit
	// AppAware 应用一致性备份（冻结 IO）
	AppAware bool
	// UseVMSnapshot 附带 hypervisor 层虚拟机快照
	UseVMSnapshot bool
	// CaptureMemory 虚拟机快照是否包含内存状态
	CaptureMemory bool
	// ExcludedVMIDs 本计划跳过的虚拟机
	ExcludedVMIDs []int
	// Replicate 完成后触发 SnapMirror 传输
	Replicate bool
	// LockEnabled 申请快照锁定
	LockEnabled bool
	LockCount   int
	LockUnit    RetentionUnit
	// LastRun 最近一次成功派发的水位线，防止同一窗口重复触发
	LastRun time.Time
	Enabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueAt reports whether the schedule should dispatch at now, given the
// scheduler tick interval. The LastRun watermark guarantees at most one
// dispatch per due window.
func (s *Schedule) DueAt(now time.Time, tick time.Duration) bool {
	if !s.Enabled {
		return false
	}

	switch freq := s.Frequency.(type) {
	case HourRange:
		if now.Minute() != 0 {
			return false
		}
		if !freq.Contains(now.Hour()) {
			return false
		}
		return s.LastRun.Before(util.GetTopOfHour(now))

	case DaysOfWeek:
		if s.TimeOfDay == nil {
			return false
		}
		if !freq.Matches(now.Weekday()) {
			return false
		}
		scheduled := s.TimeOfDay.At(now)
		if now.Before(scheduled) || !now.Before(scheduled.Add(tick)) {
			return false
		}
		return s.LastRun.Before(scheduled)

	default:
		return false
	}
}

// LockAllowed applies the locking invariant for a run of this schedule.
func (s *Schedule) LockAllowed() bool {
	if !s.LockEnabled {
		return false
	}
	return ValidateLock(s.LockCount, s.LockUnit, s.RetentionCount, s.RetentionUnit)
}

// LockHours returns the requested lock window in hours, 0 when disallowed.
func (s *Schedule) LockHours() int {
	if !s.LockAllowed() {
		return 0
	}
	return RetentionHoursOf(s.LockCount, s.LockUnit)
}
