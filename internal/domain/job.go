package domain

import (
	"time"
)

// JobType 作业类型
type JobType string

const (
	JobTypeBackup  JobType = "Backup"
	JobTypeRestore JobType = "Restore"
)

// JobStatus 作业状态机
// Pending -> Running -> Completed | CompletedWithErrors | Failed
type JobStatus string

const (
	JobStatusPending             JobStatus = "Pending"
	JobStatusRunning             JobStatus = "Running"
	JobStatusCompleted           JobStatus = "Completed"
	JobStatusCompletedWithErrors JobStatus = "CompletedWithErrors"
	JobStatusFailed              JobStatus = "Failed"
)

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed:
		return true
	}
	return false
}

// Job 一次备份或恢复的执行实例
type Job struct {
	ID     int64
	Type   JobType
	Entity string
	Status JobStatus
	// Error 调度路径上的失败只记录在这里，不抛给调用方
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobVMResult 单台虚拟机在一次作业中的结果
type JobVMResult struct {
	ID    int64
	JobID int64
	VMID  int
	VM    string
	// SnapshotRequested / SnapshotAchieved hypervisor 快照请求与结果
	SnapshotRequested bool
	SnapshotAchieved  bool
	FreezeAttempted   bool
	FreezeSucceeded   bool
	Error             string
	StartedAt         time.Time
	CompletedAt       *time.Time
}

// JobVMLog 虚拟机级别的作业日志
type JobVMLog struct {
	ID       int64
	ResultID int64
	Level    string
	Message  string
	LoggedAt time.Time
}
