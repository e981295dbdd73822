package model

import (
	"time"
)

// Job 作业表
type Job struct {
	ID          int64      `gorm:"column:id;primaryKey" json:"id"`
	Type        string     `gorm:"column:type;not null" json:"type"`
	Entity      string     `gorm:"column:entity" json:"entity"`
	Status      string     `gorm:"column:status;not null;index:idx_job_status" json:"status"`
	Error       string     `gorm:"column:error" json:"error"`
	StartedAt   time.Time  `gorm:"column:started_at;type:datetime" json:"startedAt"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:datetime;default:NULL" json:"completedAt"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName 返回表名
func (*Job) TableName() string {
	return "job"
}

// JobVMResult 单虚拟机作业结果表
type JobVMResult struct {
	ID                int64      `gorm:"column:id;primaryKey" json:"id"`
	JobID             int64      `gorm:"column:job_id;not null;index:idx_result_job" json:"jobId"`
	VMID              int        `gorm:"column:vm_id;not null" json:"vmId"`
	VM                string     `gorm:"column:vm" json:"vm"`
	SnapshotRequested int64      `gorm:"column:snapshot_requested;default:0" json:"snapshotRequested"`
	SnapshotAchieved  int64      `gorm:"column:snapshot_achieved;default:0" json:"snapshotAchieved"`
	FreezeAttempted   int64      `gorm:"column:freeze_attempted;default:0" json:"freezeAttempted"`
	FreezeSucceeded   int64      `gorm:"column:freeze_succeeded;default:0" json:"freezeSucceeded"`
	Error             string     `gorm:"column:error" json:"error"`
	StartedAt         time.Time  `gorm:"column:started_at;type:datetime" json:"startedAt"`
	CompletedAt       *time.Time `gorm:"column:completed_at;type:datetime;default:NULL" json:"completedAt"`
}

// TableName 返回表名
func (*JobVMResult) TableName() string {
	return "job_vm_result"
}

// JobVMLog 虚拟机作业日志表
type JobVMLog struct {
	ID       int64     `gorm:"column:id;primaryKey" json:"id"`
	ResultID int64     `gorm:"column:result_id;not null;index:idx_log_result" json:"resultId"`
	Level    string    `gorm:"column:level;not null" json:"level"`
	Message  string    `gorm:"column:message" json:"message"`
	LoggedAt time.Time `gorm:"column:logged_at;type:datetime" json:"loggedAt"`
}

// TableName 返回表名
func (*JobVMLog) TableName() string {
	return "job_vm_log"
}
