package model

import (
	"time"
)

// Schedule 备份计划表
type Schedule struct {
	ID           int64  `gorm:"column:id;primaryKey" json:"id"`
	Name         string `gorm:"column:name;not null" json:"name"`
	ClusterID    int64  `gorm:"column:cluster_id;not null" json:"clusterId"`
	ControllerID int64  `gorm:"column:controller_id;not null" json:"controllerId"`
	VolumeName   string `gorm:"column:volume_name;not null;index:idx_schedule_volume" json:"volumeName"`
	// Kind Hourly / Daily / Weekly
	Kind string `gorm:"column:kind;not null" json:"kind"`
	// Frequency Hourly = "8-18"，Daily/Weekly = "1,3,5"
	Frequency string `gorm:"column:frequency" json:"frequency"`
	// TimeOfDay "15:04"，Hourly 为空
	TimeOfDay      string    `gorm:"column:time_of_day" json:"timeOfDay"`
	RetentionCount int       `gorm:"column:retention_count;not null" json:"retentionCount"`
	RetentionUnit  string    `gorm:"column:retention_unit;not null" json:"retentionUnit"`
	AppAware       int64     `gorm:"column:app_aware;default:0" json:"appAware"`
	UseVMSnapshot  int64     `gorm:"column:use_vm_snapshot;default:0" json:"useVmSnapshot"`
	CaptureMemory  int64     `gorm:"column:capture_memory;default:0" json:"captureMemory"`
	ExcludedVMIDs  string    `gorm:"column:excluded_vm_ids" json:"excludedVmIds"`
	Replicate      int64     `gorm:"column:replicate;default:0" json:"replicate"`
	LockEnabled    int64     `gorm:"column:lock_enabled;default:0" json:"lockEnabled"`
	LockCount      int       `gorm:"column:lock_count;default:0" json:"lockCount"`
	LockUnit       string    `gorm:"column:lock_unit" json:"lockUnit"`
	LastRun        time.Time `gorm:"column:last_run;type:datetime" json:"lastRun"`
	// IsEnabled 不能带 default 标签：gorm 插入时会忽略零值字段，停用的计划会被写成启用
	IsEnabled int64     `gorm:"column:is_enabled" json:"isEnabled"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName 返回表名
func (*Schedule) TableName() string {
	return "schedule"
}
