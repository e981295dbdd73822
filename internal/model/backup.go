package model

import (
	"time"
)

// BackupRecord 备份记录表
type BackupRecord struct {
	ID             int64     `gorm:"column:id;primaryKey" json:"id"`
	JobID          int64     `gorm:"column:job_id;not null;index:idx_record_job" json:"jobId"`
	ControllerID   int64     `gorm:"column:controller_id;not null" json:"controllerId"`
	VolumeName     string    `gorm:"column:volume_name;not null;index:idx_record_volume,priority:1" json:"volumeName"`
	SnapshotName   string    `gorm:"column:snapshot_name;not null;index:idx_record_volume,priority:2" json:"snapshotName"`
	VMID           int       `gorm:"column:vm_id;not null" json:"vmId"`
	VM             string    `gorm:"column:vm" json:"vm"`
	RetentionCount int       `gorm:"column:retention_count;not null" json:"retentionCount"`
	RetentionUnit  string    `gorm:"column:retention_unit;not null" json:"retentionUnit"`
	Locked         int64     `gorm:"column:locked;default:0" json:"locked"`
	AppAware       int64     `gorm:"column:app_aware;default:0" json:"appAware"`
	UsedVMSnapshot int64     `gorm:"column:used_vm_snapshot;default:0" json:"usedVmSnapshot"`
	Timestamp      time.Time `gorm:"column:timestamp;type:datetime;not null" json:"timestamp"`
}

// TableName 返回表名
func (*BackupRecord) TableName() string {
	return "backup_record"
}
