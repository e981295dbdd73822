package model

import (
	"time"
)

// TrackedSnapshot 快照跨控制器跟踪表
type TrackedSnapshot struct {
	ID           int64  `gorm:"column:id;primaryKey" json:"id"`
	JobID        int64  `gorm:"column:job_id;not null;index:idx_snapshot_job,priority:1" json:"jobId"`
	SnapshotName string `gorm:"column:snapshot_name;not null;index:idx_snapshot_job,priority:2" json:"snapshotName"`

	PrimaryControllerID int64  `gorm:"column:primary_controller_id;not null" json:"primaryControllerId"`
	PrimaryVolume       string `gorm:"column:primary_volume;not null" json:"primaryVolume"`
	ExistsOnPrimary     int64  `gorm:"column:exists_on_primary;default:0" json:"existsOnPrimary"`

	SecondaryControllerID int64  `gorm:"column:secondary_controller_id;default:0" json:"secondaryControllerId"`
	SecondaryVolume       string `gorm:"column:secondary_volume" json:"secondaryVolume"`
	ExistsOnSecondary     int64  `gorm:"column:exists_on_secondary;default:0" json:"existsOnSecondary"`

	ReplicationLabel string    `gorm:"column:replication_label" json:"replicationLabel"`
	Replicated       int64     `gorm:"column:replicated;default:0" json:"replicated"`
	LastChecked      time.Time `gorm:"column:last_checked;type:datetime" json:"lastChecked"`
}

// TableName 返回表名
func (*TrackedSnapshot) TableName() string {
	return "tracked_snapshot"
}
