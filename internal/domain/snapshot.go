package domain

import (
	"time"
)

// TrackedSnapshot 一个存储快照在主/副控制器上的跨系统状态
// 备份完成时创建；对账器发现仅存在于副端的快照时补建；两端都确认消失后删除
type TrackedSnapshot struct {
	ID           int64
	JobID        int64
	SnapshotName string

	PrimaryControllerID int64
	PrimaryVolume       string
	ExistsOnPrimary     bool

	SecondaryControllerID int64
	SecondaryVolume       string
	ExistsOnSecondary     bool

	// ReplicationLabel SnapMirror 规则标签（hourly/daily/weekly/not_found）
	ReplicationLabel string
	Replicated       bool
	LastChecked      time.Time
}

// OrphanClone 存储上存在但没有任何虚拟机引用的克隆卷
type OrphanClone struct {
	CloneName string
	MountIP   string
	InUse     bool
	// UsedByVMs 引用该克隆的虚拟机（按节点探测的并集）
	UsedByVMs []string
}

// OrphanSnapshot 卷上存在但没有对应备份记录的快照
type OrphanSnapshot struct {
	ControllerID int64
	VolumeName   string
	SnapshotName string
	// RelatedClone 依命名约定关联到的克隆卷，可能为空
	RelatedClone string
	// CloneInUse 关联克隆当前是否被虚拟机引用
	CloneInUse bool
}

// OrphanReport 孤儿检测的输出，只报告，不删除
type OrphanReport struct {
	ClusterID int64
	Clones    []OrphanClone
	Snapshots []OrphanSnapshot
}

// OrphanDeleteState 孤儿清理的结束状态
type OrphanDeleteState string

const (
	OrphanDeleteDone OrphanDeleteState = "Deleted"
	// OrphanDeletePartial 卸载成功但删除失败，需要人工介入
	OrphanDeletePartial OrphanDeleteState = "PartialFailure"
)
