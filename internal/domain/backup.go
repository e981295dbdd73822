package domain

import (
	"time"
)

// BackupRecord 单台虚拟机一次成功备份的持久化结果
// 同一作业中同卷同快照的多条记录按 (JobID, ControllerID, VolumeName,
// SnapshotName) 分组参与过期处理
type BackupRecord struct {
	ID             int64
	JobID          int64
	ControllerID   int64
	VolumeName     string
	SnapshotName   string
	VMID           int
	VM             string
	RetentionCount int
	RetentionUnit  RetentionUnit
	Locked         bool
	AppAware       bool
	UsedVMSnapshot bool
	Timestamp      time.Time
}

// Expired reports whether the record's retention has elapsed at now.
func (r *BackupRecord) Expired(now time.Time) bool {
	return RetentionExpired(r.Timestamp, r.RetentionCount, r.RetentionUnit, now)
}

// BackupGroup 按 (Job, 卷, 快照, 控制器) 聚合的一组备份记录
type BackupGroup struct {
	JobID        int64
	ControllerID int64
	VolumeName   string
	SnapshotName string
	Records      []*BackupRecord
}

// RestorePoint 可供恢复的一个时间点
type RestorePoint struct {
	JobID        int64
	ControllerID int64
	VolumeName   string
	SnapshotName string
	Timestamp    time.Time
	VMs          []string
	// SecondaryOnly 主端快照已被回收，仅副本可用
	SecondaryOnly bool
	Replicated    bool
}

// BackupRequest 一次备份执行的全部输入，由调度器或手动触发组装
type BackupRequest struct {
	ScheduleID   int64
	ScheduleName string
	ClusterID    int64
	ControllerID int64
	VolumeName   string
	// StorageName 集群侧挂载该卷使用的存储名称
	StorageName    string
	AppAware       bool
	UseVMSnapshot  bool
	CaptureMemory  bool
	RetentionCount int
	RetentionUnit  RetentionUnit
	// LockHours 0 表示本次不加锁；容量支持在执行时复核
	LockHours     int
	ExcludedVMIDs []int
	Replicate     bool
	// Manual 手动触发的作业，失败同步返回给调用方
	Manual bool
}

// RestoreRequest 一次恢复执行的输入
type RestoreRequest struct {
	ClusterID    int64
	ControllerID int64
	VolumeName   string
	SnapshotName string
	// TargetHost 克隆卷要挂载到的计算节点
	TargetHost string
}

// RestoreResult 恢复操作的结果
type RestoreResult struct {
	JobID     int64
	CloneName string
	MountPath string
	Host      string
}
