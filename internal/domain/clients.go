package domain

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound 删除不存在的快照时由 StorageClient 返回
// GC 将其视为删除成功（幂等删除）
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotOptions 创建快照时的附加参数
type SnapshotOptions struct {
	// LockHours > 0 时申请 SnapLock 保护期
	LockHours int
	// Label SnapMirror 规则标签
	Label string
}

// VolumeMount 控制器上一个卷的挂载信息
type VolumeMount struct {
	Volume  string
	MountIP string
}

// StorageClient 存储控制器操作
// 实现负责认证与传输细节，所有调用遵循 ctx 取消
type StorageClient interface {
	ListSnapshots(ctx context.Context, controllerID int64, volume string) ([]string, error)
	CreateSnapshot(ctx context.Context, controllerID int64, volume, name string, opts SnapshotOptions) error
	// DeleteSnapshot returns ErrSnapshotNotFound when the snapshot does not
	// exist; callers treat that as success.
	DeleteSnapshot(ctx context.Context, controllerID int64, volume, name string) error

	CloneVolumeFromSnapshot(ctx context.Context, controllerID int64, volume, snapshot, cloneName string) (string, error)
	ListFlexClones(ctx context.Context, controllerID int64) ([]string, error)
	DeleteVolume(ctx context.Context, controllerID int64, volume string) error

	GetVolumeMounts(ctx context.Context, controllerID int64) ([]VolumeMount, error)
	LookupVolumeUUID(ctx context.Context, controllerID int64, volume string) (string, error)
	SetExportPath(ctx context.Context, controllerID int64, volumeUUID, path string) error
	// EnsureExportPolicy copies the export policy of volume from the source
	// controller to the destination when missing.
	EnsureExportPolicy(ctx context.Context, srcControllerID, dstControllerID int64, volume string) error

	ListSnapMirrorRelations(ctx context.Context, controllerID int64) ([]SnapMirrorRelation, error)
	GetSnapMirrorPolicy(ctx context.Context, controllerID int64, policyUUID string) (*SnapMirrorPolicy, error)
	TriggerSnapMirrorUpdate(ctx context.Context, controllerID int64, relationUUID string) error

	VolumeSupportsLocking(ctx context.Context, controllerID int64, volume string) (bool, error)
}

// VM 计算集群中的一台虚拟机
type VM struct {
	ID   int
	Name string
	Host string
}

// ComputeClient 计算集群操作
type ComputeClient interface {
	// ListVMs lists the VMs on host whose disks live on storageName.
	ListVMs(ctx context.Context, host, storageName string) ([]VM, error)
	VMExists(ctx context.Context, host string, vmID int) (bool, error)

	FreezeVM(ctx context.Context, host string, vmID int) error
	ThawVM(ctx context.Context, host string, vmID int) error
	// SnapshotVM takes a hypervisor level snapshot, optionally with memory.
	SnapshotVM(ctx context.Context, host string, vmID int, name string, withMemory bool) error

	MountStorage(ctx context.Context, host, storageName, serverIP, exportPath string) error
	UnmountStorage(ctx context.Context, host, storageName string) error

	HostOnline(ctx context.Context, host string) (bool, error)
}
