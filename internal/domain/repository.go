package domain

import (
	"context"
	"time"
)

// ScheduleRepository 备份计划仓储
type ScheduleRepository interface {
	List(ctx context.Context) ([]*Schedule, error)
	ListEnabled(ctx context.Context) ([]*Schedule, error)
	Get(ctx context.Context, id int64) (*Schedule, error)
	Create(ctx context.Context, s *Schedule) (*Schedule, error)
	Update(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id int64) error
	// UpdateLastRun advances the dispatch watermark only.
	UpdateLastRun(ctx context.Context, id int64, lastRun time.Time) error
}

// JobRepository 作业与虚拟机级结果/日志仓储
type JobRepository interface {
	Create(ctx context.Context, j *Job) (*Job, error)
	Update(ctx context.Context, j *Job) error
	Get(ctx context.Context, id int64) (*Job, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]*Job, error)
	Delete(ctx context.Context, id int64) error

	CreateVMResult(ctx context.Context, r *JobVMResult) (*JobVMResult, error)
	UpdateVMResult(ctx context.Context, r *JobVMResult) error
	AddVMLog(ctx context.Context, l *JobVMLog) error
	DeleteVMLogsByJob(ctx context.Context, jobID int64) error
	DeleteVMResultsByJob(ctx context.Context, jobID int64) error
}

// BackupRecordRepository 备份记录仓储
type BackupRecordRepository interface {
	Create(ctx context.Context, r *BackupRecord) (*BackupRecord, error)
	// ListExpiredGroups groups records by (job, controller, volume, snapshot)
	// and returns the groups whose retention elapsed before now.
	ListExpiredGroups(ctx context.Context, now time.Time) ([]*BackupGroup, error)
	ListByVolume(ctx context.Context, controllerID int64, volume string) ([]*BackupRecord, error)
	ListGroupsByVolume(ctx context.Context, controllerID int64, volume string) ([]*BackupGroup, error)
	// FindBySourceSnapshot resolves the owning backup by (source volume,
	// snapshot name); nil when the snapshot is not one of ours.
	FindBySourceSnapshot(ctx context.Context, volume, snapshot string) (*BackupRecord, error)
	DeleteGroup(ctx context.Context, g *BackupGroup) error
	CountByJob(ctx context.Context, jobID int64) (int64, error)
}

// SnapshotRepository 快照跟踪行仓储
type SnapshotRepository interface {
	GetByJobAndName(ctx context.Context, jobID int64, snapshot string) (*TrackedSnapshot, error)
	Create(ctx context.Context, t *TrackedSnapshot) (*TrackedSnapshot, error)
	Update(ctx context.Context, t *TrackedSnapshot) error
	Delete(ctx context.Context, id int64) error
}

// SnapMirrorRepository 复制关系与策略缓存仓储
type SnapMirrorRepository interface {
	ListRelations(ctx context.Context) ([]*SnapMirrorRelation, error)
	// RelationForSourceVolume returns nil when the volume is not replicated.
	RelationForSourceVolume(ctx context.Context, controllerID int64, volume string) (*SnapMirrorRelation, error)
	ReplaceRelations(ctx context.Context, controllerID int64, relations []SnapMirrorRelation) error

	GetPolicy(ctx context.Context, controllerID int64, policyUUID string) (*SnapMirrorPolicy, error)
	// SavePolicy inserts or fully replaces the policy and its retention list.
	SavePolicy(ctx context.Context, p *SnapMirrorPolicy) error
}

// ClusterRepository 集群与控制器仓储
type ClusterRepository interface {
	GetCluster(ctx context.Context, id int64) (*Cluster, error)
	GetController(ctx context.Context, id int64) (*Controller, error)
	ListControllers(ctx context.Context) ([]*Controller, error)
}

// VolumeRepository 卷启用表仓储
// 卷对核心可用当且仅当它为所属控制器显式启用
type VolumeRepository interface {
	IsEnabled(ctx context.Context, controllerID int64, volume string) (bool, error)
	Get(ctx context.Context, controllerID int64, volume string) (*EnabledVolume, error)
	ListEnabled(ctx context.Context, controllerID int64) ([]*EnabledVolume, error)
}

// Repositories 一组绑定到同一数据库句柄（或同一事务）的仓储
type Repositories struct {
	Schedules ScheduleRepository
	Jobs      JobRepository
	Backups   BackupRecordRepository
	Snapshots SnapshotRepository
	Mirrors   SnapMirrorRepository
	Clusters  ClusterRepository
	Volumes   VolumeRepository
}

// Store 持久化入口
type Store interface {
	Repos() *Repositories
	// Transaction runs fn inside one local ACID transaction. The transient
	// "database busy" class is retried a bounded number of times before the
	// error surfaces; fn may run more than once.
	Transaction(ctx context.Context, fn func(*Repositories) error) error
}
