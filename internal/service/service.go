// Package service 实现备份协调核心的业务层
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/pkg/workerpool"
)

// Config 业务层运行参数，由 app 层从配置文件装配
type Config struct {
	// Location 所有到期判定使用的时区
	Location *time.Location
	// Tick 调度器轮询间隔，同时作为 Daily/Weekly 的到期窗口宽度
	Tick time.Duration
	// JobRetention 已结束作业的保留时长，超龄且无备份记录的作业被清理
	JobRetention time.Duration
	// ReplicationSnapshotPrefix 存储侧复制引擎自建快照的名称前缀，
	// 孤儿快照检测将其排除
	ReplicationSnapshotPrefix string
}

// Services 业务服务集合
type Services struct {
	Schedule          ScheduleService
	Backup            BackupRunner
	Restore           RestoreService
	Retention         RetentionService
	SnapshotReconcile SnapshotReconcileService
	PolicyReconcile   PolicyReconcileService
	Orphan            OrphanService
}

// New 装配全部业务服务
func New(
	cfg Config,
	store domain.Store,
	storage domain.StorageClient,
	compute domain.ComputeClient,
	pool *workerpool.Pool,
	logger *zap.Logger,
) *Services {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	if cfg.ReplicationSnapshotPrefix == "" {
		cfg.ReplicationSnapshotPrefix = "snapmirror"
	}

	runner := NewBackupRunner(cfg, store, storage, compute, logger)
	return &Services{
		Schedule:          NewScheduleService(cfg, store, runner, pool, logger),
		Backup:            runner,
		Restore:           NewRestoreService(cfg, store, storage, compute, pool, logger),
		Retention:         NewRetentionService(cfg, store, storage, logger),
		SnapshotReconcile: NewSnapshotReconcileService(store, storage, logger),
		PolicyReconcile:   NewPolicyReconcileService(store, storage, logger),
		Orphan:            NewOrphanService(cfg, store, storage, compute, logger),
	}
}
