package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/metrics"
)

// RetentionService runs retention expiry, snapshot GC and job pruning
// 过期备份回收与作业清理
type RetentionService interface {
	// Run processes every expired backup group; failures are isolated per
	// group and never abort the sweep.
	Run(ctx context.Context, now time.Time) error
	// PruneJobs removes finished jobs past the job retention window that no
	// longer own any backup record.
	PruneJobs(ctx context.Context, now time.Time) error
}

type retentionService struct {
	cfg     Config
	store   domain.Store
	storage domain.StorageClient
	logger  *zap.Logger
}

// NewRetentionService 创建 RetentionService 实例
func NewRetentionService(cfg Config, store domain.Store, storage domain.StorageClient, logger *zap.Logger) RetentionService {
	return &retentionService{cfg: cfg, store: store, storage: storage, logger: logger}
}

func (s *retentionService) Run(ctx context.Context, now time.Time) error {
	groups, err := s.store.Repos().Backups.ListExpiredGroups(ctx, now)
	if err != nil {
		return err
	}

	for _, group := range groups {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.collectGroup(ctx, group); err != nil {
			s.logger.Warn("expired backup group not collected",
				zap.Int64("jobId", group.JobID),
				zap.String("volume", group.VolumeName),
				zap.String("snapshot", group.SnapshotName),
				zap.Error(err))
		}
	}
	return nil
}

// collectGroup 在单个事务内处理一个过期组：
// 删除主端快照（不存在视为成功）-> 复核删除 -> 副本仍在则降级保留，
// 否则按依赖顺序级联删除。任何一步失败整组回滚，其它组不受影响。
func (s *retentionService) collectGroup(ctx context.Context, group *domain.BackupGroup) error {
	return s.store.Transaction(ctx, func(repos *domain.Repositories) error {
		err := s.storage.DeleteSnapshot(ctx, group.ControllerID, group.VolumeName, group.SnapshotName)
		if err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
			return errors.Wrap(err, "primary snapshot delete")
		}

		// Never cascade on an unconfirmed storage deletion.
		names, err := s.storage.ListSnapshots(ctx, group.ControllerID, group.VolumeName)
		if err != nil {
			return errors.Wrap(err, "primary snapshot re-list")
		}
		for _, name := range names {
			if name == group.SnapshotName {
				return fmt.Errorf("snapshot %s still present on primary after delete", name)
			}
		}

		tracking, err := repos.Snapshots.GetByJobAndName(ctx, group.JobID, group.SnapshotName)
		if err != nil {
			return err
		}

		relation, err := repos.Mirrors.RelationForSourceVolume(ctx, group.ControllerID, group.VolumeName)
		if err != nil {
			return err
		}
		if relation != nil {
			secondary, err := s.storage.ListSnapshots(ctx, relation.DestControllerID, relation.DestVolume)
			if err != nil {
				return errors.Wrap(err, "secondary snapshot list")
			}
			for _, name := range secondary {
				if name != group.SnapshotName {
					continue
				}
				// A usable copy remains: flip the tracking row, keep the
				// catalog entries.
				if tracking == nil {
					tracking = &domain.TrackedSnapshot{
						JobID:               group.JobID,
						SnapshotName:        group.SnapshotName,
						PrimaryControllerID: group.ControllerID,
						PrimaryVolume:       group.VolumeName,
					}
					if tracking, err = repos.Snapshots.Create(ctx, tracking); err != nil {
						return err
					}
				}
				tracking.ExistsOnPrimary = false
				tracking.SecondaryControllerID = relation.DestControllerID
				tracking.SecondaryVolume = relation.DestVolume
				tracking.ExistsOnSecondary = true
				tracking.Replicated = true
				tracking.LastChecked = time.Now().In(s.cfg.Location)
				if err := repos.Snapshots.Update(ctx, tracking); err != nil {
					return err
				}
				metrics.GCDemotedGroups.Inc()
				return nil
			}
		}

		// Confirmed gone on both sides: cascade in dependency order.
		if err := repos.Jobs.DeleteVMLogsByJob(ctx, group.JobID); err != nil {
			return err
		}
		if err := repos.Jobs.DeleteVMResultsByJob(ctx, group.JobID); err != nil {
			return err
		}
		if tracking != nil {
			if err := repos.Snapshots.Delete(ctx, tracking.ID); err != nil {
				return err
			}
			metrics.SnapshotsTracked.Dec()
		}
		if err := repos.Backups.DeleteGroup(ctx, group); err != nil {
			return err
		}
		remaining, err := repos.Backups.CountByJob(ctx, group.JobID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := repos.Jobs.Delete(ctx, group.JobID); err != nil {
				return err
			}
		}
		metrics.GCDeletedGroups.Inc()
		return nil
	})
}

// PruneJobs 清理超龄的已结束作业（日志 -> 结果 -> 作业）
// 仍持有备份记录的作业由过期回收路径负责，这里跳过
func (s *retentionService) PruneJobs(ctx context.Context, now time.Time) error {
	if s.cfg.JobRetention <= 0 {
		return nil
	}
	cutoff := now.Add(-s.cfg.JobRetention)
	jobs, err := s.store.Repos().Jobs.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		count, err := s.store.Repos().Backups.CountByJob(ctx, job.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := s.store.Transaction(ctx, func(repos *domain.Repositories) error {
			if err := repos.Jobs.DeleteVMLogsByJob(ctx, job.ID); err != nil {
				return err
			}
			if err := repos.Jobs.DeleteVMResultsByJob(ctx, job.ID); err != nil {
				return err
			}
			return repos.Jobs.Delete(ctx, job.ID)
		}); err != nil {
			s.logger.Warn("job prune failed",
				zap.Int64("jobId", job.ID), zap.Error(err))
		}
	}
	return nil
}

var _ RetentionService = (*retentionService)(nil)
