package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/metrics"
)

// BackupRunner executes one backup invocation end to end
// 执行一次完整的卷备份：冻结 -> 快照 -> 解冻 -> 入账 -> 触发复制
type BackupRunner interface {
	Run(ctx context.Context, req *domain.BackupRequest) (*domain.Job, error)
}

type backupRunner struct {
	cfg     Config
	store   domain.Store
	storage domain.StorageClient
	compute domain.ComputeClient
	logger  *zap.Logger
}

// NewBackupRunner 创建 BackupRunner 实例
func NewBackupRunner(cfg Config, store domain.Store, storage domain.StorageClient, compute domain.ComputeClient, logger *zap.Logger) BackupRunner {
	return &backupRunner{cfg: cfg, store: store, storage: storage, compute: compute, logger: logger}
}

func (r *backupRunner) Run(ctx context.Context, req *domain.BackupRequest) (*domain.Job, error) {
	now := time.Now().In(r.cfg.Location)

	entity := fmt.Sprintf("%s/%s", req.ScheduleName, req.VolumeName)
	if req.Manual {
		entity = "manual " + entity
	}
	job, err := r.store.Repos().Jobs.Create(ctx, &domain.Job{
		Type:      domain.JobTypeBackup,
		Entity:    entity,
		Status:    domain.JobStatusRunning,
		StartedAt: now,
	})
	if err != nil {
		return nil, err
	}

	runErr := r.execute(ctx, job, req, now)

	completed := time.Now().In(r.cfg.Location)
	job.CompletedAt = &completed
	if runErr != nil {
		job.Status = domain.JobStatusFailed
		job.Error = runErr.Error()
	} else if job.Status != domain.JobStatusCompletedWithErrors {
		job.Status = domain.JobStatusCompleted
	}
	if err := r.store.Repos().Jobs.Update(ctx, job); err != nil {
		r.logger.Error("failed to persist job result",
			zap.Int64("jobId", job.ID), zap.Error(err))
	}
	metrics.JobsTotal.WithLabelValues(string(job.Type), string(job.Status)).Inc()

	return job, runErr
}

// execute 核心备份步骤，返回错误即整个作业失败
// 单台虚拟机的冻结/快照失败只降级为 CompletedWithErrors
func (r *backupRunner) execute(ctx context.Context, job *domain.Job, req *domain.BackupRequest, now time.Time) error {
	vms, err := r.collectVMs(ctx, job, req)
	if err != nil {
		return err
	}

	snapshotName := fmt.Sprintf("backup_%s_%s", req.VolumeName, now.Format("20060102_150405"))

	// Lock capability is revalidated at execution time; a stale or missing
	// capability silently disables locking for this run only.
	lockHours := req.LockHours
	if lockHours > 0 {
		supported, err := r.storage.VolumeSupportsLocking(ctx, req.ControllerID, req.VolumeName)
		if err != nil || !supported {
			r.logger.Warn("snapshot locking disabled for this run",
				zap.Int64("jobId", job.ID),
				zap.String("volume", req.VolumeName),
				zap.Error(err))
			lockHours = 0
		}
	}

	results := make(map[int]*domain.JobVMResult, len(vms))
	var frozen []domain.VM
	hadVMErrors := false

	for _, vm := range vms {
		res, err := r.store.Repos().Jobs.CreateVMResult(ctx, &domain.JobVMResult{
			JobID:     job.ID,
			VMID:      vm.ID,
			VM:        vm.Name,
			StartedAt: time.Now().In(r.cfg.Location),
		})
		if err != nil {
			return err
		}
		results[vm.ID] = res

		if req.AppAware {
			res.FreezeAttempted = true
			if err := r.compute.FreezeVM(ctx, vm.Host, vm.ID); err != nil {
				hadVMErrors = true
				res.Error = fmt.Sprintf("freeze failed: %v", err)
				r.addVMLog(ctx, res.ID, "warn", res.Error)
			} else {
				res.FreezeSucceeded = true
				frozen = append(frozen, vm)
				r.addVMLog(ctx, res.ID, "info", "IO frozen")
			}
		}

		if req.UseVMSnapshot {
			res.SnapshotRequested = true
			if err := r.compute.SnapshotVM(ctx, vm.Host, vm.ID, snapshotName, req.CaptureMemory); err != nil {
				hadVMErrors = true
				res.Error = fmt.Sprintf("vm snapshot failed: %v", err)
				r.addVMLog(ctx, res.ID, "warn", res.Error)
			} else {
				res.SnapshotAchieved = true
				r.addVMLog(ctx, res.ID, "info", "hypervisor snapshot taken")
			}
		}
	}

	// Frozen VMs are always thawed, even when the storage snapshot fails.
	defer func() {
		for _, vm := range frozen {
			if err := r.compute.ThawVM(context.WithoutCancel(ctx), vm.Host, vm.ID); err != nil {
				r.logger.Error("failed to thaw VM after backup",
					zap.Int64("jobId", job.ID),
					zap.Int("vm", vm.ID),
					zap.String("host", vm.Host),
					zap.Error(err))
				if res := results[vm.ID]; res != nil {
					r.addVMLog(ctx, res.ID, "error", fmt.Sprintf("thaw failed: %v", err))
				}
			}
		}
	}()

	label := req.RetentionUnit.ReplicationLabel()
	snapErr := r.storage.CreateSnapshot(ctx, req.ControllerID, req.VolumeName, snapshotName, domain.SnapshotOptions{
		LockHours: lockHours,
		Label:     label,
	})

	for _, vm := range vms {
		res := results[vm.ID]
		completed := time.Now().In(r.cfg.Location)
		res.CompletedAt = &completed
		if snapErr != nil && res.Error == "" {
			res.Error = fmt.Sprintf("storage snapshot failed: %v", snapErr)
		}
		if err := r.store.Repos().Jobs.UpdateVMResult(ctx, res); err != nil {
			r.logger.Error("failed to persist vm result",
				zap.Int64("jobId", job.ID), zap.Int("vm", vm.ID), zap.Error(err))
		}
	}
	if snapErr != nil {
		return snapErr
	}

	relation, err := r.store.Repos().Mirrors.RelationForSourceVolume(ctx, req.ControllerID, req.VolumeName)
	if err != nil {
		r.logger.Warn("replication relation lookup failed",
			zap.Int64("jobId", job.ID), zap.Error(err))
	}

	// Catalog entries and the tracking row commit together.
	if err := r.store.Transaction(ctx, func(repos *domain.Repositories) error {
		for _, vm := range vms {
			if _, err := repos.Backups.Create(ctx, &domain.BackupRecord{
				JobID:          job.ID,
				ControllerID:   req.ControllerID,
				VolumeName:     req.VolumeName,
				SnapshotName:   snapshotName,
				VMID:           vm.ID,
				VM:             vm.Name,
				RetentionCount: req.RetentionCount,
				RetentionUnit:  req.RetentionUnit,
				Locked:         lockHours > 0,
				AppAware:       req.AppAware,
				UsedVMSnapshot: req.UseVMSnapshot,
				Timestamp:      now,
			}); err != nil {
				return err
			}
		}

		tracking := &domain.TrackedSnapshot{
			JobID:               job.ID,
			SnapshotName:        snapshotName,
			PrimaryControllerID: req.ControllerID,
			PrimaryVolume:       req.VolumeName,
			ExistsOnPrimary:     true,
			ReplicationLabel:    label,
			LastChecked:         now,
		}
		if relation != nil {
			tracking.SecondaryControllerID = relation.DestControllerID
			tracking.SecondaryVolume = relation.DestVolume
		}
		_, err := repos.Snapshots.Create(ctx, tracking)
		return err
	}); err != nil {
		return err
	}
	metrics.SnapshotsTracked.Inc()

	if req.Replicate && relation != nil && r.replicationEligible(ctx, job, relation) {
		if err := r.storage.TriggerSnapMirrorUpdate(ctx, req.ControllerID, relation.RelationUUID); err != nil {
			// Replication will catch up on its own schedule; record and move on.
			r.logger.Warn("snapmirror update trigger failed",
				zap.Int64("jobId", job.ID),
				zap.String("relation", relation.RelationUUID),
				zap.Error(err))
			hadVMErrors = true
		}
	}

	if hadVMErrors {
		job.Status = domain.JobStatusCompletedWithErrors
	}
	return nil
}

// replicationEligible 复制仅在关系两端的卷都处于启用状态时触发
// 任一端被停用或查询失败都只跳过本次触发，不影响作业结果
func (r *backupRunner) replicationEligible(ctx context.Context, job *domain.Job, relation *domain.SnapMirrorRelation) bool {
	volumes := r.store.Repos().Volumes
	ends := []struct {
		controllerID int64
		volume       string
	}{
		{relation.SourceControllerID, relation.SourceVolume},
		{relation.DestControllerID, relation.DestVolume},
	}
	for _, end := range ends {
		enabled, err := volumes.IsEnabled(ctx, end.controllerID, end.volume)
		if err != nil {
			r.logger.Warn("volume enablement lookup failed, replication skipped",
				zap.Int64("jobId", job.ID),
				zap.Int64("controllerId", end.controllerID),
				zap.String("volume", end.volume),
				zap.Error(err))
			return false
		}
		if !enabled {
			r.logger.Warn("replication skipped, volume not enabled",
				zap.Int64("jobId", job.ID),
				zap.Int64("controllerId", end.controllerID),
				zap.String("volume", end.volume))
			return false
		}
	}
	return true
}

// collectVMs 汇总集群各节点上位于目标存储的虚拟机，剔除排除名单
// 离线或查询失败的节点记日志后跳过
func (r *backupRunner) collectVMs(ctx context.Context, job *domain.Job, req *domain.BackupRequest) ([]domain.VM, error) {
	cluster, err := r.store.Repos().Clusters.GetCluster(ctx, req.ClusterID)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return nil, fmt.Errorf("cluster %d not found", req.ClusterID)
	}

	excluded := make(map[int]bool, len(req.ExcludedVMIDs))
	for _, id := range req.ExcludedVMIDs {
		excluded[id] = true
	}

	seen := make(map[int]bool)
	var vms []domain.VM
	for _, host := range cluster.Hosts {
		if online, err := r.compute.HostOnline(ctx, host); err != nil || !online {
			r.logger.Warn("host skipped during backup",
				zap.Int64("jobId", job.ID),
				zap.String("host", host),
				zap.Error(err))
			continue
		}
		hostVMs, err := r.compute.ListVMs(ctx, host, req.StorageName)
		if err != nil {
			r.logger.Warn("vm listing failed, host skipped",
				zap.Int64("jobId", job.ID),
				zap.String("host", host),
				zap.Error(err))
			continue
		}
		for _, vm := range hostVMs {
			if excluded[vm.ID] || seen[vm.ID] {
				continue
			}
			seen[vm.ID] = true
			vms = append(vms, vm)
		}
	}
	return vms, nil
}

func (r *backupRunner) addVMLog(ctx context.Context, resultID int64, level, msg string) {
	err := r.store.Repos().Jobs.AddVMLog(ctx, &domain.JobVMLog{
		ResultID: resultID,
		Level:    level,
		Message:  msg,
		LoggedAt: time.Now().In(r.cfg.Location),
	})
	if err != nil {
		r.logger.Error("failed to append vm log", zap.Int64("resultId", resultID), zap.Error(err))
	}
}

var _ BackupRunner = (*backupRunner)(nil)
