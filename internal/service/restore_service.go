package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/metrics"
	"github.com/snapvault/vm-backup-service/pkg/code"
	"github.com/snapvault/vm-backup-service/pkg/workerpool"
)

// RestoreService lists restore points and runs restores
// 恢复点查询与恢复执行：克隆 -> 导出 -> 挂载
type RestoreService interface {
	ListRestorePoints(ctx context.Context, controllerID int64, volume string) ([]*domain.RestorePoint, error)
	RunRestore(ctx context.Context, req *domain.RestoreRequest) (*domain.RestoreResult, error)
}

type restoreService struct {
	cfg     Config
	store   domain.Store
	storage domain.StorageClient
	compute domain.ComputeClient
	pool    *workerpool.Pool
	logger  *zap.Logger
}

// NewRestoreService 创建 RestoreService 实例
func NewRestoreService(cfg Config, store domain.Store, storage domain.StorageClient, compute domain.ComputeClient, pool *workerpool.Pool, logger *zap.Logger) RestoreService {
	return &restoreService{cfg: cfg, store: store, storage: storage, compute: compute, pool: pool, logger: logger}
}

// ListRestorePoints 按 (卷, 快照) 聚合备份记录，最新在前
// 主端已回收但副本仍在的点保留可见，标记 secondaryOnly
func (s *restoreService) ListRestorePoints(ctx context.Context, controllerID int64, volume string) ([]*domain.RestorePoint, error) {
	repos := s.store.Repos()
	groups, err := repos.Backups.ListGroupsByVolume(ctx, controllerID, volume)
	if err != nil {
		return nil, err
	}

	points := make([]*domain.RestorePoint, 0, len(groups))
	for _, group := range groups {
		point := &domain.RestorePoint{
			JobID:        group.JobID,
			ControllerID: group.ControllerID,
			VolumeName:   group.VolumeName,
			SnapshotName: group.SnapshotName,
		}
		for _, record := range group.Records {
			point.VMs = append(point.VMs, record.VM)
			if point.Timestamp.IsZero() || record.Timestamp.Before(point.Timestamp) {
				point.Timestamp = record.Timestamp
			}
		}

		tracking, err := repos.Snapshots.GetByJobAndName(ctx, group.JobID, group.SnapshotName)
		if err != nil {
			return nil, err
		}
		if tracking != nil {
			point.Replicated = tracking.Replicated
			point.SecondaryOnly = !tracking.ExistsOnPrimary && tracking.ExistsOnSecondary
		}
		points = append(points, point)
	}
	return points, nil
}

// RunRestore 经工作池执行一次恢复并同步等待结果
func (s *restoreService) RunRestore(ctx context.Context, req *domain.RestoreRequest) (*domain.RestoreResult, error) {
	done := make(chan struct{})
	var (
		result *domain.RestoreResult
		runErr error
	)
	name := fmt.Sprintf("restore %s@%s", req.SnapshotName, req.VolumeName)
	if err := s.pool.Submit(ctx, name, func(runCtx context.Context) error {
		defer close(done)
		result, runErr = s.restore(runCtx, req)
		return runErr
	}); err != nil {
		return nil, code.ErrorRestoreFailed.WithDetails(err.Error())
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if runErr != nil {
		return result, code.ErrorRestoreFailed.WithDetails(runErr.Error())
	}
	return result, nil
}

func (s *restoreService) restore(ctx context.Context, req *domain.RestoreRequest) (*domain.RestoreResult, error) {
	now := time.Now().In(s.cfg.Location)
	job, err := s.store.Repos().Jobs.Create(ctx, &domain.Job{
		Type:      domain.JobTypeRestore,
		Entity:    fmt.Sprintf("%s@%s", req.SnapshotName, req.VolumeName),
		Status:    domain.JobStatusRunning,
		StartedAt: now,
	})
	if err != nil {
		return nil, err
	}

	result, runErr := s.executeRestore(ctx, job, req, now)

	completed := time.Now().In(s.cfg.Location)
	job.CompletedAt = &completed
	if runErr != nil {
		job.Status = domain.JobStatusFailed
		job.Error = runErr.Error()
	} else {
		job.Status = domain.JobStatusCompleted
	}
	if err := s.store.Repos().Jobs.Update(ctx, job); err != nil {
		s.logger.Error("failed to persist restore job result",
			zap.Int64("jobId", job.ID), zap.Error(err))
	}
	metrics.JobsTotal.WithLabelValues(string(job.Type), string(job.Status)).Inc()

	if result != nil {
		result.JobID = job.ID
	}
	return result, runErr
}

func (s *restoreService) executeRestore(ctx context.Context, job *domain.Job, req *domain.RestoreRequest, now time.Time) (*domain.RestoreResult, error) {
	repos := s.store.Repos()

	record, err := repos.Backups.FindBySourceSnapshot(ctx, req.VolumeName, req.SnapshotName)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("no backup record for snapshot %s on volume %s", req.SnapshotName, req.VolumeName)
	}

	tracking, err := repos.Snapshots.GetByJobAndName(ctx, record.JobID, req.SnapshotName)
	if err != nil {
		return nil, err
	}

	// Demoted points clone from the secondary copy.
	cloneControllerID := req.ControllerID
	cloneVolume := req.VolumeName
	secondarySide := false
	if tracking != nil && !tracking.ExistsOnPrimary && tracking.ExistsOnSecondary {
		cloneControllerID = tracking.SecondaryControllerID
		cloneVolume = tracking.SecondaryVolume
		secondarySide = true
	}

	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	cloneName := fmt.Sprintf("restore_%s_%s_%s", req.VolumeName, now.Format("20060102_150405"), short)

	clone, err := s.storage.CloneVolumeFromSnapshot(ctx, cloneControllerID, cloneVolume, req.SnapshotName, cloneName)
	if err != nil {
		return nil, fmt.Errorf("clone from snapshot: %w", err)
	}

	if secondarySide {
		// The secondary controller may not have the export policy the source
		// volume was served with.
		if err := s.storage.EnsureExportPolicy(ctx, req.ControllerID, cloneControllerID, req.VolumeName); err != nil {
			return nil, fmt.Errorf("ensure export policy: %w", err)
		}
	}

	volumeUUID, err := s.storage.LookupVolumeUUID(ctx, cloneControllerID, clone)
	if err != nil {
		return nil, fmt.Errorf("lookup clone volume: %w", err)
	}
	exportPath := "/" + clone
	if err := s.storage.SetExportPath(ctx, cloneControllerID, volumeUUID, exportPath); err != nil {
		return nil, fmt.Errorf("set export path: %w", err)
	}

	serverIP := ""
	mounts, err := s.storage.GetVolumeMounts(ctx, cloneControllerID)
	if err != nil {
		return nil, fmt.Errorf("get volume mounts: %w", err)
	}
	for _, mount := range mounts {
		if mount.Volume == clone {
			serverIP = mount.MountIP
			break
		}
	}
	if serverIP == "" {
		return nil, fmt.Errorf("no mount address for clone %s", clone)
	}

	host, err := s.pickHost(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.compute.MountStorage(ctx, host, clone, serverIP, exportPath); err != nil {
		return nil, fmt.Errorf("mount clone on %s: %w", host, err)
	}

	s.logger.Info("restore clone mounted",
		zap.Int64("jobId", job.ID),
		zap.String("clone", clone),
		zap.String("host", host))

	return &domain.RestoreResult{
		CloneName: clone,
		MountPath: exportPath,
		Host:      host,
	}, nil
}

// pickHost 优先使用调用方指定的节点，否则取集群中第一个在线节点
func (s *restoreService) pickHost(ctx context.Context, req *domain.RestoreRequest) (string, error) {
	if req.TargetHost != "" {
		return req.TargetHost, nil
	}
	cluster, err := s.store.Repos().Clusters.GetCluster(ctx, req.ClusterID)
	if err != nil {
		return "", err
	}
	if cluster == nil {
		return "", fmt.Errorf("cluster %d not found", req.ClusterID)
	}
	for _, host := range cluster.Hosts {
		if online, err := s.compute.HostOnline(ctx, host); err == nil && online {
			return host, nil
		}
	}
	return "", fmt.Errorf("no online host in cluster %d", req.ClusterID)
}

var _ RestoreService = (*restoreService)(nil)
