package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

// OrphanService 孤儿克隆/快照检测与显式清理
// 检测只报告；删除是独立的操作员动作
type OrphanService interface {
	ListOrphans(ctx context.Context, clusterID, controllerID int64) (*domain.OrphanReport, error)
	// DeleteOrphan unmounts the clone (trying every host until one succeeds)
	// and then deletes it. Unmount-ok-delete-failed is a partial failure the
	// caller must act on; it is never retried silently.
	DeleteOrphan(ctx context.Context, clusterID, controllerID int64, cloneName, mountIP string) (domain.OrphanDeleteState, error)
	DeleteOrphanSnapshot(ctx context.Context, controllerID int64, volume, snapshot string) error
}

type orphanService struct {
	cfg     Config
	store   domain.Store
	storage domain.StorageClient
	compute domain.ComputeClient
	logger  *zap.Logger
}

// NewOrphanService 创建 OrphanService 实例
func NewOrphanService(cfg Config, store domain.Store, storage domain.StorageClient, compute domain.ComputeClient, logger *zap.Logger) OrphanService {
	return &orphanService{cfg: cfg, store: store, storage: storage, compute: compute, logger: logger}
}

func (s *orphanService) ListOrphans(ctx context.Context, clusterID, controllerID int64) (*domain.OrphanReport, error) {
	cluster, err := s.store.Repos().Clusters.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return nil, fmt.Errorf("cluster %d not found", clusterID)
	}

	clones, err := s.storage.ListFlexClones(ctx, controllerID)
	if err != nil {
		return nil, errors.Wrap(err, "list flexclones")
	}

	mountIPs := make(map[string]string)
	if mounts, err := s.storage.GetVolumeMounts(ctx, controllerID); err != nil {
		s.logger.Warn("volume mount listing failed", zap.Int64("controllerId", controllerID), zap.Error(err))
	} else {
		for _, mount := range mounts {
			mountIPs[mount.Volume] = mount.MountIP
		}
	}

	usedBy, err := s.cloneUsage(ctx, cluster.Hosts, clones)
	if err != nil {
		return nil, err
	}

	report := &domain.OrphanReport{ClusterID: clusterID}
	cloneInUse := make(map[string]bool, len(clones))
	for _, clone := range clones {
		vms := usedBy[clone]
		cloneInUse[clone] = len(vms) > 0
		report.Clones = append(report.Clones, domain.OrphanClone{
			CloneName: clone,
			MountIP:   mountIPs[clone],
			InUse:     len(vms) > 0,
			UsedByVMs: vms,
		})
	}

	snapshots, err := s.orphanSnapshots(ctx, controllerID, clones, cloneInUse)
	if err != nil {
		return nil, err
	}
	report.Snapshots = snapshots
	return report, nil
}

// cloneUsage 并行探测集群各节点，汇总每个克隆被哪些虚拟机引用
// 在任一节点被任一虚拟机引用即视为在用；离线节点跳过
func (s *orphanService) cloneUsage(ctx context.Context, hosts []string, clones []string) (map[string][]string, error) {
	var mu sync.Mutex
	usedBy := make(map[string][]string, len(clones))

	g, gctx := errgroup.WithContext(ctx)
	for _, host := range hosts {
		host := host
		g.Go(func() error {
			if online, err := s.compute.HostOnline(gctx, host); err != nil || !online {
				s.logger.Warn("host skipped during orphan scan",
					zap.String("host", host), zap.Error(err))
				return nil
			}
			for _, clone := range clones {
				vms, err := s.compute.ListVMs(gctx, host, clone)
				if err != nil {
					s.logger.Warn("vm listing failed during orphan scan",
						zap.String("host", host),
						zap.String("clone", clone),
						zap.Error(err))
					continue
				}
				if len(vms) == 0 {
					continue
				}
				mu.Lock()
				for _, vm := range vms {
					usedBy[clone] = append(usedBy[clone], vm.Name)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return usedBy, nil
}

// orphanSnapshots 对每个启用卷求 磁盘快照 - 备份记录 的差集
// 复制引擎自建的快照按名称前缀排除；按命名约定关联同名克隆
func (s *orphanService) orphanSnapshots(ctx context.Context, controllerID int64, clones []string, cloneInUse map[string]bool) ([]domain.OrphanSnapshot, error) {
	repos := s.store.Repos()
	volumes, err := repos.Volumes.ListEnabled(ctx, controllerID)
	if err != nil {
		return nil, err
	}

	var out []domain.OrphanSnapshot
	for _, volume := range volumes {
		onDisk, err := s.storage.ListSnapshots(ctx, controllerID, volume.VolumeName)
		if err != nil {
			s.logger.Warn("snapshot listing failed during orphan scan",
				zap.String("volume", volume.VolumeName), zap.Error(err))
			continue
		}

		records, err := repos.Backups.ListByVolume(ctx, controllerID, volume.VolumeName)
		if err != nil {
			return nil, err
		}
		recorded := make(map[string]bool, len(records))
		for _, record := range records {
			recorded[record.SnapshotName] = true
		}

		for _, name := range onDisk {
			if strings.HasPrefix(name, s.cfg.ReplicationSnapshotPrefix) {
				continue
			}
			if recorded[name] {
				continue
			}
			orphan := domain.OrphanSnapshot{
				ControllerID: controllerID,
				VolumeName:   volume.VolumeName,
				SnapshotName: name,
			}
			// Interrupted restores leave clones named {volume}_...{snapshot}.
			for _, clone := range clones {
				if strings.Contains(clone, volume.VolumeName) && strings.Contains(clone, name) {
					orphan.RelatedClone = clone
					orphan.CloneInUse = cloneInUse[clone]
					break
				}
			}
			out = append(out, orphan)
		}
	}
	return out, nil
}

func (s *orphanService) DeleteOrphan(ctx context.Context, clusterID, controllerID int64, cloneName, mountIP string) (domain.OrphanDeleteState, error) {
	cluster, err := s.store.Repos().Clusters.GetCluster(ctx, clusterID)
	if err != nil {
		return "", err
	}
	if cluster == nil {
		return "", fmt.Errorf("cluster %d not found", clusterID)
	}

	s.logger.Info("deleting orphan clone",
		zap.String("clone", cloneName),
		zap.String("mountIp", mountIP),
		zap.Int64("controllerId", controllerID))

	unmounted := false
	var lastErr error
	for _, host := range cluster.Hosts {
		if err := s.compute.UnmountStorage(ctx, host, cloneName); err != nil {
			lastErr = err
			continue
		}
		unmounted = true
		break
	}
	if !unmounted {
		return "", errors.Wrapf(lastErr, "unmount %s failed on every host", cloneName)
	}

	if err := s.storage.DeleteVolume(ctx, controllerID, cloneName); err != nil {
		s.logger.Error("orphan clone unmounted but not deleted, manual cleanup required",
			zap.String("clone", cloneName),
			zap.Int64("controllerId", controllerID),
			zap.Error(err))
		return domain.OrphanDeletePartial, errors.Wrapf(err, "clone %s unmounted but delete failed", cloneName)
	}
	return domain.OrphanDeleteDone, nil
}

func (s *orphanService) DeleteOrphanSnapshot(ctx context.Context, controllerID int64, volume, snapshot string) error {
	err := s.storage.DeleteSnapshot(ctx, controllerID, volume, snapshot)
	if err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
		return err
	}
	return nil
}

var _ OrphanService = (*orphanService)(nil)
