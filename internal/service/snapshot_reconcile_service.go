package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/metrics"
)

// SnapshotReconcileService refreshes snapshot tracking rows against storage truth
// 快照跟踪对账：以存储侧列表为准刷新主/副两端的存在与复制状态
type SnapshotReconcileService interface {
	Run(ctx context.Context) error
}

type snapshotReconcileService struct {
	store   domain.Store
	storage domain.StorageClient
	logger  *zap.Logger
}

// NewSnapshotReconcileService 创建 SnapshotReconcileService 实例
func NewSnapshotReconcileService(store domain.Store, storage domain.StorageClient, logger *zap.Logger) SnapshotReconcileService {
	return &snapshotReconcileService{store: store, storage: storage, logger: logger}
}

func (s *snapshotReconcileService) Run(ctx context.Context) error {
	s.syncRelations(ctx)

	relations, err := s.store.Repos().Mirrors.ListRelations(ctx)
	if err != nil {
		return err
	}

	for _, relation := range relations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.reconcileRelation(ctx, relation); err != nil {
			s.logger.Warn("snapshot reconciliation failed for relation",
				zap.String("relation", relation.RelationUUID),
				zap.Error(err))
		}
	}
	return nil
}

// syncRelations 把每个控制器上的真实复制关系镜像进本地缓存
// 缓存已一致的控制器不产生写入；单个控制器失败只记日志，其余照常刷新
func (s *snapshotReconcileService) syncRelations(ctx context.Context) {
	controllers, err := s.store.Repos().Clusters.ListControllers(ctx)
	if err != nil {
		s.logger.Warn("controller listing failed, relation sync skipped", zap.Error(err))
		return
	}
	cached, err := s.store.Repos().Mirrors.ListRelations(ctx)
	if err != nil {
		s.logger.Warn("relation cache read failed, relation sync skipped", zap.Error(err))
		return
	}
	cachedBySource := make(map[int64][]*domain.SnapMirrorRelation, len(controllers))
	for _, rel := range cached {
		cachedBySource[rel.SourceControllerID] = append(cachedBySource[rel.SourceControllerID], rel)
	}

	for _, controller := range controllers {
		relations, err := s.storage.ListSnapMirrorRelations(ctx, controller.ID)
		if err != nil {
			s.logger.Warn("relation listing failed",
				zap.Int64("controllerId", controller.ID), zap.Error(err))
			continue
		}
		if relationsInSync(cachedBySource[controller.ID], relations) {
			metrics.ReconcileWritesSkipped.Inc()
			continue
		}
		if err := s.store.Transaction(ctx, func(repos *domain.Repositories) error {
			return repos.Mirrors.ReplaceRelations(ctx, controller.ID, relations)
		}); err != nil {
			s.logger.Warn("relation cache refresh failed",
				zap.Int64("controllerId", controller.ID), zap.Error(err))
		}
	}
}

// relationsInSync 判断某控制器的本地关系缓存是否与存储侧一致
func relationsInSync(cached []*domain.SnapMirrorRelation, live []domain.SnapMirrorRelation) bool {
	if len(cached) != len(live) {
		return false
	}
	byUUID := make(map[string]*domain.SnapMirrorRelation, len(cached))
	for _, rel := range cached {
		byUUID[rel.RelationUUID] = rel
	}
	for i := range live {
		local, ok := byUUID[live[i].RelationUUID]
		if !ok || !local.Equal(&live[i]) {
			return false
		}
	}
	return true
}

// reconcileRelation 对一条复制关系做一轮对账
// 这是发现"副本先于主端入账"的快照的唯一路径
func (s *snapshotReconcileService) reconcileRelation(ctx context.Context, relation *domain.SnapMirrorRelation) error {
	repos := s.store.Repos()

	// Controllers that no longer resolve are a configuration problem, not a
	// reason to stop the pass.
	for _, id := range []int64{relation.SourceControllerID, relation.DestControllerID} {
		controller, err := repos.Clusters.GetController(ctx, id)
		if err != nil {
			return err
		}
		if controller == nil {
			s.logger.Warn("relation references unknown controller, skipped",
				zap.String("relation", relation.RelationUUID),
				zap.Int64("controllerId", id))
			return nil
		}
	}

	destSnaps, err := s.storage.ListSnapshots(ctx, relation.DestControllerID, relation.DestVolume)
	if err != nil {
		return err
	}
	srcSnaps, err := s.storage.ListSnapshots(ctx, relation.SourceControllerID, relation.SourceVolume)
	if err != nil {
		return err
	}
	onPrimary := make(map[string]bool, len(srcSnaps))
	for _, name := range srcSnaps {
		onPrimary[name] = true
	}

	for _, name := range destSnaps {
		record, err := repos.Backups.FindBySourceSnapshot(ctx, relation.SourceVolume, name)
		if err != nil {
			return err
		}
		if record == nil {
			// Not one of ours.
			continue
		}

		tracking, err := repos.Snapshots.GetByJobAndName(ctx, record.JobID, name)
		if err != nil {
			return err
		}

		if tracking == nil {
			label := domain.RetentionUnit("").ReplicationLabel()
			if record.RetentionUnit != "" {
				label = record.RetentionUnit.ReplicationLabel()
			}
			_, err := repos.Snapshots.Create(ctx, &domain.TrackedSnapshot{
				JobID:                 record.JobID,
				SnapshotName:          name,
				PrimaryControllerID:   relation.SourceControllerID,
				PrimaryVolume:         relation.SourceVolume,
				ExistsOnPrimary:       onPrimary[name],
				SecondaryControllerID: relation.DestControllerID,
				SecondaryVolume:       relation.DestVolume,
				ExistsOnSecondary:     true,
				ReplicationLabel:      label,
				Replicated:            true,
				LastChecked:           time.Now(),
			})
			if err != nil {
				return err
			}
			metrics.SnapshotsTracked.Inc()
			continue
		}

		// Idempotence: an unchanged row produces no write.
		if tracking.ExistsOnPrimary == onPrimary[name] &&
			tracking.ExistsOnSecondary &&
			tracking.Replicated &&
			tracking.SecondaryControllerID == relation.DestControllerID &&
			tracking.SecondaryVolume == relation.DestVolume {
			metrics.ReconcileWritesSkipped.Inc()
			continue
		}

		tracking.ExistsOnPrimary = onPrimary[name]
		tracking.SecondaryControllerID = relation.DestControllerID
		tracking.SecondaryVolume = relation.DestVolume
		tracking.ExistsOnSecondary = true
		tracking.Replicated = true
		tracking.LastChecked = time.Now()
		if err := repos.Snapshots.Update(ctx, tracking); err != nil {
			return err
		}
	}
	return nil
}

var _ SnapshotReconcileService = (*snapshotReconcileService)(nil)
