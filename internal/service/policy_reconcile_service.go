package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/metrics"
)

// PolicyReconcileService mirrors storage-side replication policies locally
// 复制策略对账：把存储侧的策略与保留规则镜像到本地缓存，只有变化才落库
type PolicyReconcileService interface {
	Run(ctx context.Context) error
}

type policyReconcileService struct {
	store   domain.Store
	storage domain.StorageClient
	logger  *zap.Logger
}

// NewPolicyReconcileService 创建 PolicyReconcileService 实例
func NewPolicyReconcileService(store domain.Store, storage domain.StorageClient, logger *zap.Logger) PolicyReconcileService {
	return &policyReconcileService{store: store, storage: storage, logger: logger}
}

func (s *policyReconcileService) Run(ctx context.Context) error {
	relations, err := s.store.Repos().Mirrors.ListRelations(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, relation := range relations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if relation.PolicyUUID == "" {
			continue
		}
		key := fmt.Sprintf("%d/%s", relation.DestControllerID, relation.PolicyUUID)
		if seen[key] {
			continue
		}
		seen[key] = true

		if err := s.reconcilePolicy(ctx, relation.DestControllerID, relation.PolicyUUID); err != nil {
			s.logger.Warn("policy reconciliation failed",
				zap.Int64("controllerId", relation.DestControllerID),
				zap.String("policy", relation.PolicyUUID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *policyReconcileService) reconcilePolicy(ctx context.Context, controllerID int64, policyUUID string) error {
	live, err := s.storage.GetSnapMirrorPolicy(ctx, controllerID, policyUUID)
	if err != nil {
		return err
	}
	if live == nil {
		return fmt.Errorf("policy %s not found on controller %d", policyUUID, controllerID)
	}
	live.ControllerID = controllerID
	live.UUID = policyUUID

	local, err := s.store.Repos().Mirrors.GetPolicy(ctx, controllerID, policyUUID)
	if err != nil {
		return err
	}
	if local != nil && local.Equal(live) {
		metrics.ReconcileWritesSkipped.Inc()
		return nil
	}

	return s.store.Transaction(ctx, func(repos *domain.Repositories) error {
		return repos.Mirrors.SavePolicy(ctx, live)
	})
}

var _ PolicyReconcileService = (*policyReconcileService)(nil)
