package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

func livePolicy() *domain.SnapMirrorPolicy {
	return &domain.SnapMirrorPolicy{
		Name:     "MirrorAndVault",
		Scope:    "cluster",
		Type:     "async",
		Throttle: 0,
		Retentions: []domain.SnapMirrorRetention{
			{Label: "hourly", Count: 6, Position: 0},
			{Label: "daily", Count: 7, Position: 1},
		},
	}
}

func policyFixture() (*mockStorage, *mockMirrorRepo, PolicyReconcileService) {
	storage := &mockStorage{
		livePolicies: map[string]*domain.SnapMirrorPolicy{
			"pol-1": livePolicy(),
		},
	}
	mirrors := &mockMirrorRepo{relations: map[string]*domain.SnapMirrorRelation{
		volKey(1, "vm_prod"): {
			SourceControllerID: 1, SourceVolume: "vm_prod",
			DestControllerID: 2, DestVolume: "vm_prod_dr",
			PolicyUUID: "pol-1",
		},
	}}
	store := &mockStore{repos: &domain.Repositories{Mirrors: mirrors}}
	svc := NewPolicyReconcileService(store, storage, zap.NewNop())
	return storage, mirrors, svc
}

// 首次对账时本地没有缓存，策略整体落库
func TestPolicyReconcileSavesMissingPolicy(t *testing.T) {
	_, mirrors, svc := policyFixture()

	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, mirrors.saved, 1)
	got := mirrors.policies["pol-1"]
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ControllerID)
	assert.Equal(t, "pol-1", got.UUID)
	assert.Equal(t, "MirrorAndVault", got.Name)
	require.Len(t, got.Retentions, 2)
	assert.Equal(t, "daily", got.Retentions[1].Label)
}

// 存储侧没有变化时第二轮不再写库
func TestPolicyReconcileSecondPassWritesNothing(t *testing.T) {
	_, mirrors, svc := policyFixture()

	require.NoError(t, svc.Run(context.Background()))
	require.NoError(t, svc.Run(context.Background()))

	assert.Len(t, mirrors.saved, 1)
}

// 标量字段或保留规则顺序变化都要触发写库
func TestPolicyReconcileDetectsDrift(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.SnapMirrorPolicy)
	}{
		{"throttle changed", func(p *domain.SnapMirrorPolicy) { p.Throttle = 1024 }},
		{"compression toggled", func(p *domain.SnapMirrorPolicy) { p.NetworkCompression = true }},
		{"retention count changed", func(p *domain.SnapMirrorPolicy) { p.Retentions[1].Count = 14 }},
		{"retention reordered", func(p *domain.SnapMirrorPolicy) {
			p.Retentions[0], p.Retentions[1] = p.Retentions[1], p.Retentions[0]
		}},
		{"retention appended", func(p *domain.SnapMirrorPolicy) {
			p.Retentions = append(p.Retentions, domain.SnapMirrorRetention{Label: "weekly", Count: 4})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, mirrors, svc := policyFixture()
			require.NoError(t, svc.Run(context.Background()))
			require.Len(t, mirrors.saved, 1)

			tt.mutate(storage.livePolicies["pol-1"])
			require.NoError(t, svc.Run(context.Background()))
			assert.Len(t, mirrors.saved, 2)
		})
	}
}

// 没有策略 UUID 的关系跳过，不访问存储
func TestPolicyReconcileSkipsRelationWithoutPolicy(t *testing.T) {
	storage, mirrors, svc := policyFixture()
	mirrors.relations[volKey(1, "vm_prod")].PolicyUUID = ""

	require.NoError(t, svc.Run(context.Background()))

	assert.Zero(t, storage.policyFetches)
	assert.Empty(t, mirrors.saved)
}

// 同一目标控制器上引用同一策略的多条关系只拉取一次
func TestPolicyReconcileDeduplicatesByDestAndPolicy(t *testing.T) {
	storage, mirrors, svc := policyFixture()
	mirrors.relations[volKey(1, "vm_test")] = &domain.SnapMirrorRelation{
		SourceControllerID: 1, SourceVolume: "vm_test",
		DestControllerID: 2, DestVolume: "vm_test_dr",
		PolicyUUID: "pol-1",
	}

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, 1, storage.policyFetches)
	assert.Len(t, mirrors.saved, 1)
}

// 存储侧查不到策略时告警并继续，不算对账失败
func TestPolicyReconcileIsolatesMissingLivePolicy(t *testing.T) {
	storage, mirrors, svc := policyFixture()
	delete(storage.livePolicies, "pol-1")

	require.NoError(t, svc.Run(context.Background()))

	assert.Empty(t, mirrors.saved)
}
