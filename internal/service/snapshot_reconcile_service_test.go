package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

func reconcileFixture() (*mockStorage, *mockBackupRepo, *mockSnapshotRepo, *mockMirrorRepo, *mockClusterRepo, SnapshotReconcileService) {
	storage := &mockStorage{
		snapshots: map[string][]string{
			volKey(1, "vm_prod"):    {"backup_vm_prod_20260801_020000"},
			volKey(2, "vm_prod_dr"): {"backup_vm_prod_20260801_020000", "foreign_snap"},
		},
		liveRelations: map[int64][]domain.SnapMirrorRelation{
			1: {{
				RelationUUID:       "rel-1",
				SourceControllerID: 1, SourceVolume: "vm_prod",
				DestControllerID: 2, DestVolume: "vm_prod_dr",
				PolicyUUID: "pol-1",
			}},
		},
	}
	backups := &mockBackupRepo{bySnapshot: map[string]*domain.BackupRecord{
		"vm_prod/backup_vm_prod_20260801_020000": {
			ID: 1, JobID: 7, VolumeName: "vm_prod",
			SnapshotName:  "backup_vm_prod_20260801_020000",
			RetentionUnit: domain.RetentionDays,
		},
	}}
	snaps := &mockSnapshotRepo{}
	mirrors := &mockMirrorRepo{}
	clusters := &mockClusterRepo{controllers: map[int64]*domain.Controller{
		1: {ID: 1, Name: "ctrl-a"},
		2: {ID: 2, Name: "ctrl-b"},
	}}

	store := &mockStore{repos: &domain.Repositories{
		Backups:   backups,
		Snapshots: snaps,
		Mirrors:   mirrors,
		Clusters:  clusters,
	}}
	svc := NewSnapshotReconcileService(store, storage, zap.NewNop())
	return storage, backups, snaps, mirrors, clusters, svc
}

// 副本端出现未入账的自有快照时补建跟踪行，标签取自保留单位
func TestReconcileCreatesMissingTrackingRow(t *testing.T) {
	_, _, snaps, mirrors, _, svc := reconcileFixture()

	require.NoError(t, svc.Run(context.Background()))

	// 关系缓存被刷新
	assert.Len(t, mirrors.relations, 1)

	require.Len(t, snaps.created, 1)
	row := snaps.created[0]
	assert.Equal(t, int64(7), row.JobID)
	assert.True(t, row.ExistsOnPrimary)
	assert.True(t, row.ExistsOnSecondary)
	assert.True(t, row.Replicated)
	assert.Equal(t, "daily", row.ReplicationLabel)
	assert.Equal(t, int64(2), row.SecondaryControllerID)

	// 非自有快照（foreign_snap）不入账
	assert.Len(t, snaps.created, 1)
}

// 第二轮对账不产生任何写入，关系缓存也不重写
func TestReconcileSecondPassWritesNothing(t *testing.T) {
	_, _, snaps, mirrors, _, svc := reconcileFixture()

	require.NoError(t, svc.Run(context.Background()))
	require.Len(t, snaps.created, 1)
	require.Equal(t, 1, mirrors.replaceCalls)

	require.NoError(t, svc.Run(context.Background()))
	assert.Len(t, snaps.created, 1)
	assert.Empty(t, snaps.updated)
	assert.Equal(t, 1, mirrors.replaceCalls)
}

// 存储侧关系变化时缓存被重写一次
func TestReconcileRewritesRelationsOnChange(t *testing.T) {
	storage, _, _, mirrors, _, svc := reconcileFixture()

	require.NoError(t, svc.Run(context.Background()))
	require.Equal(t, 1, mirrors.replaceCalls)

	storage.liveRelations[1] = []domain.SnapMirrorRelation{{
		RelationUUID:       "rel-1",
		SourceControllerID: 1, SourceVolume: "vm_prod",
		DestControllerID: 2, DestVolume: "vm_prod_dr",
		PolicyUUID: "pol-2",
	}}

	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, 2, mirrors.replaceCalls)
}

// 主端快照消失后对账翻转 ExistsOnPrimary
func TestReconcileFlipsPrimaryExistence(t *testing.T) {
	storage, _, snaps, _, _, svc := reconcileFixture()

	require.NoError(t, svc.Run(context.Background()))
	require.Len(t, snaps.created, 1)

	// 主端快照被外部删除
	storage.snapshots[volKey(1, "vm_prod")] = nil

	require.NoError(t, svc.Run(context.Background()))
	require.Len(t, snaps.updated, 1)
	assert.False(t, snaps.updated[0].ExistsOnPrimary)
	assert.True(t, snaps.updated[0].ExistsOnSecondary)
}

// 无法解析的控制器跳过该关系，不算失败
func TestReconcileSkipsUnknownController(t *testing.T) {
	_, _, snaps, _, clusters, svc := reconcileFixture()
	delete(clusters.controllers, 2)

	require.NoError(t, svc.Run(context.Background()))
	assert.Empty(t, snaps.created)
	assert.Empty(t, snaps.updated)
}

// 备份记录缺少保留单位时标签记为 not_found
func TestReconcileLabelFallsBackToNotFound(t *testing.T) {
	_, backups, snaps, _, _, svc := reconcileFixture()
	backups.bySnapshot["vm_prod/backup_vm_prod_20260801_020000"].RetentionUnit = ""

	require.NoError(t, svc.Run(context.Background()))
	require.Len(t, snaps.created, 1)
	assert.Equal(t, "not_found", snaps.created[0].ReplicationLabel)
}
