package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

func orphanFixture() (*mockStorage, *mockCompute, OrphanService) {
	storage := &mockStorage{
		flexClones: []string{"vm_prod_restore_backup_vm_prod_20260801", "clone_active"},
		mounts: []domain.VolumeMount{
			{Volume: "vm_prod_restore_backup_vm_prod_20260801", MountIP: "10.0.0.11"},
			{Volume: "clone_active", MountIP: "10.0.0.12"},
		},
		snapshots: map[string][]string{
			volKey(1, "vm_prod"): {
				"backup_vm_prod_20260801_020000",
				"backup_vm_prod_20260801",
				"manual_snap",
				"snapmirror.1a2b3c",
			},
		},
	}
	compute := &mockCompute{
		vms: map[string][]domain.VM{
			"pve2/clone_active": {{ID: 101, Name: "web01", Host: "pve2"}},
		},
	}
	clusters := &mockClusterRepo{clusters: map[int64]*domain.Cluster{
		1: {ID: 1, Name: "pve", Hosts: []string{"pve1", "pve2", "pve3"}},
	}}
	volumes := &mockVolumeRepo{enabled: []*domain.EnabledVolume{
		{ControllerID: 1, VolumeName: "vm_prod", StorageName: "vm_prod"},
	}}
	backups := &mockBackupRepo{byVolume: map[string][]*domain.BackupRecord{
		volKey(1, "vm_prod"): {{
			JobID: 7, VolumeName: "vm_prod",
			SnapshotName: "backup_vm_prod_20260801_020000",
		}},
	}}

	store := &mockStore{repos: &domain.Repositories{
		Clusters: clusters,
		Volumes:  volumes,
		Backups:  backups,
	}}
	cfg := Config{ReplicationSnapshotPrefix: "snapmirror"}
	svc := NewOrphanService(cfg, store, storage, compute, zap.NewNop())
	return storage, compute, svc
}

// 被任一节点上的虚拟机引用的克隆标记在用，其余为孤儿；挂载 IP 一并带出
func TestListOrphansClassifiesClones(t *testing.T) {
	_, _, svc := orphanFixture()

	report, err := svc.ListOrphans(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, report.Clones, 2)

	byName := map[string]domain.OrphanClone{}
	for _, c := range report.Clones {
		byName[c.CloneName] = c
	}
	restore := byName["vm_prod_restore_backup_vm_prod_20260801"]
	assert.False(t, restore.InUse)
	assert.Empty(t, restore.UsedByVMs)
	assert.Equal(t, "10.0.0.11", restore.MountIP)

	active := byName["clone_active"]
	assert.True(t, active.InUse)
	assert.Equal(t, []string{"web01"}, active.UsedByVMs)
}

// 孤儿快照 = 磁盘快照 - 备份记录，复制引擎前缀的快照排除，
// 同名克隆按命名约定关联上
func TestListOrphansFindsUnrecordedSnapshots(t *testing.T) {
	_, _, svc := orphanFixture()

	report, err := svc.ListOrphans(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, report.Snapshots, 2)

	assert.Equal(t, "backup_vm_prod_20260801", report.Snapshots[0].SnapshotName)
	assert.Equal(t, "vm_prod_restore_backup_vm_prod_20260801", report.Snapshots[0].RelatedClone)
	assert.False(t, report.Snapshots[0].CloneInUse)

	assert.Equal(t, "manual_snap", report.Snapshots[1].SnapshotName)
	assert.Empty(t, report.Snapshots[1].RelatedClone)
}

// 离线节点上的引用探测不到，扫描继续而不是报错
func TestListOrphansSkipsOfflineHost(t *testing.T) {
	_, compute, svc := orphanFixture()
	compute.offline = map[string]bool{"pve2": true}

	report, err := svc.ListOrphans(context.Background(), 1, 1)
	require.NoError(t, err)

	for _, c := range report.Clones {
		assert.False(t, c.InUse, c.CloneName)
	}
}

func TestListOrphansUnknownCluster(t *testing.T) {
	_, _, svc := orphanFixture()

	_, err := svc.ListOrphans(context.Background(), 99, 1)
	assert.Error(t, err)
}

// 卸载逐节点尝试，首个失败后换下一个节点，成功即停止
func TestDeleteOrphanTriesEveryHost(t *testing.T) {
	storage, compute, svc := orphanFixture()
	compute.unmountErrs = map[string]error{"pve1": errors.New("storage busy")}

	state, err := svc.DeleteOrphan(context.Background(), 1, 1, "clone_old", "10.0.0.11")
	require.NoError(t, err)
	assert.Equal(t, domain.OrphanDeleteDone, state)
	assert.Equal(t, []string{"pve2/clone_old"}, compute.unmounted)
	assert.Equal(t, []string{"clone_old"}, storage.deletedVolumes)
}

// 所有节点都卸载失败时放弃，不动存储侧的卷
func TestDeleteOrphanAllHostsFail(t *testing.T) {
	storage, compute, svc := orphanFixture()
	compute.unmountErrs = map[string]error{
		"pve1": errors.New("busy"),
		"pve2": errors.New("busy"),
		"pve3": errors.New("busy"),
	}

	_, err := svc.DeleteOrphan(context.Background(), 1, 1, "clone_old", "10.0.0.11")
	assert.Error(t, err)
	assert.Empty(t, storage.deletedVolumes)
}

// 卸载成功但删除失败是部分失败，显式上报给操作员
func TestDeleteOrphanPartialFailure(t *testing.T) {
	storage, _, svc := orphanFixture()
	storage.volumeDeleteErr = errors.New("volume busy")

	state, err := svc.DeleteOrphan(context.Background(), 1, 1, "clone_old", "10.0.0.11")
	require.Error(t, err)
	assert.Equal(t, domain.OrphanDeletePartial, state)
}

// 快照已不存在时视为删除成功
func TestDeleteOrphanSnapshotIdempotent(t *testing.T) {
	storage, _, svc := orphanFixture()

	require.NoError(t, svc.DeleteOrphanSnapshot(context.Background(), 1, "vm_prod", "manual_snap"))
	assert.Equal(t, []string{"manual_snap"}, storage.deleted)

	require.NoError(t, svc.DeleteOrphanSnapshot(context.Background(), 1, "vm_prod", "manual_snap"))
	assert.Equal(t, []string{"manual_snap"}, storage.deleted)
}
