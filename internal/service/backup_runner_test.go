package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

type runnerFixture struct {
	storage *mockStorage
	compute *mockCompute
	jobs    *mockJobRepo
	backups *mockBackupRepo
	snaps   *mockSnapshotRepo
	volumes *mockVolumeRepo
	runner  BackupRunner
}

func newRunnerFixture() *runnerFixture {
	storage := &mockStorage{lockSupported: true}
	compute := &mockCompute{
		vms: map[string][]domain.VM{
			"pve1/vm_prod_storage": {{ID: 101, Name: "web01", Host: "pve1"}},
			"pve2/vm_prod_storage": {{ID: 102, Name: "web02", Host: "pve2"}},
		},
	}
	jobs := &mockJobRepo{}
	backups := &mockBackupRepo{}
	snaps := &mockSnapshotRepo{}
	mirrors := &mockMirrorRepo{relations: map[string]*domain.SnapMirrorRelation{
		volKey(1, "vm_prod"): {
			RelationUUID:       "rel-1",
			SourceControllerID: 1, SourceVolume: "vm_prod",
			DestControllerID: 2, DestVolume: "vm_prod_dr",
		},
	}}
	clusters := &mockClusterRepo{clusters: map[int64]*domain.Cluster{
		1: {ID: 1, Hosts: []string{"pve1", "pve2"}},
	}}
	volumes := &mockVolumeRepo{enabled: []*domain.EnabledVolume{
		{ControllerID: 1, VolumeName: "vm_prod"},
		{ControllerID: 2, VolumeName: "vm_prod_dr"},
	}}

	store := &mockStore{repos: &domain.Repositories{
		Jobs:      jobs,
		Backups:   backups,
		Snapshots: snaps,
		Mirrors:   mirrors,
		Clusters:  clusters,
		Volumes:   volumes,
	}}
	cfg := Config{Location: time.UTC, Tick: 30 * time.Second}
	return &runnerFixture{
		storage: storage,
		compute: compute,
		jobs:    jobs,
		backups: backups,
		snaps:   snaps,
		volumes: volumes,
		runner:  NewBackupRunner(cfg, store, storage, compute, zap.NewNop()),
	}
}

func backupReq() *domain.BackupRequest {
	return &domain.BackupRequest{
		ScheduleID:     1,
		ScheduleName:   "nightly",
		ClusterID:      1,
		ControllerID:   1,
		VolumeName:     "vm_prod",
		StorageName:    "vm_prod_storage",
		AppAware:       true,
		RetentionCount: 7,
		RetentionUnit:  domain.RetentionDays,
	}
}

// 一次完整备份：每台虚拟机一条记录，跟踪行带上复制目的端
func TestBackupRunCreatesRecordsAndTracking(t *testing.T) {
	f := newRunnerFixture()

	job, err := f.runner.Run(context.Background(), backupReq())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)

	require.Len(t, f.backups.createdRecords, 2)
	rec := f.backups.createdRecords[0]
	assert.True(t, strings.HasPrefix(rec.SnapshotName, "backup_vm_prod_"))
	assert.Equal(t, domain.RetentionDays, rec.RetentionUnit)
	assert.True(t, rec.AppAware)

	require.Len(t, f.snaps.created, 1)
	tracking := f.snaps.created[0]
	assert.True(t, tracking.ExistsOnPrimary)
	assert.Equal(t, int64(2), tracking.SecondaryControllerID)
	assert.Equal(t, "vm_prod_dr", tracking.SecondaryVolume)
	assert.Equal(t, "daily", tracking.ReplicationLabel)

	// 冻结过的虚拟机全部解冻
	assert.ElementsMatch(t, []int{101, 102}, f.compute.frozen)
	assert.ElementsMatch(t, []int{101, 102}, f.compute.thawed)
}

func TestBackupRunExcludesVMs(t *testing.T) {
	f := newRunnerFixture()

	req := backupReq()
	req.ExcludedVMIDs = []int{102}
	_, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.backups.createdRecords, 1)
	assert.Equal(t, "web01", f.backups.createdRecords[0].VM)
}

// 存储快照失败整个作业失败，但已冻结的虚拟机仍然解冻
func TestBackupRunThawsOnSnapshotFailure(t *testing.T) {
	f := newRunnerFixture()
	f.storage.createErr = errors.New("volume offline")

	job, err := f.runner.Run(context.Background(), backupReq())
	require.Error(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)

	assert.Empty(t, f.backups.createdRecords)
	assert.Empty(t, f.snaps.created)
	assert.ElementsMatch(t, []int{101, 102}, f.compute.thawed)
}

// 卷不支持锁定时本次运行静默禁用锁定，不失败
func TestBackupRunDisablesLockWhenUnsupported(t *testing.T) {
	f := newRunnerFixture()
	f.storage.lockSupported = false

	req := backupReq()
	req.LockHours = 72
	job, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)

	require.Len(t, f.storage.createOpts, 1)
	assert.Zero(t, f.storage.createOpts[0].LockHours)
	assert.False(t, f.backups.createdRecords[0].Locked)
}

func TestBackupRunAppliesLockWhenSupported(t *testing.T) {
	f := newRunnerFixture()

	req := backupReq()
	req.LockHours = 72
	_, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.storage.createOpts, 1)
	assert.Equal(t, 72, f.storage.createOpts[0].LockHours)
	assert.True(t, f.backups.createdRecords[0].Locked)
}

// 单台虚拟机冻结失败只降级为 CompletedWithErrors，快照照常执行
func TestBackupRunFreezeFailureDegrades(t *testing.T) {
	f := newRunnerFixture()
	f.compute.freezeErrs = map[int]error{102: errors.New("agent not running")}

	job, err := f.runner.Run(context.Background(), backupReq())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompletedWithErrors, job.Status)

	assert.Len(t, f.backups.createdRecords, 2)
	assert.Equal(t, []int{101}, f.compute.frozen)
	assert.Equal(t, []int{101}, f.compute.thawed)
}

// 离线节点跳过，作业覆盖其余节点
func TestBackupRunSkipsOfflineHost(t *testing.T) {
	f := newRunnerFixture()
	f.compute.offline = map[string]bool{"pve2": true}

	_, err := f.runner.Run(context.Background(), backupReq())
	require.NoError(t, err)

	require.Len(t, f.backups.createdRecords, 1)
	assert.Equal(t, "web01", f.backups.createdRecords[0].VM)
}

// 设置了 Replicate 的请求在入账后触发一次 SnapMirror 传输
func TestBackupRunTriggersReplication(t *testing.T) {
	f := newRunnerFixture()

	req := backupReq()
	req.Replicate = true
	_, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"rel-1"}, f.storage.mirrorUpdates)
}

// 复制要求关系两端的卷都处于启用状态：目的卷停用时不触发更新
func TestBackupRunSkipsReplicationWhenDestDisabled(t *testing.T) {
	f := newRunnerFixture()
	f.volumes.enabled = []*domain.EnabledVolume{
		{ControllerID: 1, VolumeName: "vm_prod"},
	}

	req := backupReq()
	req.Replicate = true
	job, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)

	// 备份本身照常完成，只是跳过复制触发
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Empty(t, f.storage.mirrorUpdates)
}

func TestBackupRunSkipsReplicationWhenSourceDisabled(t *testing.T) {
	f := newRunnerFixture()
	f.volumes.enabled = []*domain.EnabledVolume{
		{ControllerID: 2, VolumeName: "vm_prod_dr"},
	}

	req := backupReq()
	req.Replicate = true
	_, err := f.runner.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, f.storage.mirrorUpdates)
}
