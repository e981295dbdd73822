package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

func newRetentionFixture(storage *mockStorage, backups *mockBackupRepo, jobs *mockJobRepo, snaps *mockSnapshotRepo, mirrors *mockMirrorRepo) RetentionService {
	store := &mockStore{repos: &domain.Repositories{
		Backups:   backups,
		Jobs:      jobs,
		Snapshots: snaps,
		Mirrors:   mirrors,
	}}
	cfg := Config{Location: time.UTC, JobRetention: 30 * 24 * time.Hour}
	return NewRetentionService(cfg, store, storage, zap.NewNop())
}

func expiredGroup() *domain.BackupGroup {
	return &domain.BackupGroup{
		JobID:        7,
		ControllerID: 1,
		VolumeName:   "vm_prod",
		SnapshotName: "backup_vm_prod_20260701_020000",
		Records: []*domain.BackupRecord{
			{ID: 1, JobID: 7, VMID: 101, VM: "web-01"},
			{ID: 2, JobID: 7, VMID: 102, VM: "web-02"},
		},
	}
}

// 副本端仍有快照时降级保留：跟踪行翻转，目录记录不删除
func TestRetentionDemotesWhenSecondaryCopyExists(t *testing.T) {
	group := expiredGroup()
	storage := &mockStorage{snapshots: map[string][]string{
		volKey(1, "vm_prod"):    {group.SnapshotName, "other_snap"},
		volKey(2, "vm_prod_dr"): {group.SnapshotName},
	}}
	backups := &mockBackupRepo{expired: []*domain.BackupGroup{group}}
	jobs := &mockJobRepo{}
	snaps := &mockSnapshotRepo{rows: map[string]*domain.TrackedSnapshot{
		trackKey(7, group.SnapshotName): {
			ID: 3, JobID: 7, SnapshotName: group.SnapshotName,
			PrimaryControllerID: 1, PrimaryVolume: "vm_prod",
			ExistsOnPrimary: true,
		},
	}}
	mirrors := &mockMirrorRepo{relations: map[string]*domain.SnapMirrorRelation{
		volKey(1, "vm_prod"): {
			SourceControllerID: 1, SourceVolume: "vm_prod",
			DestControllerID: 2, DestVolume: "vm_prod_dr",
		},
	}}

	svc := newRetentionFixture(storage, backups, jobs, snaps, mirrors)
	require.NoError(t, svc.Run(context.Background(), time.Now()))

	// 主端快照被删除
	assert.Equal(t, []string{group.SnapshotName}, storage.deleted)

	// 跟踪行翻转
	require.Len(t, snaps.updated, 1)
	row := snaps.updated[0]
	assert.False(t, row.ExistsOnPrimary)
	assert.True(t, row.ExistsOnSecondary)
	assert.True(t, row.Replicated)
	assert.Equal(t, int64(2), row.SecondaryControllerID)
	assert.Equal(t, "vm_prod_dr", row.SecondaryVolume)

	// 不触发级联删除
	assert.Empty(t, backups.deletedGroups)
	assert.Empty(t, jobs.deletedJobs)
	assert.Empty(t, jobs.deletedLogs)
	assert.Empty(t, snaps.deleted)
}

// 没有副本时按依赖顺序级联删除，最后一组删掉空作业
func TestRetentionCascadesWhenNoSecondaryCopy(t *testing.T) {
	group := expiredGroup()
	storage := &mockStorage{snapshots: map[string][]string{
		volKey(1, "vm_prod"): {group.SnapshotName},
	}}
	backups := &mockBackupRepo{
		expired:    []*domain.BackupGroup{group},
		countByJob: map[int64]int64{7: 0},
	}
	jobs := &mockJobRepo{}
	snaps := &mockSnapshotRepo{rows: map[string]*domain.TrackedSnapshot{
		trackKey(7, group.SnapshotName): {ID: 3, JobID: 7, SnapshotName: group.SnapshotName},
	}}
	mirrors := &mockMirrorRepo{}

	svc := newRetentionFixture(storage, backups, jobs, snaps, mirrors)
	require.NoError(t, svc.Run(context.Background(), time.Now()))

	assert.Equal(t, []int64{7}, jobs.deletedLogs)
	assert.Equal(t, []int64{7}, jobs.deletedResults)
	assert.Equal(t, []int64{3}, snaps.deleted)
	require.Len(t, backups.deletedGroups, 1)
	assert.Equal(t, []int64{7}, jobs.deletedJobs)
}

// 作业还持有其它组的记录时不删除作业本身
func TestRetentionKeepsJobWithRemainingGroups(t *testing.T) {
	group := expiredGroup()
	storage := &mockStorage{snapshots: map[string][]string{
		volKey(1, "vm_prod"): {group.SnapshotName},
	}}
	backups := &mockBackupRepo{
		expired:    []*domain.BackupGroup{group},
		countByJob: map[int64]int64{7: 2},
	}
	jobs := &mockJobRepo{}
	snaps := &mockSnapshotRepo{}
	mirrors := &mockMirrorRepo{}

	svc := newRetentionFixture(storage, backups, jobs, snaps, mirrors)
	require.NoError(t, svc.Run(context.Background(), time.Now()))

	require.Len(t, backups.deletedGroups, 1)
	assert.Empty(t, jobs.deletedJobs)
}

// 删除复核失败（快照仍在主端）时整组中止，目录保持不动
func TestRetentionAbortsWhenDeleteUnconfirmed(t *testing.T) {
	group := expiredGroup()
	storage := &mockStorage{
		snapshots: map[string][]string{
			volKey(1, "vm_prod"): {group.SnapshotName},
		},
		keepOnDelete: true,
	}
	backups := &mockBackupRepo{expired: []*domain.BackupGroup{group}}
	jobs := &mockJobRepo{}
	snaps := &mockSnapshotRepo{}
	mirrors := &mockMirrorRepo{}

	svc := newRetentionFixture(storage, backups, jobs, snaps, mirrors)
	// 组级失败被隔离，Run 本身不报错
	require.NoError(t, svc.Run(context.Background(), time.Now()))

	assert.Empty(t, backups.deletedGroups)
	assert.Empty(t, jobs.deletedLogs)
	assert.Empty(t, jobs.deletedJobs)
	assert.Empty(t, snaps.deleted)
}

// 主端快照已不存在（幂等删除）时继续走级联
func TestRetentionTreatsMissingSnapshotAsDeleted(t *testing.T) {
	group := expiredGroup()
	storage := &mockStorage{snapshots: map[string][]string{
		volKey(1, "vm_prod"): {"unrelated_snap"},
	}}
	backups := &mockBackupRepo{
		expired:    []*domain.BackupGroup{group},
		countByJob: map[int64]int64{7: 0},
	}
	jobs := &mockJobRepo{}
	snaps := &mockSnapshotRepo{}
	mirrors := &mockMirrorRepo{}

	svc := newRetentionFixture(storage, backups, jobs, snaps, mirrors)
	require.NoError(t, svc.Run(context.Background(), time.Now()))

	require.Len(t, backups.deletedGroups, 1)
	assert.Equal(t, []int64{7}, jobs.deletedJobs)
}

func TestPruneJobs(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)

	jobs := &mockJobRepo{finished: []*domain.Job{
		{ID: 1, Status: domain.JobStatusCompleted, CompletedAt: &old},
		{ID: 2, Status: domain.JobStatusFailed, CompletedAt: &old},
	}}
	backups := &mockBackupRepo{countByJob: map[int64]int64{
		1: 0,
		2: 3, // 仍持有备份记录，跳过
	}}
	storage := &mockStorage{}
	snaps := &mockSnapshotRepo{}
	mirrors := &mockMirrorRepo{}

	svc := newRetentionFixture(storage, backups, jobs, snaps, mirrors)
	require.NoError(t, svc.PruneJobs(context.Background(), now))

	assert.Equal(t, []int64{1}, jobs.deletedJobs)
	assert.Equal(t, []int64{1}, jobs.deletedLogs)
	assert.Equal(t, []int64{1}, jobs.deletedResults)
}

func TestPruneJobsDisabledWhenRetentionZero(t *testing.T) {
	jobs := &mockJobRepo{finished: []*domain.Job{{ID: 1}}}
	store := &mockStore{repos: &domain.Repositories{Jobs: jobs}}
	svc := NewRetentionService(Config{Location: time.UTC}, store, &mockStorage{}, zap.NewNop())

	require.NoError(t, svc.PruneJobs(context.Background(), time.Now()))
	assert.Empty(t, jobs.deletedJobs)
}
