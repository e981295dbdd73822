package dao

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/model"
)

type backupRecordRepository struct {
	dao *Dao
}

// NewBackupRecordRepository 创建 BackupRecordRepository 实例
func NewBackupRecordRepository(dao *Dao) domain.BackupRecordRepository {
	return &backupRecordRepository{dao: dao}
}

func backupToDomain(m *model.BackupRecord) *domain.BackupRecord {
	if m == nil {
		return nil
	}
	return &domain.BackupRecord{
		ID:             m.ID,
		JobID:          m.JobID,
		ControllerID:   m.ControllerID,
		VolumeName:     m.VolumeName,
		SnapshotName:   m.SnapshotName,
		VMID:           m.VMID,
		VM:             m.VM,
		RetentionCount: m.RetentionCount,
		RetentionUnit:  domain.ParseRetentionUnit(m.RetentionUnit),
		Locked:         m.Locked == 1,
		AppAware:       m.AppAware == 1,
		UsedVMSnapshot: m.UsedVMSnapshot == 1,
		Timestamp:      m.Timestamp,
	}
}

func backupToModel(d *domain.BackupRecord) *model.BackupRecord {
	if d == nil {
		return nil
	}
	return &model.BackupRecord{
		ID:             d.ID,
		JobID:          d.JobID,
		ControllerID:   d.ControllerID,
		VolumeName:     d.VolumeName,
		SnapshotName:   d.SnapshotName,
		VMID:           d.VMID,
		VM:             d.VM,
		RetentionCount: d.RetentionCount,
		RetentionUnit:  string(d.RetentionUnit),
		Locked:         boolToInt(d.Locked),
		AppAware:       boolToInt(d.AppAware),
		UsedVMSnapshot: boolToInt(d.UsedVMSnapshot),
		Timestamp:      d.Timestamp,
	}
}

type groupKey struct {
	jobID        int64
	controllerID int64
	volume       string
	snapshot     string
}

// groupRecords 按 (job, controller, volume, snapshot) 聚合，保持首次出现顺序
func groupRecords(rows []*model.BackupRecord) []*domain.BackupGroup {
	index := make(map[groupKey]*domain.BackupGroup)
	var order []groupKey
	for _, m := range rows {
		k := groupKey{m.JobID, m.ControllerID, m.VolumeName, m.SnapshotName}
		g, ok := index[k]
		if !ok {
			g = &domain.BackupGroup{
				JobID:        m.JobID,
				ControllerID: m.ControllerID,
				VolumeName:   m.VolumeName,
				SnapshotName: m.SnapshotName,
			}
			index[k] = g
			order = append(order, k)
		}
		g.Records = append(g.Records, backupToDomain(m))
	}
	out := make([]*domain.BackupGroup, 0, len(order))
	for _, k := range order {
		out = append(out, index[k])
	}
	return out
}

func (r *backupRecordRepository) Create(ctx context.Context, rec *domain.BackupRecord) (*domain.BackupRecord, error) {
	m := backupToModel(rec)
	if err := r.dao.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return backupToDomain(m), nil
}

// ListExpiredGroups 粗筛交给 SQL（最短保留单位为 1 小时），精确的按单位
// 折算在 Go 侧完成，同组记录共享保留配置，任一条过期即整组过期
func (r *backupRecordRepository) ListExpiredGroups(ctx context.Context, now time.Time) ([]*domain.BackupGroup, error) {
	var rows []*model.BackupRecord
	err := r.dao.db.WithContext(ctx).
		Where("timestamp < ?", now.Add(-time.Hour)).
		Order("job_id, controller_id, volume_name, snapshot_name, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	groups := groupRecords(rows)
	out := make([]*domain.BackupGroup, 0, len(groups))
	for _, g := range groups {
		for _, rec := range g.Records {
			if rec.Expired(now) {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

func (r *backupRecordRepository) ListByVolume(ctx context.Context, controllerID int64, volume string) ([]*domain.BackupRecord, error) {
	var rows []*model.BackupRecord
	err := r.dao.db.WithContext(ctx).
		Where("controller_id = ? AND volume_name = ?", controllerID, volume).
		Order("timestamp desc, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.BackupRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, backupToDomain(m))
	}
	return out, nil
}

func (r *backupRecordRepository) ListGroupsByVolume(ctx context.Context, controllerID int64, volume string) ([]*domain.BackupGroup, error) {
	var rows []*model.BackupRecord
	err := r.dao.db.WithContext(ctx).
		Where("controller_id = ? AND volume_name = ?", controllerID, volume).
		Order("timestamp desc, job_id, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return groupRecords(rows), nil
}

func (r *backupRecordRepository) FindBySourceSnapshot(ctx context.Context, volume, snapshot string) (*domain.BackupRecord, error) {
	var m model.BackupRecord
	err := r.dao.db.WithContext(ctx).
		Where("volume_name = ? AND snapshot_name = ?", volume, snapshot).
		Order("id").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return backupToDomain(&m), nil
}

func (r *backupRecordRepository) DeleteGroup(ctx context.Context, g *domain.BackupGroup) error {
	return r.dao.db.WithContext(ctx).
		Where("job_id = ? AND controller_id = ? AND volume_name = ? AND snapshot_name = ?",
			g.JobID, g.ControllerID, g.VolumeName, g.SnapshotName).
		Delete(&model.BackupRecord{}).Error
}

func (r *backupRecordRepository) CountByJob(ctx context.Context, jobID int64) (int64, error) {
	var n int64
	err := r.dao.db.WithContext(ctx).Model(&model.BackupRecord{}).
		Where("job_id = ?", jobID).
		Count(&n).Error
	return n, err
}
