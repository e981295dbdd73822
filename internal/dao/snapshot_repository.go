package dao

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/model"
)

type snapshotRepository struct {
	dao *Dao
}

// NewSnapshotRepository 创建 SnapshotRepository 实例
func NewSnapshotRepository(dao *Dao) domain.SnapshotRepository {
	return &snapshotRepository{dao: dao}
}

func trackedToDomain(m *model.TrackedSnapshot) *domain.TrackedSnapshot {
	if m == nil {
		return nil
	}
	return &domain.TrackedSnapshot{
		ID:                    m.ID,
		JobID:                 m.JobID,
		SnapshotName:          m.SnapshotName,
		PrimaryControllerID:   m.PrimaryControllerID,
		PrimaryVolume:         m.PrimaryVolume,
		ExistsOnPrimary:       m.ExistsOnPrimary == 1,
		SecondaryControllerID: m.SecondaryControllerID,
		SecondaryVolume:       m.SecondaryVolume,
		ExistsOnSecondary:     m.ExistsOnSecondary == 1,
		ReplicationLabel:      m.ReplicationLabel,
		Replicated:            m.Replicated == 1,
		LastChecked:           m.LastChecked,
	}
}

func trackedToModel(d *domain.TrackedSnapshot) *model.TrackedSnapshot {
	if d == nil {
		return nil
	}
	return &model.TrackedSnapshot{
		ID:                    d.ID,
		JobID:                 d.JobID,
		SnapshotName:          d.SnapshotName,
		PrimaryControllerID:   d.PrimaryControllerID,
		PrimaryVolume:         d.PrimaryVolume,
		ExistsOnPrimary:       boolToInt(d.ExistsOnPrimary),
		SecondaryControllerID: d.SecondaryControllerID,
		SecondaryVolume:       d.SecondaryVolume,
		ExistsOnSecondary:     boolToInt(d.ExistsOnSecondary),
		ReplicationLabel:      d.ReplicationLabel,
		Replicated:            boolToInt(d.Replicated),
		LastChecked:           d.LastChecked,
	}
}

func (r *snapshotRepository) GetByJobAndName(ctx context.Context, jobID int64, snapshot string) (*domain.TrackedSnapshot, error) {
	var m model.TrackedSnapshot
	err := r.dao.db.WithContext(ctx).
		Where("job_id = ? AND snapshot_name = ?", jobID, snapshot).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return trackedToDomain(&m), nil
}

func (r *snapshotRepository) Create(ctx context.Context, t *domain.TrackedSnapshot) (*domain.TrackedSnapshot, error) {
	m := trackedToModel(t)
	if err := r.dao.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return trackedToDomain(m), nil
}

func (r *snapshotRepository) Update(ctx context.Context, t *domain.TrackedSnapshot) error {
	m := trackedToModel(t)
	return r.dao.db.WithContext(ctx).Model(&model.TrackedSnapshot{}).
		Where("id = ?", m.ID).
		Select("exists_on_primary", "secondary_controller_id", "secondary_volume",
			"exists_on_secondary", "replication_label", "replicated", "last_checked").
		Updates(m).Error
}

func (r *snapshotRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.db.WithContext(ctx).Delete(&model.TrackedSnapshot{}, id).Error
}
