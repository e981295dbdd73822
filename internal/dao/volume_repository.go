package dao

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/model"
)

type volumeRepository struct {
	dao *Dao
}

// NewVolumeRepository 创建 VolumeRepository 实例
func NewVolumeRepository(dao *Dao) domain.VolumeRepository {
	return &volumeRepository{dao: dao}
}

func enabledVolumeToDomain(m *model.EnabledVolume) *domain.EnabledVolume {
	if m == nil {
		return nil
	}
	return &domain.EnabledVolume{
		ID:           m.ID,
		ControllerID: m.ControllerID,
		VolumeName:   m.VolumeName,
		StorageName:  m.StorageName,
		CreatedAt:    m.CreatedAt,
	}
}

func (r *volumeRepository) IsEnabled(ctx context.Context, controllerID int64, volume string) (bool, error) {
	var n int64
	err := r.dao.db.WithContext(ctx).Model(&model.EnabledVolume{}).
		Where("controller_id = ? AND volume_name = ?", controllerID, volume).
		Count(&n).Error
	return n > 0, err
}

func (r *volumeRepository) Get(ctx context.Context, controllerID int64, volume string) (*domain.EnabledVolume, error) {
	var m model.EnabledVolume
	err := r.dao.db.WithContext(ctx).
		Where("controller_id = ? AND volume_name = ?", controllerID, volume).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return enabledVolumeToDomain(&m), nil
}

func (r *volumeRepository) ListEnabled(ctx context.Context, controllerID int64) ([]*domain.EnabledVolume, error) {
	var rows []*model.EnabledVolume
	err := r.dao.db.WithContext(ctx).
		Where("controller_id = ?", controllerID).
		Order("volume_name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.EnabledVolume, 0, len(rows))
	for _, m := range rows {
		out = append(out, enabledVolumeToDomain(m))
	}
	return out, nil
}
