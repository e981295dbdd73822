package dao

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/model"
)

type snapMirrorRepository struct {
	dao *Dao
}

// NewSnapMirrorRepository 创建 SnapMirrorRepository 实例
func NewSnapMirrorRepository(dao *Dao) domain.SnapMirrorRepository {
	return &snapMirrorRepository{dao: dao}
}

func relationToDomain(m *model.SnapMirrorRelation) *domain.SnapMirrorRelation {
	if m == nil {
		return nil
	}
	return &domain.SnapMirrorRelation{
		ID:                 m.ID,
		RelationUUID:       m.RelationUUID,
		SourceControllerID: m.SourceControllerID,
		SourceVolume:       m.SourceVolume,
		DestControllerID:   m.DestControllerID,
		DestVolume:         m.DestVolume,
		PolicyUUID:         m.PolicyUUID,
		UpdatedAt:          m.UpdatedAt,
	}
}

func relationToModel(d *domain.SnapMirrorRelation) *model.SnapMirrorRelation {
	return &model.SnapMirrorRelation{
		RelationUUID:       d.RelationUUID,
		SourceControllerID: d.SourceControllerID,
		SourceVolume:       d.SourceVolume,
		DestControllerID:   d.DestControllerID,
		DestVolume:         d.DestVolume,
		PolicyUUID:         d.PolicyUUID,
	}
}

func policyToDomain(m *model.SnapMirrorPolicy, rets []*model.SnapMirrorRetention) *domain.SnapMirrorPolicy {
	if m == nil {
		return nil
	}
	p := &domain.SnapMirrorPolicy{
		ID:                 m.ID,
		ControllerID:       m.ControllerID,
		UUID:               m.UUID,
		Name:               m.Name,
		Scope:              m.Scope,
		Type:               m.Type,
		NetworkCompression: m.NetworkCompression == 1,
		Throttle:           m.Throttle,
		UpdatedAt:          m.UpdatedAt,
	}
	for _, r := range rets {
		p.Retentions = append(p.Retentions, domain.SnapMirrorRetention{
			ID:       r.ID,
			PolicyID: r.PolicyID,
			Label:    r.Label,
			Count:    r.Count,
			Preserve: r.Preserve == 1,
			Warn:     r.Warn == 1,
			Period:   r.Period,
			Position: r.Position,
		})
	}
	return p
}

func (r *snapMirrorRepository) ListRelations(ctx context.Context) ([]*domain.SnapMirrorRelation, error) {
	var rows []*model.SnapMirrorRelation
	if err := r.dao.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.SnapMirrorRelation, 0, len(rows))
	for _, m := range rows {
		out = append(out, relationToDomain(m))
	}
	return out, nil
}

func (r *snapMirrorRepository) RelationForSourceVolume(ctx context.Context, controllerID int64, volume string) (*domain.SnapMirrorRelation, error) {
	var m model.SnapMirrorRelation
	err := r.dao.db.WithContext(ctx).
		Where("source_controller_id = ? AND source_volume = ?", controllerID, volume).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return relationToDomain(&m), nil
}

// ReplaceRelations 整表替换该源控制器的关系快照
func (r *snapMirrorRepository) ReplaceRelations(ctx context.Context, controllerID int64, relations []domain.SnapMirrorRelation) error {
	return r.dao.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_controller_id = ?", controllerID).
			Delete(&model.SnapMirrorRelation{}).Error; err != nil {
			return err
		}
		for i := range relations {
			if err := tx.Create(relationToModel(&relations[i])).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *snapMirrorRepository) GetPolicy(ctx context.Context, controllerID int64, policyUUID string) (*domain.SnapMirrorPolicy, error) {
	var m model.SnapMirrorPolicy
	err := r.dao.db.WithContext(ctx).
		Where("controller_id = ? AND uuid = ?", controllerID, policyUUID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var rets []*model.SnapMirrorRetention
	err = r.dao.db.WithContext(ctx).
		Where("policy_id = ?", m.ID).
		Order("position").
		Find(&rets).Error
	if err != nil {
		return nil, err
	}
	return policyToDomain(&m, rets), nil
}

// SavePolicy 先删后建，策略行与保留规则行一并替换
func (r *snapMirrorRepository) SavePolicy(ctx context.Context, p *domain.SnapMirrorPolicy) error {
	return r.dao.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old model.SnapMirrorPolicy
		err := tx.Where("controller_id = ? AND uuid = ?", p.ControllerID, p.UUID).
			First(&old).Error
		switch {
		case err == nil:
			if err := tx.Where("policy_id = ?", old.ID).
				Delete(&model.SnapMirrorRetention{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.SnapMirrorPolicy{}, old.ID).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 首次缓存
		default:
			return err
		}

		m := &model.SnapMirrorPolicy{
			ControllerID:       p.ControllerID,
			UUID:               p.UUID,
			Name:               p.Name,
			Scope:              p.Scope,
			Type:               p.Type,
			NetworkCompression: boolToInt(p.NetworkCompression),
			Throttle:           p.Throttle,
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		for i, ret := range p.Retentions {
			row := &model.SnapMirrorRetention{
				PolicyID: m.ID,
				Label:    ret.Label,
				Count:    ret.Count,
				Preserve: boolToInt(ret.Preserve),
				Warn:     boolToInt(ret.Warn),
				Period:   ret.Period,
				Position: i,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
