package dao

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/model"
)

type scheduleRepository struct {
	dao *Dao
}

// NewScheduleRepository 创建 ScheduleRepository 实例
func NewScheduleRepository(dao *Dao) domain.ScheduleRepository {
	return &scheduleRepository{dao: dao}
}

func scheduleToDomain(m *model.Schedule) (*domain.Schedule, error) {
	if m == nil {
		return nil, nil
	}
	kind := domain.FrequencyKind(m.Kind)
	freq, err := domain.ParseFrequency(kind, m.Frequency)
	if err != nil {
		return nil, errors.Wrapf(err, "schedule %d", m.ID)
	}

	var timeOfDay *domain.TimeOfDay
	if m.TimeOfDay != "" {
		tod, err := domain.ParseTimeOfDay(m.TimeOfDay)
		if err != nil {
			return nil, errors.Wrapf(err, "schedule %d", m.ID)
		}
		timeOfDay = &tod
	}

	return &domain.Schedule{
		ID:             m.ID,
		Name:           m.Name,
		ClusterID:      m.ClusterID,
		ControllerID:   m.ControllerID,
		VolumeName:     m.VolumeName,
		Kind:           kind,
		Frequency:      freq,
		TimeOfDay:      timeOfDay,
		RetentionCount: m.RetentionCount,
		RetentionUnit:  domain.ParseRetentionUnit(m.RetentionUnit),
		AppAware:       m.AppAware == 1,
		UseVMSnapshot:  m.UseVMSnapshot == 1,
		CaptureMemory:  m.CaptureMemory == 1,
		ExcludedVMIDs:  parseIDList(m.ExcludedVMIDs),
		Replicate:      m.Replicate == 1,
		LockEnabled:    m.LockEnabled == 1,
		LockCount:      m.LockCount,
		LockUnit:       domain.ParseRetentionUnit(m.LockUnit),
		LastRun:        m.LastRun,
		Enabled:        m.IsEnabled == 1,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

func scheduleToModel(d *domain.Schedule) *model.Schedule {
	if d == nil {
		return nil
	}
	m := &model.Schedule{
		ID:             d.ID,
		Name:           d.Name,
		ClusterID:      d.ClusterID,
		ControllerID:   d.ControllerID,
		VolumeName:     d.VolumeName,
		Kind:           string(d.Kind),
		RetentionCount: d.RetentionCount,
		RetentionUnit:  string(d.RetentionUnit),
		AppAware:       boolToInt(d.AppAware),
		UseVMSnapshot:  boolToInt(d.UseVMSnapshot),
		CaptureMemory:  boolToInt(d.CaptureMemory),
		ExcludedVMIDs:  formatIDList(d.ExcludedVMIDs),
		Replicate:      boolToInt(d.Replicate),
		LockEnabled:    boolToInt(d.LockEnabled),
		LockCount:      d.LockCount,
		LockUnit:       string(d.LockUnit),
		LastRun:        d.LastRun,
		IsEnabled:      boolToInt(d.Enabled),
	}
	if d.Frequency != nil {
		m.Frequency = d.Frequency.Payload()
	}
	if d.TimeOfDay != nil {
		m.TimeOfDay = d.TimeOfDay.String()
	}
	return m
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func parseIDList(s string) []int {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var ids []int
	for _, p := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}

func formatIDList(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

func (r *scheduleRepository) list(ctx context.Context, enabledOnly bool) ([]*domain.Schedule, error) {
	var rows []*model.Schedule
	q := r.dao.db.WithContext(ctx)
	if enabledOnly {
		q = q.Where("is_enabled = ?", 1)
	}
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Schedule, 0, len(rows))
	for _, m := range rows {
		s, err := scheduleToDomain(m)
		if err != nil {
			// 单条脏数据不拦截整张表的调度
			r.dao.logger.Warn("skip unparsable schedule", zap.Int64("scheduleId", m.ID), zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *scheduleRepository) List(ctx context.Context) ([]*domain.Schedule, error) {
	return r.list(ctx, false)
}

func (r *scheduleRepository) ListEnabled(ctx context.Context) ([]*domain.Schedule, error) {
	return r.list(ctx, true)
}

func (r *scheduleRepository) Get(ctx context.Context, id int64) (*domain.Schedule, error) {
	var m model.Schedule
	if err := r.dao.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return scheduleToDomain(&m)
}

func (r *scheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	m := scheduleToModel(s)
	if err := r.dao.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return scheduleToDomain(m)
}

func (r *scheduleRepository) Update(ctx context.Context, s *domain.Schedule) error {
	m := scheduleToModel(s)
	return r.dao.db.WithContext(ctx).Model(&model.Schedule{}).
		Where("id = ?", m.ID).
		Select("*").Omit("id", "created_at").
		Updates(m).Error
}

func (r *scheduleRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.db.WithContext(ctx).Delete(&model.Schedule{}, id).Error
}

func (r *scheduleRepository) UpdateLastRun(ctx context.Context, id int64, lastRun time.Time) error {
	return r.dao.db.WithContext(ctx).Model(&model.Schedule{}).
		Where("id = ?", id).
		Update("last_run", lastRun).Error
}
