package dao

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/model"
)

type jobRepository struct {
	dao *Dao
}

// NewJobRepository 创建 JobRepository 实例
func NewJobRepository(dao *Dao) domain.JobRepository {
	return &jobRepository{dao: dao}
}

func jobToDomain(m *model.Job) *domain.Job {
	if m == nil {
		return nil
	}
	return &domain.Job{
		ID:          m.ID,
		Type:        domain.JobType(m.Type),
		Entity:      m.Entity,
		Status:      domain.JobStatus(m.Status),
		Error:       m.Error,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func jobToModel(d *domain.Job) *model.Job {
	if d == nil {
		return nil
	}
	return &model.Job{
		ID:          d.ID,
		Type:        string(d.Type),
		Entity:      d.Entity,
		Status:      string(d.Status),
		Error:       d.Error,
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
	}
}

func vmResultToDomain(m *model.JobVMResult) *domain.JobVMResult {
	return &domain.JobVMResult{
		ID:                m.ID,
		JobID:             m.JobID,
		VMID:              m.VMID,
		VM:                m.VM,
		SnapshotRequested: m.SnapshotRequested == 1,
		SnapshotAchieved:  m.SnapshotAchieved == 1,
		FreezeAttempted:   m.FreezeAttempted == 1,
		FreezeSucceeded:   m.FreezeSucceeded == 1,
		Error:             m.Error,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
	}
}

func vmResultToModel(d *domain.JobVMResult) *model.JobVMResult {
	return &model.JobVMResult{
		ID:                d.ID,
		JobID:             d.JobID,
		VMID:              d.VMID,
		VM:                d.VM,
		SnapshotRequested: boolToInt(d.SnapshotRequested),
		SnapshotAchieved:  boolToInt(d.SnapshotAchieved),
		FreezeAttempted:   boolToInt(d.FreezeAttempted),
		FreezeSucceeded:   boolToInt(d.FreezeSucceeded),
		Error:             d.Error,
		StartedAt:         d.StartedAt,
		CompletedAt:       d.CompletedAt,
	}
}

func (r *jobRepository) Create(ctx context.Context, j *domain.Job) (*domain.Job, error) {
	m := jobToModel(j)
	if err := r.dao.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return jobToDomain(m), nil
}

func (r *jobRepository) Update(ctx context.Context, j *domain.Job) error {
	m := jobToModel(j)
	return r.dao.db.WithContext(ctx).Model(&model.Job{}).
		Where("id = ?", m.ID).
		Select("status", "error", "started_at", "completed_at").
		Updates(m).Error
}

func (r *jobRepository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	var m model.Job
	if err := r.dao.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return jobToDomain(&m), nil
}

func (r *jobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Job, error) {
	var rows []*model.Job
	err := r.dao.db.WithContext(ctx).
		Where("status IN ?", []string{
			string(domain.JobStatusCompleted),
			string(domain.JobStatusCompletedWithErrors),
			string(domain.JobStatusFailed),
		}).
		Where("completed_at IS NOT NULL AND completed_at < ?", cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Job, 0, len(rows))
	for _, m := range rows {
		out = append(out, jobToDomain(m))
	}
	return out, nil
}

func (r *jobRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.db.WithContext(ctx).Delete(&model.Job{}, id).Error
}

func (r *jobRepository) CreateVMResult(ctx context.Context, res *domain.JobVMResult) (*domain.JobVMResult, error) {
	m := vmResultToModel(res)
	if err := r.dao.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return vmResultToDomain(m), nil
}

func (r *jobRepository) UpdateVMResult(ctx context.Context, res *domain.JobVMResult) error {
	m := vmResultToModel(res)
	return r.dao.db.WithContext(ctx).Model(&model.JobVMResult{}).
		Where("id = ?", m.ID).
		Select("snapshot_requested", "snapshot_achieved", "freeze_attempted",
			"freeze_succeeded", "error", "completed_at").
		Updates(m).Error
}

func (r *jobRepository) AddVMLog(ctx context.Context, l *domain.JobVMLog) error {
	m := &model.JobVMLog{
		ResultID: l.ResultID,
		Level:    l.Level,
		Message:  l.Message,
		LoggedAt: l.LoggedAt,
	}
	return r.dao.db.WithContext(ctx).Create(m).Error
}

// DeleteVMLogsByJob 日志挂在 result 下，先查 result 再清日志
func (r *jobRepository) DeleteVMLogsByJob(ctx context.Context, jobID int64) error {
	sub := r.dao.db.WithContext(ctx).Model(&model.JobVMResult{}).
		Select("id").Where("job_id = ?", jobID)
	return r.dao.db.WithContext(ctx).
		Where("result_id IN (?)", sub).
		Delete(&model.JobVMLog{}).Error
}

func (r *jobRepository) DeleteVMResultsByJob(ctx context.Context, jobID int64) error {
	return r.dao.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Delete(&model.JobVMResult{}).Error
}
