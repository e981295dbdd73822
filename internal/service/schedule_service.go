package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/metrics"
	"github.com/snapvault/vm-backup-service/pkg/code"
	"github.com/snapvault/vm-backup-service/pkg/workerpool"
)

// ScheduleService defines schedule management and the dispatch tick
// 备份计划管理与调度派发
type ScheduleService interface {
	List(ctx context.Context) ([]*domain.Schedule, error)
	Get(ctx context.Context, id int64) (*domain.Schedule, error)
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
	Delete(ctx context.Context, id int64) error

	// Tick evaluates every enabled schedule against now and dispatches the
	// due ones to the worker pool.
	Tick(ctx context.Context, now time.Time) error
	// StartBackupNow runs one schedule ad hoc and waits for the result.
	StartBackupNow(ctx context.Context, scheduleID int64) (*domain.Job, error)
}

type scheduleService struct {
	cfg    Config
	store  domain.Store
	runner BackupRunner
	pool   *workerpool.Pool
	logger *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(cfg Config, store domain.Store, runner BackupRunner, pool *workerpool.Pool, logger *zap.Logger) ScheduleService {
	return &scheduleService{cfg: cfg, store: store, runner: runner, pool: pool, logger: logger}
}

func (s *scheduleService) List(ctx context.Context) ([]*domain.Schedule, error) {
	return s.store.Repos().Schedules.List(ctx)
}

func (s *scheduleService) Get(ctx context.Context, id int64) (*domain.Schedule, error) {
	sched, err := s.store.Repos().Schedules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, code.ErrorScheduleNotFound
	}
	return sched, nil
}

// validate 建立/编辑共用的一致性检查
// 锁定配置不合法在这里直接拒绝；调度路径上的失效则静默禁用（见 BackupRunner）
func (s *scheduleService) validate(sched *domain.Schedule) error {
	if sched.VolumeName == "" || sched.ControllerID <= 0 || sched.ClusterID <= 0 {
		return code.ErrorScheduleInvalid.WithDetails("volume, controller and cluster are required")
	}
	if sched.RetentionCount <= 0 {
		return code.ErrorScheduleInvalid.WithDetails("retention count must be positive")
	}

	switch sched.Kind {
	case domain.FrequencyHourly:
		if _, ok := sched.Frequency.(domain.HourRange); !ok {
			return code.ErrorScheduleInvalid.WithDetails("hourly schedule requires an hour range")
		}
	case domain.FrequencyDaily, domain.FrequencyWeekly:
		if _, ok := sched.Frequency.(domain.DaysOfWeek); !ok {
			return code.ErrorScheduleInvalid.WithDetails("daily/weekly schedule requires a weekday set")
		}
		if sched.TimeOfDay == nil {
			return code.ErrorScheduleInvalid.WithDetails("daily/weekly schedule requires a time of day")
		}
	default:
		return code.ErrorScheduleInvalid.WithDetails(fmt.Sprintf("unknown frequency kind %q", sched.Kind))
	}

	if sched.LockEnabled && !domain.ValidateLock(sched.LockCount, sched.LockUnit, sched.RetentionCount, sched.RetentionUnit) {
		return code.ErrorScheduleInvalid.WithDetails(
			"lock retention must be positive, shorter than total retention and at most 720 hours")
	}
	return nil
}

func (s *scheduleService) Create(ctx context.Context, sched *domain.Schedule) (*domain.Schedule, error) {
	if err := s.validate(sched); err != nil {
		return nil, err
	}
	if _, err := s.resolveTargets(ctx, sched); err != nil {
		return nil, err
	}
	return s.store.Repos().Schedules.Create(ctx, sched)
}

func (s *scheduleService) Update(ctx context.Context, sched *domain.Schedule) error {
	if err := s.validate(sched); err != nil {
		return err
	}
	old, err := s.store.Repos().Schedules.Get(ctx, sched.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return code.ErrorScheduleNotFound
	}
	if _, err := s.resolveTargets(ctx, sched); err != nil {
		return err
	}
	// 水位线不可通过编辑回拨
	sched.LastRun = old.LastRun
	return s.store.Repos().Schedules.Update(ctx, sched)
}

func (s *scheduleService) Delete(ctx context.Context, id int64) error {
	old, err := s.store.Repos().Schedules.Get(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return code.ErrorScheduleNotFound
	}
	return s.store.Repos().Schedules.Delete(ctx, id)
}

// resolveTargets 解析计划指向的控制器、集群与启用卷
// 任何一项缺失都是配置错误，调度路径上记日志跳过，操作路径上直接返回
func (s *scheduleService) resolveTargets(ctx context.Context, sched *domain.Schedule) (*domain.BackupRequest, error) {
	repos := s.store.Repos()

	controller, err := repos.Clusters.GetController(ctx, sched.ControllerID)
	if err != nil {
		return nil, err
	}
	if controller == nil {
		return nil, code.ErrorControllerNotFound
	}

	cluster, err := repos.Clusters.GetCluster(ctx, sched.ClusterID)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return nil, code.ErrorClusterNotFound
	}

	volume, err := repos.Volumes.Get(ctx, sched.ControllerID, sched.VolumeName)
	if err != nil {
		return nil, err
	}
	if volume == nil {
		return nil, code.ErrorVolumeNotEnabled
	}

	return &domain.BackupRequest{
		ScheduleID:     sched.ID,
		ScheduleName:   sched.Name,
		ClusterID:      sched.ClusterID,
		ControllerID:   sched.ControllerID,
		VolumeName:     sched.VolumeName,
		StorageName:    volume.StorageName,
		AppAware:       sched.AppAware,
		UseVMSnapshot:  sched.UseVMSnapshot,
		CaptureMemory:  sched.CaptureMemory,
		RetentionCount: sched.RetentionCount,
		RetentionUnit:  sched.RetentionUnit,
		LockHours:      sched.LockHours(),
		ExcludedVMIDs:  sched.ExcludedVMIDs,
		Replicate:      sched.Replicate,
	}, nil
}

// Tick 每个轮询周期执行一次：装载启用计划，判定到期，派发并推进水位线
// 单个计划的失败不影响同一周期内的其它计划
func (s *scheduleService) Tick(ctx context.Context, now time.Time) error {
	now = now.In(s.cfg.Location)

	schedules, err := s.store.Repos().Schedules.ListEnabled(ctx)
	if err != nil {
		return err
	}

	for _, sched := range schedules {
		if !sched.DueAt(now, s.cfg.Tick) {
			continue
		}

		req, err := s.resolveTargets(ctx, sched)
		if err != nil {
			// Configuration error: skip this tick, never crash the loop.
			s.logger.Warn("schedule skipped, target resolution failed",
				zap.Int64("scheduleId", sched.ID),
				zap.String("schedule", sched.Name),
				zap.Error(err))
			continue
		}

		name := fmt.Sprintf("backup schedule %d", sched.ID)
		if err := s.pool.Submit(ctx, name, func(runCtx context.Context) error {
			_, runErr := s.runner.Run(runCtx, req)
			return runErr
		}); err != nil {
			s.logger.Error("backup dispatch failed",
				zap.Int64("scheduleId", sched.ID),
				zap.Error(err))
			continue
		}
		metrics.ScheduleDispatches.Inc()

		// Watermark advances only after a successful dispatch; busy-class
		// store contention is retried at the transaction boundary.
		dispatchedAt := now
		if err := s.store.Transaction(ctx, func(r *domain.Repositories) error {
			return r.Schedules.UpdateLastRun(ctx, sched.ID, dispatchedAt)
		}); err != nil {
			s.logger.Error("failed to advance schedule watermark",
				zap.Int64("scheduleId", sched.ID),
				zap.Error(err))
		}
	}
	return nil
}

// StartBackupNow 手动触发一次计划备份，经由同一个工作池执行并同步等待结果
func (s *scheduleService) StartBackupNow(ctx context.Context, scheduleID int64) (*domain.Job, error) {
	sched, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	req, err := s.resolveTargets(ctx, sched)
	if err != nil {
		return nil, err
	}
	req.Manual = true

	done := make(chan struct{})
	var (
		job    *domain.Job
		runErr error
	)
	name := fmt.Sprintf("manual backup schedule %d", scheduleID)
	if err := s.pool.Submit(ctx, name, func(runCtx context.Context) error {
		defer close(done)
		job, runErr = s.runner.Run(runCtx, req)
		return runErr
	}); err != nil {
		return nil, code.ErrorBackupDispatch.WithDetails(err.Error())
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if runErr != nil {
		return job, code.ErrorBackupDispatch.WithDetails(runErr.Error())
	}
	return job, nil
}

var _ ScheduleService = (*scheduleService)(nil)
