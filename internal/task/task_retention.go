package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/app"
)

// RetentionTask runs expiry GC and job pruning
type RetentionTask struct {
	app      *app.App
	interval time.Duration
}

// Name returns the task name
func (t *RetentionTask) Name() string {
	return "RetentionGC"
}

// LoopInterval returns the execution interval
func (t *RetentionTask) LoopInterval() time.Duration {
	return t.interval
}

// IsStartupRun returns whether to run on startup
func (t *RetentionTask) IsStartupRun() bool {
	return true
}

// Run collects expired backup groups and prunes aged-out jobs
func (t *RetentionTask) Run(ctx context.Context) error {
	now := time.Now()
	if err := t.app.Services.Retention.Run(ctx, now); err != nil {
		return err
	}
	if err := t.app.Services.Retention.PruneJobs(ctx, now); err != nil {
		// 作业清理失败不影响下一轮回收
		t.app.Logger().Warn("job pruning failed", zap.Error(err))
	}
	return nil
}

// NewRetentionTask creates a new RetentionTask instance
func NewRetentionTask(appContainer *app.App) (Task, error) {
	return &RetentionTask{
		app:      appContainer,
		interval: appContainer.Config().GetGCInterval(),
	}, nil
}

// init registers the retention task
func init() {
	RegisterWithApp(func(appContainer *app.App) (Task, error) {
		return NewRetentionTask(appContainer)
	})
}
