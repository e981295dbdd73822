package task

import (
	"context"
	"time"

	"github.com/snapvault/vm-backup-service/internal/app"
)

// ScheduleTask evaluates backup schedules on every tick
type ScheduleTask struct {
	app      *app.App
	interval time.Duration
}

// Name returns the task name
func (t *ScheduleTask) Name() string {
	return "BackupSchedule"
}

// LoopInterval returns the execution interval
func (t *ScheduleTask) LoopInterval() time.Duration {
	return t.interval
}

// IsStartupRun returns whether to run on startup
// 到期判定依赖整点/窗口语义，启动即跑会错判，只按节拍执行
func (t *ScheduleTask) IsStartupRun() bool {
	return false
}

// Run dispatches due schedules
func (t *ScheduleTask) Run(ctx context.Context) error {
	return t.app.Services.Schedule.Tick(ctx, time.Now())
}

// NewScheduleTask creates a new ScheduleTask instance
func NewScheduleTask(appContainer *app.App) (Task, error) {
	return &ScheduleTask{
		app:      appContainer,
		interval: appContainer.Config().GetScheduleInterval(),
	}, nil
}

// init registers the schedule task
func init() {
	RegisterWithApp(func(appContainer *app.App) (Task, error) {
		return NewScheduleTask(appContainer)
	})
}
