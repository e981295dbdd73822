package task

import (
	"context"
	"time"

	"github.com/snapvault/vm-backup-service/internal/app"
)

// SnapshotReconcileTask refreshes snapshot tracking rows against storage
type SnapshotReconcileTask struct {
	app      *app.App
	interval time.Duration
}

// Name returns the task name
func (t *SnapshotReconcileTask) Name() string {
	return "SnapshotReconcile"
}

// LoopInterval returns the execution interval
func (t *SnapshotReconcileTask) LoopInterval() time.Duration {
	return t.interval
}

// IsStartupRun returns whether to run on startup
func (t *SnapshotReconcileTask) IsStartupRun() bool {
	return true
}

// Run reconciles tracking rows for every replication relation
func (t *SnapshotReconcileTask) Run(ctx context.Context) error {
	return t.app.Services.SnapshotReconcile.Run(ctx)
}

// NewSnapshotReconcileTask creates a new SnapshotReconcileTask instance
func NewSnapshotReconcileTask(appContainer *app.App) (Task, error) {
	return &SnapshotReconcileTask{
		app:      appContainer,
		interval: appContainer.Config().GetReconcileInterval(),
	}, nil
}

// init registers the snapshot reconcile task
func init() {
	RegisterWithApp(func(appContainer *app.App) (Task, error) {
		return NewSnapshotReconcileTask(appContainer)
	})
}
