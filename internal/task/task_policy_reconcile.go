package task

import (
	"context"
	"time"

	"github.com/snapvault/vm-backup-service/internal/app"
)

// PolicyReconcileTask mirrors storage-side replication policies locally
type PolicyReconcileTask struct {
	app      *app.App
	interval time.Duration
}

// Name returns the task name
func (t *PolicyReconcileTask) Name() string {
	return "PolicyReconcile"
}

// LoopInterval returns the execution interval
func (t *PolicyReconcileTask) LoopInterval() time.Duration {
	return t.interval
}

// IsStartupRun returns whether to run on startup
func (t *PolicyReconcileTask) IsStartupRun() bool {
	return true
}

// Run reconciles every policy referenced by a replication relation
func (t *PolicyReconcileTask) Run(ctx context.Context) error {
	return t.app.Services.PolicyReconcile.Run(ctx)
}

// NewPolicyReconcileTask creates a new PolicyReconcileTask instance
func NewPolicyReconcileTask(appContainer *app.App) (Task, error) {
	return &PolicyReconcileTask{
		app:      appContainer,
		interval: appContainer.Config().GetReconcileInterval(),
	}, nil
}

// init registers the policy reconcile task
func init() {
	RegisterWithApp(func(appContainer *app.App) (Task, error) {
		return NewPolicyReconcileTask(appContainer)
	})
}
