// Package metrics 注册进程内的 prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal 按类型与最终状态计数的作业数
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vmbackup",
		Name:      "jobs_total",
		Help:      "Completed jobs by type and final status.",
	}, []string{"type", "status"})

	// SnapshotsTracked 当前跟踪表中的快照行数
	SnapshotsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vmbackup",
		Name:      "snapshots_tracked",
		Help:      "Snapshot tracking rows currently present.",
	})

	// GCDeletedGroups 成功回收的过期备份组
	GCDeletedGroups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vmbackup",
		Name:      "gc_deleted_groups_total",
		Help:      "Expired backup groups fully garbage collected.",
	})

	// GCDemotedGroups 因副本仍在而降级为 secondary-only 的组
	GCDemotedGroups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vmbackup",
		Name:      "gc_demoted_groups_total",
		Help:      "Expired backup groups demoted to secondary-only.",
	})

	// ReconcileWritesSkipped 对账发现无变化而省掉的写入
	ReconcileWritesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vmbackup",
		Name:      "reconcile_writes_skipped_total",
		Help:      "Reconciler passes that found rows already up to date.",
	})

	// ScheduleDispatches 调度器派发的备份次数
	ScheduleDispatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vmbackup",
		Name:      "schedule_dispatches_total",
		Help:      "Backup runs dispatched by the scheduler.",
	})
)
