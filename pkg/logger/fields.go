package logger

// 统一的日志字段命名常量
// 用于确保整个项目中日志字段命名的一致性，便于日志查询和分析
const (
	// FieldTask 后台任务名称字段
	FieldTask = "task"

	// FieldJob 作业 ID 字段
	FieldJob = "jobId"

	// FieldSchedule 计划 ID 字段
	FieldSchedule = "scheduleId"

	// FieldController 存储控制器 ID 字段
	FieldController = "controllerId"

	// FieldVolume 卷名称字段
	FieldVolume = "volume"

	// FieldSnapshot 快照名称字段
	FieldSnapshot = "snapshot"

	// FieldVM 虚拟机 ID 字段
	FieldVM = "vmId"

	// FieldHost 计算节点字段
	FieldHost = "host"

	// FieldDuration 耗时字段
	FieldDuration = "duration"

	// FieldError 错误信息字段
	FieldError = "error"
)
