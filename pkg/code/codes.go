package code

// 全局状态码注册表
var (
	Success = NewSuss(200, "success")

	ErrorInvalidParams      = NewError(400, "invalid request parameters")
	ErrorNotFound           = NewError(404, "resource not found")
	ErrorInternal           = NewError(500, "internal server error")
	ErrorScheduleNotFound   = NewError(10001, "backup schedule not found")
	ErrorScheduleInvalid    = NewError(10002, "backup schedule configuration invalid")
	ErrorControllerNotFound = NewError(10003, "storage controller not found")
	ErrorClusterNotFound    = NewError(10004, "compute cluster not found")
	ErrorVolumeNotEnabled   = NewError(10005, "volume is not enabled for backup")
	ErrorBackupDispatch     = NewError(10006, "failed to dispatch backup job")
	ErrorRestoreFailed      = NewError(10007, "restore operation failed")
	ErrorOrphanDelete       = NewError(10008, "orphan cleanup failed")
	ErrorOrphanDeletePart   = NewError(10009, "orphan cleanup partially failed, manual check required")
)
