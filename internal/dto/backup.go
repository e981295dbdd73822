package dto

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

// BackupNowRequest 立即执行一次计划备份的请求参数
type BackupNowRequest struct {
	ScheduleID int64 `json:"scheduleId" form:"scheduleId" binding:"required" example:"1"`
}

// JobDTO 作业 API 响应对象
type JobDTO struct {
	ID          int64      `json:"id"`          // 作业ID
	Type        string     `json:"type"`        // 作业类型 (Backup, Restore)
	Entity      string     `json:"entity"`      // 作业对象描述
	Status      string     `json:"status"`      // 作业状态
	Error       string     `json:"error"`       // 失败原因
	StartedAt   time.Time  `json:"startedAt"`   // 开始时间
	CompletedAt *time.Time `json:"completedAt"` // 结束时间
}

// FromJob 把领域作业转换为 API 响应对象
func FromJob(j *domain.Job) *JobDTO {
	out := &JobDTO{}
	_ = copier.Copy(out, j)
	out.Type = string(j.Type)
	out.Status = string(j.Status)
	return out
}

// RestorePointListRequest 恢复点列表请求
type RestorePointListRequest struct {
	ControllerID int64  `json:"controllerId" form:"controllerId" binding:"required" example:"1"`
	VolumeName   string `json:"volumeName" form:"volumeName" binding:"required" example:"vm_prod"`
}

// RestorePointDTO 恢复点 API 响应对象
type RestorePointDTO struct {
	JobID         int64     `json:"jobId"`         // 来源作业ID
	ControllerID  int64     `json:"controllerId"`  // 存储控制器ID
	VolumeName    string    `json:"volumeName"`    // 卷名
	SnapshotName  string    `json:"snapshotName"`  // 快照名
	Timestamp     time.Time `json:"timestamp"`     // 备份时间
	VMs           []string  `json:"vms"`           // 包含的虚拟机
	SecondaryOnly bool      `json:"secondaryOnly"` // 仅副本端可用
	Replicated    bool      `json:"replicated"`    // 已复制到副本端
}

// FromRestorePoints 批量转换恢复点
func FromRestorePoints(list []*domain.RestorePoint) []*RestorePointDTO {
	out := make([]*RestorePointDTO, 0, len(list))
	for _, p := range list {
		d := &RestorePointDTO{}
		_ = copier.Copy(d, p)
		out = append(out, d)
	}
	return out
}

// RestoreRequest 执行恢复的请求参数
type RestoreRequest struct {
	ClusterID    int64  `json:"clusterId" form:"clusterId" binding:"required" example:"1"`
	ControllerID int64  `json:"controllerId" form:"controllerId" binding:"required" example:"1"`
	VolumeName   string `json:"volumeName" form:"volumeName" binding:"required" example:"vm_prod"`
	SnapshotName string `json:"snapshotName" form:"snapshotName" binding:"required" example:"backup_vm_prod_20260801_020000"`
	TargetHost   string `json:"targetHost" form:"targetHost"`
}

// ToDomain 把请求参数转换为领域恢复请求
func (r *RestoreRequest) ToDomain() *domain.RestoreRequest {
	req := &domain.RestoreRequest{}
	_ = copier.Copy(req, r)
	return req
}

// RestoreResultDTO 恢复结果 API 响应对象
type RestoreResultDTO struct {
	JobID     int64  `json:"jobId"`     // 作业ID
	CloneName string `json:"cloneName"` // 克隆卷名
	MountPath string `json:"mountPath"` // 导出路径
	Host      string `json:"host"`      // 挂载节点
}

// FromRestoreResult 把领域恢复结果转换为 API 响应对象
func FromRestoreResult(r *domain.RestoreResult) *RestoreResultDTO {
	out := &RestoreResultDTO{}
	_ = copier.Copy(out, r)
	return out
}
