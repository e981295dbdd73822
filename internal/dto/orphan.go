package dto

import (
	"github.com/jinzhu/copier"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

// OrphanListRequest 孤儿资源列表请求
type OrphanListRequest struct {
	ClusterID    int64 `json:"clusterId" form:"clusterId" binding:"required" example:"1"`
	ControllerID int64 `json:"controllerId" form:"controllerId" binding:"required" example:"1"`
}

// OrphanCloneDTO 孤儿克隆卷 API 响应对象
type OrphanCloneDTO struct {
	CloneName string   `json:"cloneName"` // 克隆卷名
	MountIP   string   `json:"mountIp"`   // 挂载地址
	InUse     bool     `json:"inUse"`     // 是否仍被虚拟机引用
	UsedByVMs []string `json:"usedByVms"` // 引用的虚拟机
}

// OrphanSnapshotDTO 孤儿快照 API 响应对象
type OrphanSnapshotDTO struct {
	ControllerID int64  `json:"controllerId"` // 存储控制器ID
	VolumeName   string `json:"volumeName"`   // 卷名
	SnapshotName string `json:"snapshotName"` // 快照名
	RelatedClone string `json:"relatedClone"` // 关联克隆卷，可能为空
	CloneInUse   bool   `json:"cloneInUse"`   // 关联克隆是否在用
}

// OrphanReportDTO 孤儿检测报告 API 响应对象
type OrphanReportDTO struct {
	ClusterID int64               `json:"clusterId"` // 计算集群ID
	Clones    []OrphanCloneDTO    `json:"clones"`    // 孤儿克隆卷
	Snapshots []OrphanSnapshotDTO `json:"snapshots"` // 孤儿快照
}

// FromOrphanReport 把领域报告转换为 API 响应对象
func FromOrphanReport(r *domain.OrphanReport) *OrphanReportDTO {
	out := &OrphanReportDTO{ClusterID: r.ClusterID}
	_ = copier.Copy(&out.Clones, r.Clones)
	_ = copier.Copy(&out.Snapshots, r.Snapshots)
	return out
}

// OrphanDeleteRequest 删除孤儿克隆卷的请求参数
type OrphanDeleteRequest struct {
	ClusterID    int64  `json:"clusterId" form:"clusterId" binding:"required" example:"1"`
	ControllerID int64  `json:"controllerId" form:"controllerId" binding:"required" example:"1"`
	CloneName    string `json:"cloneName" form:"cloneName" binding:"required" example:"restore_vm_prod_20260801_020000_ab12cd34"`
	MountIP      string `json:"mountIp" form:"mountIp" binding:"required" example:"10.0.0.10"`
}

// OrphanDeleteDTO 删除孤儿克隆卷的结果
type OrphanDeleteDTO struct {
	State string `json:"state"` // 结束状态 (Deleted, PartialFailure)
}

// OrphanSnapshotDeleteRequest 删除孤儿快照的请求参数
type OrphanSnapshotDeleteRequest struct {
	ControllerID int64  `json:"controllerId" form:"controllerId" binding:"required" example:"1"`
	VolumeName   string `json:"volumeName" form:"volumeName" binding:"required" example:"vm_prod"`
	SnapshotName string `json:"snapshotName" form:"snapshotName" binding:"required" example:"backup_vm_prod_20260801_020000"`
}
