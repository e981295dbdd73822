// Package dto 定义数据传输对象（请求参数和响应结构体）
package dto

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

// ScheduleRequest 创建/编辑备份计划的请求参数
type ScheduleRequest struct {
	ID           int64  `json:"id" form:"id"`
	Name         string `json:"name" form:"name" binding:"required" example:"prod-daily"`
	ClusterID    int64  `json:"clusterId" form:"clusterId" binding:"required" example:"1"`
	ControllerID int64  `json:"controllerId" form:"controllerId" binding:"required" example:"1"`
	VolumeName   string `json:"volumeName" form:"volumeName" binding:"required" example:"vm_prod"`

	Kind string `json:"kind" form:"kind" binding:"required,oneof=Hourly Daily Weekly" example:"Daily"`
	// Frequency Hourly 计划为 "start-end" 小时区间，Daily/Weekly 为星期集合 "1,3,5"
	Frequency string `json:"frequency" form:"frequency" example:"8-20"`
	// TimeOfDay Daily/Weekly 计划的执行时刻 "15:04"
	TimeOfDay string `json:"timeOfDay" form:"timeOfDay" example:"02:30"`

	RetentionCount int    `json:"retentionCount" form:"retentionCount" binding:"required,min=1" example:"7"`
	RetentionUnit  string `json:"retentionUnit" form:"retentionUnit" binding:"required,oneof=Hours Days Weeks" example:"Days"`

	AppAware      bool   `json:"appAware" form:"appAware"`
	UseVMSnapshot bool   `json:"useVmSnapshot" form:"useVmSnapshot"`
	CaptureMemory bool   `json:"captureMemory" form:"captureMemory"`
	ExcludedVMIDs []int  `json:"excludedVmIds" form:"excludedVmIds"`
	Replicate     bool   `json:"replicate" form:"replicate"`
	LockEnabled   bool   `json:"lockEnabled" form:"lockEnabled"`
	LockCount     int    `json:"lockCount" form:"lockCount"`
	LockUnit      string `json:"lockUnit" form:"lockUnit" binding:"omitempty,oneof=Hours Days Weeks"`
	Enabled       bool   `json:"enabled" form:"enabled"`
}

// ScheduleDTO 备份计划 API 响应对象
type ScheduleDTO struct {
	ID             int64     `json:"id"`             // 计划ID
	Name           string    `json:"name"`           // 计划名称
	ClusterID      int64     `json:"clusterId"`      // 计算集群ID
	ControllerID   int64     `json:"controllerId"`   // 存储控制器ID
	VolumeName     string    `json:"volumeName"`     // 目标卷
	Kind           string    `json:"kind"`           // 频率类型 (Hourly, Daily, Weekly)
	Frequency      string    `json:"frequency"`      // 频率载荷
	TimeOfDay      string    `json:"timeOfDay"`      // 执行时刻，Hourly 计划为空
	RetentionCount int       `json:"retentionCount"` // 保留数量
	RetentionUnit  string    `json:"retentionUnit"`  // 保留单位
	AppAware       bool      `json:"appAware"`       // 应用一致性备份
	UseVMSnapshot  bool      `json:"useVmSnapshot"`  // 附带虚拟机快照
	CaptureMemory  bool      `json:"captureMemory"`  // 快照包含内存
	ExcludedVMIDs  []int     `json:"excludedVmIds"`  // 排除的虚拟机
	Replicate      bool      `json:"replicate"`      // 完成后触发复制
	LockEnabled    bool      `json:"lockEnabled"`    // 申请快照锁定
	LockCount      int       `json:"lockCount"`      // 锁定数量
	LockUnit       string    `json:"lockUnit"`       // 锁定单位
	LastRun        time.Time `json:"lastRun"`        // 最近派发水位线
	Enabled        bool      `json:"enabled"`        // 是否启用
	CreatedAt      time.Time `json:"createdAt"`      // 创建时间
	UpdatedAt      time.Time `json:"updatedAt"`      // 更新时间
}

// ToDomain 把请求参数转换为领域计划，频率与时刻在这里解析校验
func (r *ScheduleRequest) ToDomain() (*domain.Schedule, error) {
	kind := domain.FrequencyKind(r.Kind)
	freq, err := domain.ParseFrequency(kind, r.Frequency)
	if err != nil {
		return nil, err
	}

	s := &domain.Schedule{}
	if err := copier.Copy(s, r); err != nil {
		return nil, err
	}
	s.Kind = kind
	s.Frequency = freq
	s.RetentionUnit = domain.RetentionUnit(r.RetentionUnit)
	s.LockUnit = domain.ParseRetentionUnit(r.LockUnit)

	if r.TimeOfDay != "" {
		tod, err := domain.ParseTimeOfDay(r.TimeOfDay)
		if err != nil {
			return nil, err
		}
		s.TimeOfDay = &tod
	}
	return s, nil
}

// FromSchedule 把领域计划转换为 API 响应对象
func FromSchedule(s *domain.Schedule) *ScheduleDTO {
	out := &ScheduleDTO{}
	_ = copier.Copy(out, s)
	out.Kind = string(s.Kind)
	out.Frequency = s.Frequency.Payload()
	out.RetentionUnit = string(s.RetentionUnit)
	out.LockUnit = string(s.LockUnit)
	if s.TimeOfDay != nil {
		out.TimeOfDay = s.TimeOfDay.String()
	}
	return out
}

// FromSchedules 批量转换
func FromSchedules(list []*domain.Schedule) []*ScheduleDTO {
	out := make([]*ScheduleDTO, 0, len(list))
	for _, s := range list {
		out = append(out, FromSchedule(s))
	}
	return out
}
