package api_router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/app"
	"github.com/snapvault/vm-backup-service/internal/dto"
	pkgapp "github.com/snapvault/vm-backup-service/pkg/app"
	"github.com/snapvault/vm-backup-service/pkg/code"
)

// ScheduleHandler 备份计划 API 路由处理器
// 使用 App Container 注入依赖，支持统一错误处理
type ScheduleHandler struct {
	*Handler
}

// NewScheduleHandler 创建 ScheduleHandler 实例
func NewScheduleHandler(a *app.App) *ScheduleHandler {
	return &ScheduleHandler{Handler: NewHandler(a)}
}

// List 列出全部备份计划
// @Summary 列出备份计划
// @Tags 备份计划
// @Produce json
// @Success 200 {object} pkgapp.Res{data=[]dto.ScheduleDTO} "成功"
// @Router /api/schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	list, err := h.App.Services.Schedule.List(c.Request.Context())
	if err != nil {
		h.App.Logger().Error("ScheduleHandler.List err", zap.Error(err))
		response.ToResponse(code.ErrorInternal.WithDetails(err.Error()))
		return
	}
	response.ToResponse(code.Success.WithData(dto.FromSchedules(list)))
}

// Get 获取备份计划详情
// @Summary 获取备份计划详情
// @Tags 备份计划
// @Param id path int true "计划ID"
// @Produce json
// @Success 200 {object} pkgapp.Res{data=dto.ScheduleDTO} "成功"
// @Router /api/schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	id, ok := pathID(c)
	if !ok {
		response.ToResponse(code.ErrorInvalidParams)
		return
	}
	sched, err := h.App.Services.Schedule.Get(c.Request.Context(), id)
	if err != nil {
		response.ToResponse(codeFor(err))
		return
	}
	response.ToResponse(code.Success.WithData(dto.FromSchedule(sched)))
}

// CreateOrUpdate 创建或编辑备份计划
// @Summary 创建或编辑备份计划
// @Description 根据请求参数中的 ID 判断是创建新计划还是编辑已有计划
// @Tags 备份计划
// @Accept json
// @Produce json
// @Param params body dto.ScheduleRequest true "计划参数"
// @Success 200 {object} pkgapp.Res{data=dto.ScheduleDTO} "成功"
// @Router /api/schedules [post]
func (h *ScheduleHandler) CreateOrUpdate(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ScheduleRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("ScheduleHandler.CreateOrUpdate.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	sched, err := params.ToDomain()
	if err != nil {
		response.ToResponse(code.ErrorScheduleInvalid.WithDetails(err.Error()))
		return
	}

	ctx := c.Request.Context()

	if params.ID > 0 {
		sched.ID = params.ID
		if err := h.App.Services.Schedule.Update(ctx, sched); err != nil {
			h.App.Logger().Error("ScheduleHandler.CreateOrUpdate.Update err", zap.Error(err))
			response.ToResponse(codeFor(err))
			return
		}
		response.ToResponse(code.Success.WithData(dto.FromSchedule(sched)))
		return
	}

	created, err := h.App.Services.Schedule.Create(ctx, sched)
	if err != nil {
		h.App.Logger().Error("ScheduleHandler.CreateOrUpdate.Create err", zap.Error(err))
		response.ToResponse(codeFor(err))
		return
	}
	response.ToResponse(code.Success.WithData(dto.FromSchedule(created)))
}

// Delete 删除备份计划
// @Summary 删除备份计划
// @Tags 备份计划
// @Param id path int true "计划ID"
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	id, ok := pathID(c)
	if !ok {
		response.ToResponse(code.ErrorInvalidParams)
		return
	}
	if err := h.App.Services.Schedule.Delete(c.Request.Context(), id); err != nil {
		h.App.Logger().Error("ScheduleHandler.Delete err", zap.Int64("id", id), zap.Error(err))
		response.ToResponse(codeFor(err))
		return
	}
	response.ToResponse(code.Success)
}

// BackupNow 立即执行一次计划备份并等待结果
// @Summary 立即备份
// @Tags 备份计划
// @Accept json
// @Produce json
// @Param params body dto.BackupNowRequest true "备份参数"
// @Success 200 {object} pkgapp.Res{data=dto.JobDTO} "成功"
// @Router /api/backups [post]
func (h *ScheduleHandler) BackupNow(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.BackupNowRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("ScheduleHandler.BackupNow.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	job, err := h.App.Services.Schedule.StartBackupNow(c.Request.Context(), params.ScheduleID)
	if err != nil {
		h.App.Logger().Error("ScheduleHandler.BackupNow err",
			zap.Int64("scheduleId", params.ScheduleID), zap.Error(err))
		response.ToResponse(codeFor(err))
		return
	}
	response.ToResponse(code.Success.WithData(dto.FromJob(job)))
}
