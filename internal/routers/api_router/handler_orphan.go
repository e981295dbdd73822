package api_router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/app"
	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/dto"
	pkgapp "github.com/snapvault/vm-backup-service/pkg/app"
	"github.com/snapvault/vm-backup-service/pkg/code"
)

// OrphanHandler 孤儿资源 API 路由处理器
// 检测只读不删，删除必须由调用方逐个显式触发
type OrphanHandler struct {
	*Handler
}

// NewOrphanHandler 创建 OrphanHandler 实例
func NewOrphanHandler(a *app.App) *OrphanHandler {
	return &OrphanHandler{Handler: NewHandler(a)}
}

// List 检测并报告孤儿克隆卷与孤儿快照
// @Summary 列出孤儿资源
// @Tags 孤儿资源
// @Produce json
// @Param clusterId query int true "计算集群ID"
// @Param controllerId query int true "存储控制器ID"
// @Success 200 {object} pkgapp.Res{data=dto.OrphanReportDTO} "成功"
// @Router /api/orphans [get]
func (h *OrphanHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.OrphanListRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("OrphanHandler.List.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	report, err := h.App.Services.Orphan.ListOrphans(c.Request.Context(), params.ClusterID, params.ControllerID)
	if err != nil {
		h.App.Logger().Error("OrphanHandler.List err",
			zap.Int64("clusterId", params.ClusterID), zap.Error(err))
		response.ToResponse(codeFor(err))
		return
	}
	response.ToResponse(code.Success.WithData(dto.FromOrphanReport(report)))
}

// DeleteClone 卸载并删除一个孤儿克隆卷
// @Summary 删除孤儿克隆卷
// @Tags 孤儿资源
// @Accept json
// @Produce json
// @Param params body dto.OrphanDeleteRequest true "删除参数"
// @Success 200 {object} pkgapp.Res{data=dto.OrphanDeleteDTO} "成功"
// @Router /api/orphans/clone [delete]
func (h *OrphanHandler) DeleteClone(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.OrphanDeleteRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("OrphanHandler.DeleteClone.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	state, err := h.App.Services.Orphan.DeleteOrphan(c.Request.Context(),
		params.ClusterID, params.ControllerID, params.CloneName, params.MountIP)
	if err != nil {
		h.App.Logger().Error("OrphanHandler.DeleteClone err",
			zap.String("clone", params.CloneName), zap.Error(err))
		if state == domain.OrphanDeletePartial {
			response.ToResponse(code.ErrorOrphanDeletePart.WithDetails(err.Error()).
				WithData(&dto.OrphanDeleteDTO{State: string(state)}))
			return
		}
		response.ToResponse(code.ErrorOrphanDelete.WithDetails(err.Error()))
		return
	}
	response.ToResponse(code.Success.WithData(&dto.OrphanDeleteDTO{State: string(state)}))
}

// DeleteSnapshot 删除一个孤儿快照
// @Summary 删除孤儿快照
// @Tags 孤儿资源
// @Accept json
// @Produce json
// @Param params body dto.OrphanSnapshotDeleteRequest true "删除参数"
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/orphans/snapshot [delete]
func (h *OrphanHandler) DeleteSnapshot(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.OrphanSnapshotDeleteRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("OrphanHandler.DeleteSnapshot.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	err := h.App.Services.Orphan.DeleteOrphanSnapshot(c.Request.Context(),
		params.ControllerID, params.VolumeName, params.SnapshotName)
	if err != nil {
		h.App.Logger().Error("OrphanHandler.DeleteSnapshot err",
			zap.String("volume", params.VolumeName),
			zap.String("snapshot", params.SnapshotName),
			zap.Error(err))
		response.ToResponse(codeFor(err))
		return
	}
	response.ToResponse(code.Success)
}
