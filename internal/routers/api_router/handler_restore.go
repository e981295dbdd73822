package api_router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/app"
	"github.com/snapvault/vm-backup-service/internal/dto"
	pkgapp "github.com/snapvault/vm-backup-service/pkg/app"
	"github.com/snapvault/vm-backup-service/pkg/code"
)

// RestoreHandler 恢复 API 路由处理器
type RestoreHandler struct {
	*Handler
}

// NewRestoreHandler 创建 RestoreHandler 实例
func NewRestoreHandler(a *app.App) *RestoreHandler {
	return &RestoreHandler{Handler: NewHandler(a)}
}

// ListRestorePoints 列出卷的可恢复时间点
// @Summary 列出恢复点
// @Tags 恢复
// @Produce json
// @Param controllerId query int true "存储控制器ID"
// @Param volumeName query string true "卷名"
// @Success 200 {object} pkgapp.Res{data=[]dto.RestorePointDTO} "成功"
// @Router /api/restore-points [get]
func (h *RestoreHandler) ListRestorePoints(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.RestorePointListRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("RestoreHandler.ListRestorePoints.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	points, err := h.App.Services.Restore.ListRestorePoints(c.Request.Context(), params.ControllerID, params.VolumeName)
	if err != nil {
		h.App.Logger().Error("RestoreHandler.ListRestorePoints err",
			zap.String("volume", params.VolumeName), zap.Error(err))
		response.ToResponse(codeFor(err))
		return
	}
	response.ToResponse(code.Success.WithData(dto.FromRestorePoints(points)))
}

// Run 从恢复点克隆并挂载，同步等待结果
// @Summary 执行恢复
// @Tags 恢复
// @Accept json
// @Produce json
// @Param params body dto.RestoreRequest true "恢复参数"
// @Success 200 {object} pkgapp.Res{data=dto.RestoreResultDTO} "成功"
// @Router /api/restores [post]
func (h *RestoreHandler) Run(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.RestoreRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("RestoreHandler.Run.BindAndValid err", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	result, err := h.App.Services.Restore.RunRestore(c.Request.Context(), params.ToDomain())
	if err != nil {
		h.App.Logger().Error("RestoreHandler.Run err",
			zap.String("volume", params.VolumeName),
			zap.String("snapshot", params.SnapshotName),
			zap.Error(err))
		response.ToResponse(codeFor(err))
		return
	}
	response.ToResponse(code.Success.WithData(dto.FromRestoreResult(result)))
}
