// Package api_router 提供 HTTP API 路由处理器
package api_router

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/snapvault/vm-backup-service/internal/app"
	"github.com/snapvault/vm-backup-service/pkg/code"
)

// Handler 基础 Handler 结构体，封装 App Container
// 所有 API Handler 都应该嵌入此结构体以获得依赖注入能力
type Handler struct {
	App *app.App
}

// NewHandler 创建基础 Handler 实例
func NewHandler(a *app.App) *Handler {
	return &Handler{App: a}
}

// codeFor 把业务层错误映射为响应状态码
// 业务层返回的 *code.Code 原样透传，其余错误归入内部错误
func codeFor(err error) *code.Code {
	var c *code.Code
	if errors.As(err, &c) {
		return c
	}
	return code.ErrorInternal.WithDetails(err.Error())
}

// pathID 解析路径参数 id
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
