// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"intellidocs/internal/middleware"
	"intellidocs/internal/model"
	"intellidocs/pkg/log"
	"intellidocs/pkg/token"
)

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": message, "data": data})
}

// respondError 将领域错误映射为 HTTP 状态码。
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "服务内部错误"
	switch {
	case errors.Is(err, model.ErrNotFound):
		status, message = http.StatusNotFound, "document not found"
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrNoOrganization):
		status, message = http.StatusBadRequest, err.Error()
	default:
		log.Errorw("[Handler] 请求处理失败", "path", c.FullPath(), "requestId", middleware.RequestIDFrom(c), "error", err)
	}
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": message, "data": nil})
}

// claimsOrAbort 取出认证信息，缺失时说明路由未挂载 AuthMiddleware。
func claimsOrAbort(c *gin.Context) (*token.CustomClaims, bool) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
		return nil, false
	}
	return claims, true
}
