package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireRole 检查用户是否具有给定角色之一。
// 此中间件必须在 AuthMiddleware 之后使用。
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			// AuthMiddleware 未执行，属于路由配置错误
			abort(c, http.StatusInternalServerError, "无法获取用户信息")
			return
		}

		for _, r := range roles {
			if strings.EqualFold(claims.Role, r) {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "权限不足，需要角色: "+strings.Join(roles, "|"))
	}
}
