// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"intellidocs/internal/model"
	"intellidocs/pkg/log"
	"intellidocs/pkg/token"
)

// ClaimsKey 是 claims 在 gin.Context 中的键。
const ClaimsKey = "claims"

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，并将 claims 存入 Gin 的上下文中。
// 不属于任何组织的用户无法访问文档与检索接口。
func AuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		// WebSocket 客户端无法设置请求头，允许通过 ?token= 传递
		if authHeader == "" && c.Query("token") != "" {
			authHeader = "Bearer " + c.Query("token")
		}
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "请求未包含授权头")
			return
		}

		// Token 以 "Bearer <token>" 的形式提供
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			abort(c, http.StatusUnauthorized, "无效的授权头格式")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Warnf("[Auth] token 校验失败: %v", err)
			abort(c, http.StatusUnauthorized, "无效或已过期的 token")
			return
		}
		if claims.OrganizationID == 0 {
			abort(c, http.StatusBadRequest, model.ErrNoOrganization.Error())
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom 取出 AuthMiddleware 存入的 claims。
func ClaimsFrom(c *gin.Context) (*token.CustomClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.CustomClaims)
	return claims, ok
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message, "data": nil})
}
