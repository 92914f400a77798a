// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"intellidocs/pkg/log"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "requestId"

	maxLoggedBody = 4 << 10
)

// RequestID 为每个请求分配 request id，优先沿用请求头中的值。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom 返回当前请求的 request id。
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// RequestLogger 是一个 Gin 中间件，用于记录请求日志。
// 只记录 JSON 请求体，文件上传不会被读入内存。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			requestBody, _ = io.ReadAll(c.Request.Body)
			// 重新设置回 c.Request.Body，以便后续处理函数可以正常读取
			c.Request.Body = io.NopCloser(bytes.NewReader(requestBody))
		}

		c.Next()

		if len(requestBody) > maxLoggedBody {
			requestBody = requestBody[:maxLoggedBody]
		}
		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestId", RequestIDFrom(c),
			"requestBody", string(requestBody),
		)
	}
}
