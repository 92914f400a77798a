package handler

import (
	"github.com/gin-gonic/gin"

	"intellidocs/internal/middleware"
	"intellidocs/internal/service"
	"intellidocs/pkg/token"
)

// RouterDeps 汇总注册路由所需的依赖。
type RouterDeps struct {
	Mode        string
	JWT         *token.JWTManager
	Documents   service.DocumentService
	Search      service.SearchService
	Answer      service.AnswerService
	DefaultTopK int
}

// NewRouter 创建 Gin 引擎并注册全部路由。
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(), gin.Recovery())

	r.GET("/", Health)

	docHandler := NewDocumentHandler(deps.Documents)
	searchHandler := NewSearchHandler(deps.Search, deps.Answer, deps.DefaultTopK)
	writers := middleware.RequireRole(token.RoleEditor, token.RoleAdmin)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(deps.JWT))
	{
		documents := apiV1.Group("/documents")
		{
			documents.POST("/upload", writers, docHandler.Upload)
			documents.GET("", docHandler.List)
			documents.GET("/:id", docHandler.Get)
			documents.GET("/:id/status/ws", docHandler.StatusStream)
			documents.DELETE("/:id", writers, docHandler.Delete)
		}

		search := apiV1.Group("/search")
		{
			search.POST("", searchHandler.Search)
			search.POST("/answer", searchHandler.Answer)
		}
	}
	return r
}
