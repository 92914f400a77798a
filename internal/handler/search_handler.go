package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"intellidocs/internal/service"
	"intellidocs/pkg/log"
)

// SearchHandler 结构体定义了检索与问答相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
	answerService service.AnswerService
	defaultTopK   int
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService, answerService service.AnswerService, defaultTopK int) *SearchHandler {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &SearchHandler{
		searchService: searchService,
		answerService: answerService,
		defaultTopK:   defaultTopK,
	}
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  *int   `json:"top_k"`
}

type answerRequest struct {
	Query string `json:"query" binding:"required"`
}

// Search 处理 POST /api/v1/search。
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[SearchHandler] 搜索请求参数无效: %v", err)
		badRequest(c, "无效的请求参数: query 不能为空")
		return
	}
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}

	topK := h.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	results, err := h.searchService.Search(c.Request.Context(), req.Query, claims.OrganizationID, topK)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Infof("[SearchHandler] 检索成功, org: %d, 返回 %d 条结果", claims.OrganizationID, len(results))
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Answer 处理 POST /api/v1/search/answer。
func (h *SearchHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数: query 不能为空")
		return
	}
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}

	answer, err := h.answerService.Answer(c.Request.Context(), req.Query, claims.OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}
