package handler

import (
	"context"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"intellidocs/internal/middleware"
	"intellidocs/internal/model"
	"intellidocs/internal/service"
	"intellidocs/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

const (
	defaultStatusPoll = time.Second
	wsWriteTimeout    = 5 * time.Second
)

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService   service.DocumentService
	pollInterval time.Duration
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService, pollInterval: defaultStatusPoll}
}

// Upload 处理 multipart 上传，返回 PENDING_PROCESSING 状态的文档，不等待处理完成。
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "缺少上传文件字段 file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
			mimeType = byExt
		}
	}

	doc, err := h.docService.Upload(c.Request.Context(), service.UploadInput{
		FileName:       fh.Filename,
		Size:           fh.Size,
		MimeType:       mimeType,
		Reader:         f,
		Category:       c.PostForm("category"),
		Tags:           splitTags(c.PostForm("tags")),
		OrganizationID: claims.OrganizationID,
		UploaderID:     claims.UserID,
		RequestID:      middleware.RequestIDFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	log.Infof("[DocumentHandler] 文件上传成功, documentId: %d, fileName: %s", doc.ID, doc.FileName)
	respondOK(c, "上传成功, 文档正在后台处理", doc)
}

// List 处理 GET /api/v1/documents?skip=&limit=。
func (h *DocumentHandler) List(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	skip, err1 := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, err2 := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err1 != nil || err2 != nil {
		badRequest(c, "skip 与 limit 必须为整数")
		return
	}

	docs, err := h.docService.List(c.Request.Context(), claims.OrganizationID, skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "获取文档列表成功", docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	id, ok := documentID(c)
	if !ok {
		return
	}
	doc, err := h.docService.Get(c.Request.Context(), id, claims.OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", doc)
}

// Delete 删除文档及其全部分块。
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	id, ok := documentID(c)
	if !ok {
		return
	}
	if err := h.docService.Delete(c.Request.Context(), id, claims.OrganizationID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "删除成功", nil)
}

type statusEvent struct {
	DocumentID uint                 `json:"documentId"`
	Status     model.DocumentStatus `json:"status"`
}

// StatusStream 通过 WebSocket 推送文档状态变化，到达终态后关闭连接。
func (h *DocumentHandler) StatusStream(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	id, ok := documentID(c)
	if !ok {
		return
	}
	// 升级前先确认文档存在，这样 404 仍然是普通的 HTTP 响应
	doc, err := h.docService.Get(c.Request.Context(), id, claims.OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	// 读循环只用于感知客户端断开
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var last model.DocumentStatus
	for {
		if doc.Status != last {
			last = doc.Status
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(statusEvent{DocumentID: doc.ID, Status: doc.Status}); err != nil {
				log.Warnf("[DocumentHandler] 推送状态失败, documentId: %d, error: %v", id, err)
				return
			}
		}
		if last.IsTerminal() {
			closeWS(conn, websocket.CloseNormalClosure, string(last))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		doc, err = h.docService.Get(ctx, id, claims.OrganizationID)
		if err != nil {
			if ctx.Err() == nil {
				closeWS(conn, websocket.CloseGoingAway, "document no longer available")
			}
			return
		}
	}
}

func closeWS(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}

func documentID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "无效的文档 ID")
		return 0, false
	}
	return uint(id), true
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
