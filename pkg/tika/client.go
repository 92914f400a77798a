// Package tika 提供了一个与 Apache Tika 服务器交互的客户端。
package tika

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"intellidocs/internal/config"
)

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL string
	client    *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(cfg config.TikaConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		serverURL: strings.TrimRight(cfg.ServerURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}
}

// ExtractPages 调用 Tika 的 XHTML 输出，每个 div.page 对应一页；
// 没有分页信息的格式 (例如纯文本) 整体作为一页返回。
func (c *Client) ExtractPages(ctx context.Context, fileReader io.Reader, fileName, contentType string) ([]string, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectMimeType(fileName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", fileReader)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析 Tika 响应失败: %w", err)
	}

	var pages []string
	doc.Find("div.page").Each(func(_ int, s *goquery.Selection) {
		pages = append(pages, s.Text())
	})
	if len(pages) == 0 {
		pages = append(pages, doc.Find("body").Text())
	}
	return pages, nil
}

// detectMimeType 根据文件扩展名判断 Content-Type
func detectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
