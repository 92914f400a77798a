// Package storage 提供"存入字节、返回可读取句柄"的文件存储抽象，支持 MinIO 与本地磁盘。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"intellidocs/internal/config"
)

// ErrObjectNotFound 表示句柄对应的对象不存在。
var ErrObjectNotFound = errors.New("storage object not found")

// Storage 是文件存储的统一接口。Put 返回的 handle 会被持久化在 Document.FilePath 中。
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Remove(ctx context.Context, handle string) error
}

// New 根据配置创建存储后端。
func New(ctx context.Context, cfg config.StorageConfig, minioCfg config.MinIOConfig) (Storage, error) {
	switch cfg.Type {
	case "minio":
		return NewMinIO(ctx, minioCfg)
	case "local", "":
		return NewLocal(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
