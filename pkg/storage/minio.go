package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"intellidocs/internal/config"
	"intellidocs/pkg/log"
)

// MinIOStorage 将文件保存在 MinIO 存储桶中，handle 即 object name。
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*MinIOStorage, error) {
	// 1. 初始化 MinIO 客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	// 2. 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}
	return &MinIOStorage{client: client, bucket: cfg.BucketName}, nil
}

func (s *MinIOStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象到 MinIO 失败: %w", err)
	}
	return key, nil
}

func (s *MinIOStorage) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	// GetObject 是惰性的，需要 Stat 才能发现对象不存在
	if _, err := s.client.StatObject(ctx, s.bucket, handle, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, handle)
		}
		return nil, fmt.Errorf("获取 MinIO 对象信息失败: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, handle, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("从 MinIO 获取对象失败: %w", err)
	}
	return obj, nil
}

func (s *MinIOStorage) Remove(ctx context.Context, handle string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, handle, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除 MinIO 对象失败: %w", err)
	}
	return nil
}
