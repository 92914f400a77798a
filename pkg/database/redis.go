package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"intellidocs/internal/config"
	"intellidocs/pkg/log"
)

// InitRedis 初始化 Redis 客户端连接。未配置地址时返回 nil，调用方据此关闭向量缓存。
func InitRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		log.Info("未配置 Redis, 跳过 embedding 缓存")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis client connected successfully")
	return rdb, nil
}
