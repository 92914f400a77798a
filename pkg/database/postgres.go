// Package database 管理 PostgreSQL (pgvector) 与 Redis 连接。
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"intellidocs/internal/config"
	"intellidocs/pkg/log"
)

const retryDelay = 5 * time.Second

// Connect 通过 pgx 的 database/sql 驱动打开 gorm 连接，数据库未就绪时按配置重试。
func Connect(ctx context.Context, cfg config.PostgresConfig) (*gorm.DB, error) {
	connConfig, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres dsn: %w", err)
	}
	sqlDB := stdlib.OpenDB(*connConfig)

	maxRetries := cfg.ConnectRetry
	if maxRetries <= 0 {
		maxRetries = 1
	}
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = sqlDB.PingContext(pingCtx)
		cancel()
		if err == nil {
			break
		}
		log.Warnf("连接数据库失败 (第 %d/%d 次): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				sqlDB.Close()
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to the database after %d attempts: %w", maxRetries, err)
	}

	// 配置连接池
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	log.Info("PostgreSQL database connected successfully")
	return db, nil
}
