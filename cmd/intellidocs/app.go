package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"intellidocs/internal/config"
	"intellidocs/internal/pipeline"
	"intellidocs/internal/repository"
	"intellidocs/pkg/database"
	"intellidocs/pkg/embedding"
	"intellidocs/pkg/es"
	"intellidocs/pkg/extractor"
	"intellidocs/pkg/log"
	"intellidocs/pkg/storage"
	"intellidocs/pkg/tika"
)

// app 持有一个进程内共享的全部依赖。embedding 模型在这里只加载一次。
type app struct {
	cfg       config.Config
	db        *gorm.DB
	docs      repository.DocumentRepository
	orgs      repository.OrganizationRepository
	searcher  repository.ChunkSearcher
	store     storage.Storage
	embedder  embedding.Provider
	mirror    pipeline.ChunkMirror
	processor *pipeline.Processor
	closers   []func() error
}

// buildApp 按配置初始化数据库、缓存、模型、存储、提取器与 ES。
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	// 1. 数据库
	var memRepo *repository.MemoryDocumentRepository
	switch cfg.Database.Driver {
	case "memory":
		memRepo = repository.NewMemoryDocumentRepository()
		a.docs = memRepo
		a.orgs = repository.NewMemoryOrganizationRepository()
		log.Warnf("使用内存存储, 进程退出后数据丢失")
	default:
		db, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		a.db = db
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		if err := database.Migrate(db, cfg.Embedding.Dimensions); err != nil {
			a.Close()
			return nil, err
		}
		a.docs = repository.NewDocumentRepository(db)
		a.orgs = repository.NewOrganizationRepository(db)
	}

	// 2. Redis 与 embedding 模型
	rdb, err := database.InitRedis(ctx, cfg.Database.Redis)
	if err != nil {
		log.Warnf("Redis 不可用, 关闭 embedding 缓存: %v", err)
		rdb = nil
	}
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
	}
	if a.embedder, err = newEmbedder(ctx, cfg, rdb); err != nil {
		a.Close()
		return nil, err
	}

	// 3. 文件存储与提取器
	if a.store, err = storage.New(ctx, cfg.Storage, cfg.MinIO); err != nil {
		a.Close()
		return nil, err
	}
	ext := newExtractor(cfg, a.store)

	// 4. Elasticsearch 镜像
	if cfg.Elasticsearch.Enabled {
		idx, err := es.InitES(ctx, cfg.Elasticsearch, cfg.Embedding.Dimensions)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("初始化 Elasticsearch 失败: %w", err)
		}
		a.mirror = idx
		if cfg.Retrieval.Backend == "elasticsearch" {
			a.searcher = repository.NewESSearcher(idx)
		}
	}

	// 5. 检索后端
	if a.searcher == nil {
		switch cfg.Retrieval.Backend {
		case "memory":
			a.searcher = memRepo
		case "pgvector":
			if a.db == nil {
				a.Close()
				return nil, errors.New("retrieval.backend=pgvector 需要 database.driver=postgres")
			}
			a.searcher = repository.NewPgvectorSearcher(a.db)
		}
	}

	a.processor = pipeline.NewProcessor(a.docs, ext, a.embedder, a.mirror)
	log.Infow("依赖初始化完成",
		"driver", cfg.Database.Driver,
		"retrieval", cfg.Retrieval.Backend,
		"embeddingModel", a.embedder.ModelName(),
		"dims", a.embedder.Dimensions(),
		"storage", cfg.Storage.Type,
		"elasticsearch", cfg.Elasticsearch.Enabled,
	)
	return a, nil
}

// newEmbedder 创建 embedding 模型并用一次探测确认维度与配置一致。
func newEmbedder(ctx context.Context, cfg config.Config, rdb *redis.Client) (embedding.Provider, error) {
	p, err := embedding.NewProvider(cfg.Embedding, rdb)
	if err != nil {
		return nil, err
	}
	if err := embedding.VerifyDimensions(ctx, p, cfg.Embedding.Dimensions); err != nil {
		return nil, fmt.Errorf("embedding 模型校验失败: %w", err)
	}
	return p, nil
}

func newExtractor(cfg config.Config, store storage.Storage) extractor.Extractor {
	var opts []extractor.Option
	if cfg.Extractor.Fallback == "tika" || cfg.Extractor.PreferTika {
		client := tika.NewClient(cfg.Tika)
		if cfg.Extractor.Fallback == "tika" {
			opts = append(opts, extractor.WithTikaFallback(client))
		}
		if cfg.Extractor.PreferTika {
			opts = append(opts, extractor.WithTikaForPDF(client))
		}
	}
	return extractor.NewRegistry(store, opts...)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warnf("释放资源失败: %v", err)
		}
	}
	a.closers = nil
}
