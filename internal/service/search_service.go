// Package service 提供了检索、问答与文档管理的业务逻辑。
package service

import (
	"context"
	"fmt"
	"strings"

	"intellidocs/internal/config"
	"intellidocs/internal/model"
	"intellidocs/internal/repository"
	"intellidocs/pkg/embedding"
	"intellidocs/pkg/log"
)

// SearchService 接口定义了语义检索操作。
type SearchService interface {
	// Search 返回最多 topK 个分块，按余弦距离升序 (最相近在前)。
	Search(ctx context.Context, query string, organizationID uint, topK int) ([]model.QueryResult, error)
}

type searchService struct {
	embedder embedding.Provider
	searcher repository.ChunkSearcher
	maxTopK  int
}

// NewSearchService 创建一个新的 SearchService 实例。
// embedder 必须与 ingestion 使用同一个模型，否则距离没有意义。
func NewSearchService(embedder embedding.Provider, searcher repository.ChunkSearcher, cfg config.RetrievalConfig) SearchService {
	return &searchService{
		embedder: embedder,
		searcher: searcher,
		maxTopK:  cfg.MaxTopK,
	}
}

func (s *searchService) Search(ctx context.Context, query string, organizationID uint, topK int) ([]model.QueryResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be a positive integer, got %d", model.ErrInvalidInput, topK)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", model.ErrInvalidInput)
	}
	if organizationID == 0 {
		return nil, model.ErrNoOrganization
	}
	if s.maxTopK > 0 && topK > s.maxTopK {
		topK = s.maxTopK
	}

	log.Infof("[SearchService] 开始检索, org: %d, topK: %d, query_len: %d", organizationID, topK, len(query))

	// 1. 向量化查询
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Errorf("[SearchService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("%w: %v", model.ErrEmbeddingFailed, err)
	}

	// 2. 在组织范围内按距离检索
	results, err := s.searcher.SearchChunks(ctx, organizationID, vector, topK)
	if err != nil {
		log.Errorf("[SearchService] 向量检索失败: %v", err)
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if results == nil {
		results = []model.QueryResult{}
	}

	log.Infof("[SearchService] 检索完成, 命中 %d 条", len(results))
	return results, nil
}
