package repository

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"intellidocs/internal/model"
	"intellidocs/pkg/es"
)

type pgvectorSearcher struct {
	db *gorm.DB
}

// NewPgvectorSearcher 使用 pgvector 的 <=> (余弦距离) 运算符检索分块。
func NewPgvectorSearcher(db *gorm.DB) ChunkSearcher {
	return &pgvectorSearcher{db: db}
}

const searchChunksSQL = `
SELECT dc.document_id, dc.page_number, dc.content, dc.embedding <=> ? AS distance
FROM document_chunks dc
JOIN documents d ON d.id = dc.document_id
WHERE d.organization_id = ?
ORDER BY distance, dc.document_id, dc.page_number
LIMIT ?`

func (s *pgvectorSearcher) SearchChunks(ctx context.Context, organizationID uint, vector []float32, topK int) ([]model.QueryResult, error) {
	var results []model.QueryResult
	err := s.db.WithContext(ctx).
		Raw(searchChunksSQL, pgvector.NewVector(vector), organizationID, topK).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

type esSearcher struct {
	index *es.ChunkIndex
}

// NewESSearcher 使用 Elasticsearch 镜像索引作为检索后端。
func NewESSearcher(index *es.ChunkIndex) ChunkSearcher {
	return &esSearcher{index: index}
}

func (s *esSearcher) SearchChunks(ctx context.Context, organizationID uint, vector []float32, topK int) ([]model.QueryResult, error) {
	return s.index.Search(ctx, organizationID, vector, topK)
}
