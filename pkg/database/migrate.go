package database

import (
	"fmt"

	"gorm.io/gorm"

	"intellidocs/internal/model"
	"intellidocs/pkg/log"
)

// Migrate 创建表结构。在 PostgreSQL 上会启用 pgvector 扩展、将 embedding 列固定为 vector(dims)
// 并创建 HNSW 余弦索引；已有列维度不一致时返回 model.ErrDimensionMismatch。
func Migrate(db *gorm.DB, dims int) error {
	isPostgres := db.Dialector.Name() == "postgres"
	if isPostgres {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("unable to create vector extension: %w", err)
		}
	}

	if err := db.AutoMigrate(&model.Organization{}, &model.Document{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if !isPostgres {
		return db.AutoMigrate(&model.Chunk{})
	}

	// embedding 列需要固定维度，gorm 的 tag 无法表达，因此手写 DDL
	createChunks := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS document_chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			page_number INTEGER NOT NULL CHECK (page_number >= 1),
			embedding vector(%d) NOT NULL,
			CONSTRAINT idx_chunk_document_page UNIQUE (document_id, page_number)
		)`, dims)
	if err := db.Exec(createChunks).Error; err != nil {
		return fmt.Errorf("create document_chunks: %w", err)
	}

	var current int
	err := db.Raw(`
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'`).Scan(&current).Error
	if err != nil {
		return fmt.Errorf("inspect embedding column: %w", err)
	}
	switch {
	case current == -1:
		// 旧表没有声明维度
		alter := fmt.Sprintf("ALTER TABLE document_chunks ALTER COLUMN embedding TYPE vector(%d)", dims)
		if err := db.Exec(alter).Error; err != nil {
			return fmt.Errorf("%w: cannot pin embedding column to %d dims: %v", model.ErrDimensionMismatch, dims, err)
		}
	case current != dims:
		return fmt.Errorf("%w: document_chunks.embedding is vector(%d), embedding model produces %d",
			model.ErrDimensionMismatch, current, dims)
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding
		ON document_chunks USING hnsw (embedding vector_cosine_ops)`).Error; err != nil {
		return fmt.Errorf("create hnsw index: %w", err)
	}

	log.Infof("数据库迁移完成, embedding 维度: %d", dims)
	return nil
}
