// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"intellidocs/internal/model"
)

const chunkBatchSize = 100

// ChunkHook 在分块批量写入之后、事务提交之前执行；返回错误会回滚整个事务。
type ChunkHook func(ctx context.Context, doc *model.Document, chunks []model.Chunk) error

// DocumentRepository 定义了文档与分块的持久化操作，所有按组织的查询都必须带 organizationID。
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id uint) (*model.Document, error)
	GetInOrganization(ctx context.Context, id, organizationID uint) (*model.Document, error)
	ListByOrganization(ctx context.Context, organizationID uint, skip, limit int) ([]model.Document, error)
	// ListByStatus 跨组织返回 id 大于 afterID 且处于 status 的文档，按 id 升序，最多 limit 个。
	ListByStatus(ctx context.Context, status model.DocumentStatus, afterID uint, limit int) ([]model.Document, error)
	// TransitionStatus 以 compare-and-swap 的方式修改状态：只有当前状态为 from 时才写入 to。
	TransitionStatus(ctx context.Context, id uint, from, to model.DocumentStatus) error
	// SaveChunksAndComplete 在同一个事务里批量写入分块并将状态从 PROCESSING 改为 COMPLETED。
	SaveChunksAndComplete(ctx context.Context, id uint, chunks []model.Chunk, hook ChunkHook) error
	Delete(ctx context.Context, id, organizationID uint) (*model.Document, error)
	CountChunks(ctx context.Context, documentID uint) (int64, error)
	ListChunks(ctx context.Context, documentID uint) ([]model.Chunk, error)
}

// ChunkSearcher 在组织范围内按余弦距离升序检索分块。
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, organizationID uint, vector []float32, topK int) ([]model.QueryResult, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个基于 GORM 的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	if doc.OrganizationID == 0 {
		return model.ErrNoOrganization
	}
	if doc.Status == "" {
		doc.Status = model.StatusPendingProcessing
	}
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepository) Get(ctx context.Context, id uint) (*model.Document, error) {
	return findDocument(r.db.WithContext(ctx), "id = ?", id)
}

func (r *documentRepository) GetInOrganization(ctx context.Context, id, organizationID uint) (*model.Document, error) {
	return findDocument(r.db.WithContext(ctx), "id = ? AND organization_id = ?", id, organizationID)
}

func findDocument(db *gorm.DB, query string, args ...interface{}) (*model.Document, error) {
	var doc model.Document
	err := db.Where(query, args...).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListByOrganization(ctx context.Context, organizationID uint, skip, limit int) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("id").
		Offset(skip).
		Limit(limit).
		Find(&docs).Error
	return docs, err
}

func (r *documentRepository) ListByStatus(ctx context.Context, status model.DocumentStatus, afterID uint, limit int) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).
		Where("status = ? AND id > ?", status, afterID).
		Order("id").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}

func (r *documentRepository) TransitionStatus(ctx context.Context, id uint, from, to model.DocumentStatus) error {
	return transitionStatus(r.db.WithContext(ctx), id, from, to)
}

func transitionStatus(db *gorm.DB, id uint, from, to model.DocumentStatus) error {
	if err := model.ValidateTransition(from, to); err != nil {
		return err
	}
	res := db.Model(&model.Document{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// 没有行被更新：区分文档已被删除与状态不符
	var current model.Document
	err := db.Select("id", "status").Where("id = ?", id).First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: document %d is %s, expected %s", model.ErrStatusConflict, id, current.Status, from)
}

// SaveChunksAndComplete 中 hook 在事务内执行，hook 的网络 I/O 期间事务与分块行锁一直持有；
// hook 失败会回滚分块写入，文档保持 PROCESSING。
func (r *documentRepository) SaveChunksAndComplete(ctx context.Context, id uint, chunks []model.Chunk, hook ChunkHook) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if len(chunks) > 0 {
			if err := tx.CreateInBatches(chunks, chunkBatchSize).Error; err != nil {
				return fmt.Errorf("bulk insert chunks: %w", err)
			}
		}
		if hook != nil {
			if err := hook(ctx, doc, chunks); err != nil {
				return err
			}
		}
		return transitionStatus(tx, id, model.StatusProcessing, model.StatusCompleted)
	})
}

func (r *documentRepository) Delete(ctx context.Context, id, organizationID uint) (*model.Document, error) {
	var deleted *model.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, "id = ? AND organization_id = ?", id, organizationID)
		if err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Document{}, id).Error; err != nil {
			return err
		}
		deleted = doc
		return nil
	})
	return deleted, err
}

func (r *documentRepository) CountChunks(ctx context.Context, documentID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Chunk{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

func (r *documentRepository) ListChunks(ctx context.Context, documentID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("page_number").Find(&chunks).Error
	return chunks, err
}
