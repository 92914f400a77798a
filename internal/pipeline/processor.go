// Package pipeline 定义了文档 ingestion 的核心流程：提取 -> 向量化 -> 批量持久化 -> 状态流转。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"intellidocs/internal/model"
	"intellidocs/internal/repository"
	"intellidocs/pkg/embedding"
	"intellidocs/pkg/extractor"
	"intellidocs/pkg/log"
)

// ChunkMirror 是分块的二级索引 (Elasticsearch)。
type ChunkMirror interface {
	IndexChunks(ctx context.Context, doc *model.Document, modelVersion string, chunks []model.Chunk) error
	DeleteDocument(ctx context.Context, documentID uint) error
}

const (
	failureWriteTimeout = 10 * time.Second
	// mirrorIndexTimeout 限制 ES 写入时长，Postgres 完成事务在此期间保持打开。
	mirrorIndexTimeout = 30 * time.Second
)

// Processor 封装了文档处理的所有依赖和逻辑。
type Processor struct {
	repo      repository.DocumentRepository
	extractor extractor.Extractor
	embedder  embedding.Provider
	mirror    ChunkMirror
}

// NewProcessor 创建一个新的 Processor 实例。mirror 可以为 nil。
func NewProcessor(
	repo repository.DocumentRepository,
	ext extractor.Extractor,
	embedder embedding.Provider,
	mirror ChunkMirror,
) *Processor {
	return &Processor{
		repo:      repo,
		extractor: ext,
		embedder:  embedder,
		mirror:    mirror,
	}
}

// Process 驱动一个文档完成 PENDING_PROCESSING -> PROCESSING -> COMPLETED | FAILED。
// 可观察的结果是持久化的状态与分块；返回的 error 只用于日志。
// 文档不存在或已被其他任务领取时直接返回 nil。
func (p *Processor) Process(ctx context.Context, documentID uint) error {
	log.Infof("[Processor] 开始处理文档, documentId: %d", documentID)

	// 1. 加载文档
	doc, err := p.repo.Get(ctx, documentID)
	if errors.Is(err, model.ErrNotFound) {
		log.Warnf("[Processor] 文档不存在, 跳过处理, documentId: %d", documentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load document %d: %w", documentID, err)
	}

	// 2. 仅当文档处于 PENDING_PROCESSING 时才开始处理，并立即提交 PROCESSING
	err = p.repo.TransitionStatus(ctx, documentID, model.StatusPendingProcessing, model.StatusProcessing)
	switch {
	case errors.Is(err, model.ErrStatusConflict):
		log.Warnf("[Processor] 文档状态为 %s, 不是 %s, 跳过重复触发, documentId: %d",
			doc.Status, model.StatusPendingProcessing, documentID)
		return nil
	case errors.Is(err, model.ErrNotFound):
		log.Warnf("[Processor] 文档在开始处理前被删除, documentId: %d", documentID)
		return nil
	case err != nil:
		return fmt.Errorf("mark document %d processing: %w", documentID, err)
	}
	log.Infof("[Processor] 步骤1: 文档状态已更新为 PROCESSING, documentId: %d, file: %s", documentID, doc.FileName)

	// 3-4. 提取每页文本并向量化
	chunks, stepErr := p.buildChunks(ctx, doc)
	if stepErr == nil {
		// 5. 批量写入分块并在同一事务中标记 COMPLETED
		log.Infof("[Processor] 步骤4: 开始批量保存 %d 个分块", len(chunks))
		if err := p.repo.SaveChunksAndComplete(ctx, documentID, chunks, p.mirrorHook()); err != nil {
			stepErr = &StepError{Step: StepPersist, DocumentID: documentID, Err: err}
		}
	}

	if stepErr != nil {
		// 6. 任何失败都收敛为 FAILED
		log.Errorw("[Processor] 文档处理失败", "documentId", documentID, "step", stepErr.Step, "error", stepErr.Err)
		p.markFailed(ctx, documentID, stepErr)
		return stepErr
	}

	log.Infof("[Processor] 文档处理成功完成, documentId: %d, chunks: %d", documentID, len(chunks))
	return nil
}

// buildChunks 打开文档并为每个非空白页生成带向量的分块；文档句柄在所有路径上都会被关闭。
func (p *Processor) buildChunks(ctx context.Context, doc *model.Document) (chunks []model.Chunk, stepErr *StepError) {
	// 解析器 panic 时当作提取失败处理，保证文档最终进入 FAILED
	pageNumber := 0
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("[Processor] 提取过程中发生 panic", "documentId", doc.ID, "page", pageNumber, "panic", r)
			chunks = nil
			stepErr = &StepError{Step: StepExtract, DocumentID: doc.ID, Page: pageNumber, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	src := extractor.Source{Handle: doc.FilePath, FileName: doc.FileName, MimeType: doc.MimeType}
	opened, err := p.extractor.Open(ctx, src)
	if err != nil {
		return nil, &StepError{Step: StepExtract, DocumentID: doc.ID, Err: err}
	}
	defer func() {
		if err := opened.Close(); err != nil {
			log.Warnf("[Processor] 关闭文档句柄失败, documentId: %d, error: %v", doc.ID, err)
		}
	}()

	pageCount := opened.PageCount()
	log.Infof("[Processor] 步骤2: 文档已打开, documentId: %d, 共 %d 页", doc.ID, pageCount)

	dims := p.embedder.Dimensions()
	for i := 0; i < pageCount; i++ {
		pageNumber = i + 1
		text, err := opened.PageText(i)
		if err != nil {
			return nil, &StepError{Step: StepExtract, DocumentID: doc.ID, Page: pageNumber, Err: err}
		}
		if strings.TrimSpace(text) == "" {
			log.Debugf("[Processor] 跳过空白页, documentId: %d, page: %d", doc.ID, pageNumber)
			continue
		}

		vec, err := p.embedder.Embed(ctx, text)
		if err != nil {
			return nil, &StepError{Step: StepEmbed, DocumentID: doc.ID, Page: pageNumber, Err: err}
		}
		if len(vec) != dims {
			err := fmt.Errorf("%w: got %d, expected %d", model.ErrDimensionMismatch, len(vec), dims)
			return nil, &StepError{Step: StepEmbed, DocumentID: doc.ID, Page: pageNumber, Err: err}
		}

		chunks = append(chunks, model.Chunk{
			DocumentID: doc.ID,
			Content:    text,
			PageNumber: pageNumber,
			Embedding:  pgvector.NewVector(vec),
		})
	}

	if len(chunks) == 0 {
		log.Warnf("[Processor] 文档没有任何包含文本的页面, documentId: %d", doc.ID)
	}
	log.Infof("[Processor] 步骤3: 提取与向量化完成, documentId: %d, 非空白页: %d/%d", doc.ID, len(chunks), pageCount)
	return chunks, nil
}

func (p *Processor) mirrorHook() repository.ChunkHook {
	if p.mirror == nil {
		return nil
	}
	modelName := p.embedder.ModelName()
	return func(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
		ctx, cancel := context.WithTimeout(ctx, mirrorIndexTimeout)
		defer cancel()
		return p.mirror.IndexChunks(ctx, doc, modelName, chunks)
	}
}

// markFailed 重新查询文档后写入 FAILED。调用方的 ctx 可能已被取消，这里使用独立的超时。
func (p *Processor) markFailed(ctx context.Context, documentID uint, cause *StepError) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	if cause.Step == StepPersist && p.mirror != nil {
		if err := p.mirror.DeleteDocument(ctx, documentID); err != nil {
			log.Warnf("[Processor] 清理 Elasticsearch 中的残留分块失败, documentId: %d, error: %v", documentID, err)
		}
	}

	if _, err := p.repo.Get(ctx, documentID); errors.Is(err, model.ErrNotFound) {
		log.Warnf("[Processor] 文档在处理过程中被删除, 无需标记 FAILED, documentId: %d", documentID)
		return
	} else if err != nil {
		log.Errorw("[Processor] 重新查询文档失败, 无法标记 FAILED", "documentId", documentID, "error", err)
		return
	}

	err := p.repo.TransitionStatus(ctx, documentID, model.StatusProcessing, model.StatusFailed)
	switch {
	case err == nil:
		log.Infof("[Processor] 文档已标记为 FAILED, documentId: %d, step: %s", documentID, cause.Step)
	case errors.Is(err, model.ErrNotFound):
		log.Warnf("[Processor] 文档在标记 FAILED 前被删除, documentId: %d", documentID)
	default:
		log.Errorw("[Processor] 标记 FAILED 失败", "documentId", documentID, "error", err)
	}
}
