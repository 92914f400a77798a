package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"intellidocs/internal/model"
	"intellidocs/pkg/embedding"
)

// MemoryDocumentRepository 是进程内的 DocumentRepository 与 ChunkSearcher 实现，
// 语义与 GORM 实现一致，检索为暴力计算余弦距离。用于本地开发与测试。
type MemoryDocumentRepository struct {
	mu          sync.RWMutex
	docs        map[uint]*model.Document
	chunks      map[uint][]model.Chunk
	nextDocID   uint
	nextChunkID uint
}

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{
		docs:   make(map[uint]*model.Document),
		chunks: make(map[uint][]model.Chunk),
	}
}

func (r *MemoryDocumentRepository) Create(_ context.Context, doc *model.Document) error {
	if doc.OrganizationID == 0 {
		return model.ErrNoOrganization
	}
	if doc.Status == "" {
		doc.Status = model.StatusPendingProcessing
	}
	if !doc.Status.Valid() {
		return fmt.Errorf("%w: unknown document status %q", model.ErrInvalidInput, doc.Status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextDocID++
	doc.ID = r.nextDocID
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	stored := copyDocument(doc)
	r.docs[doc.ID] = &stored
	return nil
}

func (r *MemoryDocumentRepository) Get(_ context.Context, id uint) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := copyDocument(doc)
	return &out, nil
}

func (r *MemoryDocumentRepository) GetInOrganization(ctx context.Context, id, organizationID uint) (*model.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OrganizationID != organizationID {
		return nil, model.ErrNotFound
	}
	return doc, nil
}

func (r *MemoryDocumentRepository) ListByOrganization(_ context.Context, organizationID uint, skip, limit int) ([]model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var docs []model.Document
	for _, d := range r.docs {
		if d.OrganizationID == organizationID {
			docs = append(docs, copyDocument(d))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if skip >= len(docs) {
		return []model.Document{}, nil
	}
	docs = docs[skip:]
	if limit >= 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs, nil
}

func (r *MemoryDocumentRepository) ListByStatus(_ context.Context, status model.DocumentStatus, afterID uint, limit int) ([]model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := []model.Document{}
	for _, d := range r.docs {
		if d.Status == status && d.ID > afterID {
			docs = append(docs, copyDocument(d))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if limit >= 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs, nil
}

func (r *MemoryDocumentRepository) TransitionStatus(_ context.Context, id uint, from, to model.DocumentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(id, from, to)
}

func (r *MemoryDocumentRepository) transitionLocked(id uint, from, to model.DocumentStatus) error {
	if err := model.ValidateTransition(from, to); err != nil {
		return err
	}
	doc, ok := r.docs[id]
	if !ok {
		return model.ErrNotFound
	}
	if doc.Status != from {
		return fmt.Errorf("%w: document %d is %s, expected %s", model.ErrStatusConflict, id, doc.Status, from)
	}
	doc.Status = to
	return nil
}

// SaveChunksAndComplete 校验并暂存分块后释放写锁再调用 hook，
// 重新加锁后确认文档仍为 PROCESSING 且页码未被占用才提交。
func (r *MemoryDocumentRepository) SaveChunksAndComplete(ctx context.Context, id uint, chunks []model.Chunk, hook ChunkHook) error {
	r.mu.Lock()
	snapshot, err := r.checkCompletableLocked(id, chunks)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	staged := append([]model.Chunk(nil), chunks...)
	if hook != nil {
		if err := hook(ctx, &snapshot, staged); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.checkCompletableLocked(id, chunks); err != nil {
		return err
	}
	for i := range staged {
		r.nextChunkID++
		staged[i].ID = r.nextChunkID
		chunks[i].ID = staged[i].ID
	}
	r.chunks[id] = append(r.chunks[id], staged...)
	r.docs[id].Status = model.StatusCompleted
	return nil
}

// checkCompletableLocked 要求调用方持有写锁。
func (r *MemoryDocumentRepository) checkCompletableLocked(id uint, chunks []model.Chunk) (model.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return model.Document{}, model.ErrNotFound
	}
	if doc.Status != model.StatusProcessing {
		return model.Document{}, fmt.Errorf("%w: document %d is %s, expected %s", model.ErrStatusConflict, id, doc.Status, model.StatusProcessing)
	}

	// 与数据库的唯一索引 (document_id, page_number) 保持一致
	seen := make(map[int]struct{}, len(chunks))
	for _, c := range r.chunks[id] {
		seen[c.PageNumber] = struct{}{}
	}
	for _, c := range chunks {
		if c.DocumentID != id {
			return model.Document{}, fmt.Errorf("chunk for document %d cannot be saved under document %d", c.DocumentID, id)
		}
		if c.PageNumber < 1 {
			return model.Document{}, fmt.Errorf("%w: page number %d", model.ErrInvalidInput, c.PageNumber)
		}
		if _, dup := seen[c.PageNumber]; dup {
			return model.Document{}, fmt.Errorf("duplicate chunk for document %d page %d", id, c.PageNumber)
		}
		seen[c.PageNumber] = struct{}{}
	}
	return copyDocument(doc), nil
}

func (r *MemoryDocumentRepository) Delete(_ context.Context, id, organizationID uint) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.OrganizationID != organizationID {
		return nil, model.ErrNotFound
	}
	out := copyDocument(doc)
	delete(r.docs, id)
	delete(r.chunks, id)
	return &out, nil
}

func (r *MemoryDocumentRepository) CountChunks(_ context.Context, documentID uint) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.chunks[documentID])), nil
}

func (r *MemoryDocumentRepository) ListChunks(_ context.Context, documentID uint) ([]model.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]model.Chunk(nil), r.chunks[documentID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out, nil
}

// SearchChunks 实现 ChunkSearcher。
func (r *MemoryDocumentRepository) SearchChunks(ctx context.Context, organizationID uint, vector []float32, topK int) ([]model.QueryResult, error) {
	if topK <= 0 {
		return []model.QueryResult{}, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []model.QueryResult
	for docID, chunks := range r.chunks {
		doc, ok := r.docs[docID]
		if !ok || doc.OrganizationID != organizationID {
			continue
		}
		for _, c := range chunks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			d, err := embedding.CosineDistance(vector, c.Embedding.Slice())
			if err != nil {
				return nil, err
			}
			results = append(results, model.QueryResult{
				DocumentID: c.DocumentID,
				PageNumber: c.PageNumber,
				Content:    c.Content,
				Distance:   d,
			})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.PageNumber < b.PageNumber
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func copyDocument(d *model.Document) model.Document {
	out := *d
	out.Tags = append([]string(nil), d.Tags...)
	out.Chunks = nil
	return out
}
