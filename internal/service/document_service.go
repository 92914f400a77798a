package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"intellidocs/internal/model"
	"intellidocs/internal/pipeline"
	"intellidocs/internal/repository"
	"intellidocs/pkg/log"
	"intellidocs/pkg/storage"
)

const (
	defaultListLimit = 100
	maxListLimit     = 100
)

// UploadInput 描述一次上传请求。
type UploadInput struct {
	FileName       string
	Size           int64
	MimeType       string
	Reader         io.Reader
	Category       string
	Tags           []string
	OrganizationID uint
	UploaderID     uint
	RequestID      string
}

// DocumentService 接口定义了文档管理相关的业务操作，所有操作都限定在组织范围内。
type DocumentService interface {
	Upload(ctx context.Context, in UploadInput) (*model.Document, error)
	List(ctx context.Context, organizationID uint, skip, limit int) ([]model.Document, error)
	Get(ctx context.Context, id, organizationID uint) (*model.Document, error)
	Delete(ctx context.Context, id, organizationID uint) error
}

type documentService struct {
	repo       repository.DocumentRepository
	store      storage.Storage
	dispatcher pipeline.Dispatcher
	mirror     pipeline.ChunkMirror
}

// NewDocumentService 创建一个新的 DocumentService 实例。mirror 可以为 nil。
func NewDocumentService(repo repository.DocumentRepository, store storage.Storage, dispatcher pipeline.Dispatcher, mirror pipeline.ChunkMirror) DocumentService {
	return &documentService{
		repo:       repo,
		store:      store,
		dispatcher: dispatcher,
		mirror:     mirror,
	}
}

// Upload 保存文件、创建 PENDING_PROCESSING 文档并派发处理任务，不等待处理完成。
func (s *documentService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	if in.OrganizationID == 0 {
		return nil, model.ErrNoOrganization
	}
	name := safeFileName(in.FileName)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", model.ErrInvalidInput)
	}
	if in.Reader == nil {
		return nil, fmt.Errorf("%w: file content is required", model.ErrInvalidInput)
	}

	// 1. 保存文件
	key := fmt.Sprintf("organizations/%d/%s/%s", in.OrganizationID, uuid.NewString(), name)
	handle, err := s.store.Put(ctx, key, in.Reader, in.Size, in.MimeType)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	log.Infof("[DocumentService] 步骤1: 文件已保存, handle: %s, size: %d", handle, in.Size)

	// 2. 创建文档记录
	doc := &model.Document{
		FileName:       name,
		FilePath:       handle,
		FileSize:       in.Size,
		MimeType:       in.MimeType,
		Status:         model.StatusPendingProcessing,
		Category:       strings.TrimSpace(in.Category),
		Tags:           cleanTags(in.Tags),
		OrganizationID: in.OrganizationID,
		UploadedByID:   in.UploaderID,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if rmErr := s.store.Remove(context.WithoutCancel(ctx), handle); rmErr != nil {
			log.Warnf("[DocumentService] 回滚已保存的文件失败, handle: %s, error: %v", handle, rmErr)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	log.Infof("[DocumentService] 步骤2: 文档记录已创建, documentId: %d", doc.ID)

	// 3. 派发后台处理；失败时文档保持 PENDING_PROCESSING，由 pipeline.DispatchPending 补派
	if err := s.dispatcher.Dispatch(ctx, doc.ID, doc.OrganizationID, in.RequestID); err != nil {
		log.Errorw("[DocumentService] 派发处理任务失败, 文档保持 PENDING_PROCESSING", "documentId", doc.ID, "error", err)
	} else {
		log.Infof("[DocumentService] 步骤3: 处理任务已派发, documentId: %d", doc.ID)
	}
	return doc, nil
}

func (s *documentService) List(ctx context.Context, organizationID uint, skip, limit int) ([]model.Document, error) {
	if organizationID == 0 {
		return nil, model.ErrNoOrganization
	}
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	docs, err := s.repo.ListByOrganization(ctx, organizationID, skip, limit)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}

func (s *documentService) Get(ctx context.Context, id, organizationID uint) (*model.Document, error) {
	if organizationID == 0 {
		return nil, model.ErrNoOrganization
	}
	return s.repo.GetInOrganization(ctx, id, organizationID)
}

// Delete 级联删除分块，然后尽力清理文件与 ES 镜像。
func (s *documentService) Delete(ctx context.Context, id, organizationID uint) error {
	if organizationID == 0 {
		return model.ErrNoOrganization
	}
	doc, err := s.repo.Delete(ctx, id, organizationID)
	if err != nil {
		return err
	}
	log.Infof("[DocumentService] 文档已删除, documentId: %d", id)

	if err := s.store.Remove(ctx, doc.FilePath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		log.Warnf("[DocumentService] 删除文件失败, handle: %s, error: %v", doc.FilePath, err)
	}
	if s.mirror != nil {
		if err := s.mirror.DeleteDocument(ctx, id); err != nil {
			log.Warnf("[DocumentService] 删除 Elasticsearch 分块失败, documentId: %d, error: %v", id, err)
		}
	}
	return nil
}

// safeFileName 去掉路径部分，只保留文件名。
func safeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

func cleanTags(tags []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
