package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intellidocs/internal/model"
	"intellidocs/internal/repository"
	"intellidocs/pkg/storage"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	ids   []uint
	reqID []string
	err   error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, documentID, _ uint, requestID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, documentID)
	d.reqID = append(d.reqID, requestID)
	return d.err
}

type deleteRecorder struct {
	deleted []uint
}

func (m *deleteRecorder) IndexChunks(context.Context, *model.Document, string, []model.Chunk) error {
	return nil
}

func (m *deleteRecorder) DeleteDocument(_ context.Context, id uint) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type brokenRepo struct {
	*repository.MemoryDocumentRepository
}

func (brokenRepo) Create(context.Context, *model.Document) error {
	return errors.New("db down")
}

func newDocumentFixture(t *testing.T) (DocumentService, *repository.MemoryDocumentRepository, *storage.LocalStorage, *fakeDispatcher, *deleteRecorder) {
	t.Helper()
	repo := repository.NewMemoryDocumentRepository()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	dispatcher := &fakeDispatcher{}
	mirror := &deleteRecorder{}
	return NewDocumentService(repo, store, dispatcher, mirror), repo, store, dispatcher, mirror
}

func upload(t *testing.T, svc DocumentService, orgID uint, name, body string) *model.Document {
	t.Helper()
	doc, err := svc.Upload(context.Background(), UploadInput{
		FileName:       name,
		Size:           int64(len(body)),
		MimeType:       "application/pdf",
		Reader:         strings.NewReader(body),
		OrganizationID: orgID,
		UploaderID:     7,
		RequestID:      "req-1",
	})
	require.NoError(t, err)
	return doc
}

func TestUpload_StoresCreatesAndDispatches(t *testing.T) {
	svc, repo, store, dispatcher, _ := newDocumentFixture(t)

	doc, err := svc.Upload(context.Background(), UploadInput{
		FileName:       "../../etc/report.pdf",
		Size:           5,
		MimeType:       "application/pdf",
		Reader:         strings.NewReader("%PDF-"),
		Category:       " finance ",
		Tags:           []string{"q3", "", "q3", "board"},
		OrganizationID: 3,
		UploaderID:     7,
		RequestID:      "req-42",
	})
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", doc.FileName)
	assert.Equal(t, model.StatusPendingProcessing, doc.Status)
	assert.Equal(t, "finance", doc.Category)
	assert.Equal(t, []string{"q3", "board"}, doc.Tags)
	assert.True(t, strings.HasPrefix(doc.FilePath, "organizations/3/"))
	assert.True(t, strings.HasSuffix(doc.FilePath, "/report.pdf"))

	stored, err := repo.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(3), stored.OrganizationID)

	rc, err := store.Open(context.Background(), doc.FilePath)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-", string(body))

	assert.Equal(t, []uint{doc.ID}, dispatcher.ids)
	assert.Equal(t, []string{"req-42"}, dispatcher.reqID)
}

func TestUpload_RequiresOrganization(t *testing.T) {
	svc, _, _, dispatcher, _ := newDocumentFixture(t)
	_, err := svc.Upload(context.Background(), UploadInput{FileName: "a.pdf", Reader: strings.NewReader("x")})
	assert.ErrorIs(t, err, model.ErrNoOrganization)
	assert.Empty(t, dispatcher.ids)
}

func TestUpload_RejectsMissingName(t *testing.T) {
	svc, _, _, _, _ := newDocumentFixture(t)
	_, err := svc.Upload(context.Background(), UploadInput{FileName: "  ", Reader: strings.NewReader("x"), OrganizationID: 1})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestUpload_DispatchFailureKeepsPending(t *testing.T) {
	svc, repo, _, dispatcher, _ := newDocumentFixture(t)
	dispatcher.err = errors.New("broker unavailable")

	doc := upload(t, svc, 1, "a.pdf", "data")
	stored, err := repo.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingProcessing, stored.Status)
}

func TestUpload_CreateFailureRemovesBytes(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewLocal(root)
	require.NoError(t, err)
	dispatcher := &fakeDispatcher{}
	svc := NewDocumentService(brokenRepo{repository.NewMemoryDocumentRepository()}, store, dispatcher, nil)

	_, err = svc.Upload(context.Background(), UploadInput{FileName: "a.pdf", Reader: strings.NewReader("x"), OrganizationID: 1})
	require.Error(t, err)
	assert.Empty(t, dispatcher.ids)

	var files int
	require.NoError(t, walkFiles(root, func() { files++ }))
	assert.Zero(t, files)
}

func TestList_ScopedAndBounded(t *testing.T) {
	svc, _, _, _, _ := newDocumentFixture(t)
	for i := 0; i < 3; i++ {
		upload(t, svc, 1, "a.pdf", "x")
	}
	upload(t, svc, 2, "b.pdf", "y")

	docs, err := svc.List(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	for _, d := range docs {
		assert.Equal(t, uint(1), d.OrganizationID)
	}

	docs, err = svc.List(context.Background(), 1, 1, 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = svc.List(context.Background(), 1, -5, 1000)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	docs, err = svc.List(context.Background(), 9, 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestGet_OtherOrganizationIsNotFound(t *testing.T) {
	svc, _, _, _, _ := newDocumentFixture(t)
	doc := upload(t, svc, 1, "a.pdf", "x")

	got, err := svc.Get(context.Background(), doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	_, err = svc.Get(context.Background(), doc.ID, 2)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDelete_RemovesEverything(t *testing.T) {
	svc, repo, store, _, mirror := newDocumentFixture(t)
	doc := upload(t, svc, 1, "a.pdf", "x")

	require.ErrorIs(t, svc.Delete(context.Background(), doc.ID, 2), model.ErrNotFound)

	require.NoError(t, svc.Delete(context.Background(), doc.ID, 1))
	_, err := repo.Get(context.Background(), doc.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = store.Open(context.Background(), doc.FilePath)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.Equal(t, []uint{doc.ID}, mirror.deleted)

	assert.ErrorIs(t, svc.Delete(context.Background(), doc.ID, 1), model.ErrNotFound)
}

func walkFiles(root string, fn func()) error {
	return filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			fn()
		}
		return nil
	})
}
