package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"intellidocs/internal/model"
	"intellidocs/pkg/database"
)

func newSQLiteRepo(t *testing.T) DocumentRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db, 3))
	return NewDocumentRepository(db)
}

func newMemoryRepo(*testing.T) DocumentRepository {
	return NewMemoryDocumentRepository()
}

var repoFactories = map[string]func(*testing.T) DocumentRepository{
	"gorm-sqlite": newSQLiteRepo,
	"memory":      newMemoryRepo,
}

func chunk(docID uint, page int, content string, vec ...float32) model.Chunk {
	return model.Chunk{DocumentID: docID, PageNumber: page, Content: content, Embedding: pgvector.NewVector(vec)}
}

func createDoc(t *testing.T, repo DocumentRepository, orgID uint, name string) *model.Document {
	t.Helper()
	doc := &model.Document{
		FileName:       name,
		FilePath:       "organizations/x/" + name,
		FileSize:       10,
		MimeType:       "application/pdf",
		Tags:           []string{"legal"},
		OrganizationID: orgID,
		UploadedByID:   1,
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	return doc
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	for name, factory := range repoFactories {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()
			doc := createDoc(t, repo, 1, "a.pdf")

			assert.NotZero(t, doc.ID)
			got, err := repo.Get(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusPendingProcessing, got.Status)
			assert.Equal(t, []string{"legal"}, got.Tags)

			_, err = repo.GetInOrganization(ctx, doc.ID, 2)
			assert.ErrorIs(t, err, model.ErrNotFound)
			_, err = repo.Get(ctx, 999)
			assert.ErrorIs(t, err, model.ErrNotFound)

			err = repo.Create(ctx, &model.Document{FileName: "orphan.pdf"})
			assert.ErrorIs(t, err, model.ErrNoOrganization)
		})
	}
}

func TestDocumentRepository_ListByOrganization(t *testing.T) {
	for name, factory := range repoFactories {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()
			a := createDoc(t, repo, 1, "a.pdf")
			createDoc(t, repo, 2, "other.pdf")
			b := createDoc(t, repo, 1, "b.pdf")

			docs, err := repo.ListByOrganization(ctx, 1, 0, 100)
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, a.ID, docs[0].ID)
			assert.Equal(t, b.ID, docs[1].ID)

			docs, err = repo.ListByOrganization(ctx, 1, 1, 100)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, b.ID, docs[0].ID)
		})
	}
}

func TestDocumentRepository_ListByStatus(t *testing.T) {
	for name, factory := range repoFactories {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()
			a := createDoc(t, repo, 1, "a.pdf")
			b := createDoc(t, repo, 2, "b.pdf")
			c := createDoc(t, repo, 1, "c.pdf")
			d := createDoc(t, repo, 3, "d.pdf")
			require.NoError(t, repo.TransitionStatus(ctx, b.ID, model.StatusPendingProcessing, model.StatusProcessing))

			pending, err := repo.ListByStatus(ctx, model.StatusPendingProcessing, 0, 2)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, []uint{a.ID, c.ID}, []uint{pending[0].ID, pending[1].ID})

			rest, err := repo.ListByStatus(ctx, model.StatusPendingProcessing, c.ID, 2)
			require.NoError(t, err)
			require.Len(t, rest, 1)
			assert.Equal(t, d.ID, rest[0].ID)

			processing, err := repo.ListByStatus(ctx, model.StatusProcessing, 0, 10)
			require.NoError(t, err)
			require.Len(t, processing, 1)
			assert.Equal(t, b.ID, processing[0].ID)
		})
	}
}

func TestDocumentRepository_TransitionStatus(t *testing.T) {
	for name, factory := range repoFactories {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()
			doc := createDoc(t, repo, 1, "a.pdf")

			require.NoError(t, repo.TransitionStatus(ctx, doc.ID, model.StatusPendingProcessing, model.StatusProcessing))

			// a second trigger loses the race
			err := repo.TransitionStatus(ctx, doc.ID, model.StatusPendingProcessing, model.StatusProcessing)
			assert.ErrorIs(t, err, model.ErrStatusConflict)

			err = repo.TransitionStatus(ctx, doc.ID, model.StatusProcessing, model.StatusPendingProcessing)
			assert.ErrorIs(t, err, model.ErrInvalidTransition)

			err = repo.TransitionStatus(ctx, 999, model.StatusProcessing, model.StatusFailed)
			assert.ErrorIs(t, err, model.ErrNotFound)

			require.NoError(t, repo.TransitionStatus(ctx, doc.ID, model.StatusProcessing, model.StatusFailed))
			got, err := repo.Get(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusFailed, got.Status)
		})
	}
}

func TestDocumentRepository_SaveChunksAndComplete(t *testing.T) {
	for name, factory := range repoFactories {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()
			doc := createDoc(t, repo, 1, "a.pdf")
			require.NoError(t, repo.TransitionStatus(ctx, doc.ID, model.StatusPendingProcessing, model.StatusProcessing))

			var hooked int
			hook := func(_ context.Context, d *model.Document, chunks []model.Chunk) error {
				assert.Equal(t, uint(1), d.OrganizationID)
				hooked = len(chunks)
				return nil
			}
			err := repo.SaveChunksAndComplete(ctx, doc.ID, []model.Chunk{
				chunk(doc.ID, 1, "first", 1, 0, 0),
				chunk(doc.ID, 3, "third", 0, 1, 0),
			}, hook)
			require.NoError(t, err)
			assert.Equal(t, 2, hooked)

			got, err := repo.Get(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusCompleted, got.Status)

			chunks, err := repo.ListChunks(ctx, doc.ID)
			require.NoError(t, err)
			require.Len(t, chunks, 2)
			assert.Equal(t, 1, chunks[0].PageNumber)
			assert.Equal(t, 3, chunks[1].PageNumber)
			assert.Equal(t, []float32{0, 1, 0}, chunks[1].Embedding.Slice())
		})
	}
}

func TestDocumentRepository_SaveChunksRollsBack(t *testing.T) {
	for name, factory := range repoFactories {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()
			doc := createDoc(t, repo, 1, "a.pdf")
			require.NoError(t, repo.TransitionStatus(ctx, doc.ID, model.StatusPendingProcessing, model.StatusProcessing))

			boom := errors.New("mirror unavailable")
			err := repo.SaveChunksAndComplete(ctx, doc.ID, []model.Chunk{chunk(doc.ID, 1, "first", 1, 0, 0)},
				func(context.Context, *model.Document, []model.Chunk) error { return boom })
			assert.ErrorIs(t, err, boom)

			n, err := repo.CountChunks(ctx, doc.ID)
			require.NoError(t, err)
			assert.Zero(t, n)
			got, err := repo.Get(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusProcessing, got.Status)
		})
	}
}

func TestMemorySaveChunks_HookRunsWithoutLock(t *testing.T) {
	repo := NewMemoryDocumentRepository()
	ctx := context.Background()
	doc := createDoc(t, repo, 1, "a.pdf")
	require.NoError(t, repo.TransitionStatus(ctx, doc.ID, model.StatusPendingProcessing, model.StatusProcessing))

	// hook 内部读取仓库不会死锁
	err := repo.SaveChunksAndComplete(ctx, doc.ID, []model.Chunk{chunk(doc.ID, 1, "x", 1, 0, 0)},
		func(ctx context.Context, d *model.Document, _ []model.Chunk) error {
			got, err := repo.Get(ctx, d.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, model.StatusProcessing, got.Status)
			return nil
		})
	require.NoError(t, err)
	n, err := repo.CountChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemorySaveChunks_DeletedDuringHook(t *testing.T) {
	repo := NewMemoryDocumentRepository()
	ctx := context.Background()
	doc := createDoc(t, repo, 1, "a.pdf")
	require.NoError(t, repo.TransitionStatus(ctx, doc.ID, model.StatusPendingProcessing, model.StatusProcessing))

	err := repo.SaveChunksAndComplete(ctx, doc.ID, []model.Chunk{chunk(doc.ID, 1, "x", 1, 0, 0)},
		func(ctx context.Context, d *model.Document, _ []model.Chunk) error {
			_, err := repo.Delete(ctx, d.ID, d.OrganizationID)
			return err
		})
	assert.ErrorIs(t, err, model.ErrNotFound)
	n, err := repo.CountChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDocumentRepository_SaveChunksRequiresProcessing(t *testing.T) {
	for name, factory := range repoFactories {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()
			doc := createDoc(t, repo, 1, "a.pdf")

			err := repo.SaveChunksAndComplete(ctx, doc.ID, []model.Chunk{chunk(doc.ID, 1, "x", 1, 0, 0)}, nil)
			assert.ErrorIs(t, err, model.ErrStatusConflict)

			n, err := repo.CountChunks(ctx, doc.ID)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestDocumentRepository_DeleteCascades(t *testing.T) {
	for name, factory := range repoFactories {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()
			doc := createDoc(t, repo, 1, "a.pdf")
			require.NoError(t, repo.TransitionStatus(ctx, doc.ID, model.StatusPendingProcessing, model.StatusProcessing))
			require.NoError(t, repo.SaveChunksAndComplete(ctx, doc.ID, []model.Chunk{chunk(doc.ID, 1, "x", 1, 0, 0)}, nil))

			_, err := repo.Delete(ctx, doc.ID, 2)
			assert.ErrorIs(t, err, model.ErrNotFound)

			deleted, err := repo.Delete(ctx, doc.ID, 1)
			require.NoError(t, err)
			assert.Equal(t, "a.pdf", deleted.FileName)

			n, err := repo.CountChunks(ctx, doc.ID)
			require.NoError(t, err)
			assert.Zero(t, n)
			_, err = repo.Get(ctx, doc.ID)
			assert.ErrorIs(t, err, model.ErrNotFound)
		})
	}
}

func TestMemorySearch_OrderAndIsolation(t *testing.T) {
	repo := NewMemoryDocumentRepository()
	ctx := context.Background()

	own := createDoc(t, repo, 1, "own.pdf")
	other := createDoc(t, repo, 2, "other.pdf")
	for _, d := range []*model.Document{own, other} {
		require.NoError(t, repo.TransitionStatus(ctx, d.ID, model.StatusPendingProcessing, model.StatusProcessing))
	}
	require.NoError(t, repo.SaveChunksAndComplete(ctx, own.ID, []model.Chunk{
		chunk(own.ID, 1, "far", 0, 1),
		chunk(own.ID, 2, "near", 1, 0.1),
		chunk(own.ID, 3, "exact", 1, 0),
	}, nil))
	require.NoError(t, repo.SaveChunksAndComplete(ctx, other.ID, []model.Chunk{
		chunk(other.ID, 1, "exact but foreign", 1, 0),
	}, nil))

	results, err := repo.SearchChunks(ctx, 1, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Content)
	assert.Equal(t, "near", results[1].Content)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)

	results, err = repo.SearchChunks(ctx, 3, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemorySearch_TiesBrokenByDocumentThenPage(t *testing.T) {
	repo := NewMemoryDocumentRepository()
	ctx := context.Background()

	first := createDoc(t, repo, 1, "first.pdf")
	second := createDoc(t, repo, 1, "second.pdf")
	for _, d := range []*model.Document{first, second} {
		require.NoError(t, repo.TransitionStatus(ctx, d.ID, model.StatusPendingProcessing, model.StatusProcessing))
	}
	require.NoError(t, repo.SaveChunksAndComplete(ctx, second.ID, []model.Chunk{chunk(second.ID, 1, "s1", 1, 0)}, nil))
	require.NoError(t, repo.SaveChunksAndComplete(ctx, first.ID, []model.Chunk{
		chunk(first.ID, 2, "f2", 1, 0),
		chunk(first.ID, 1, "f1", 1, 0),
	}, nil))

	results, err := repo.SearchChunks(ctx, 1, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"f1", "f2", "s1"}, []string{results[0].Content, results[1].Content, results[2].Content})
}
