package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"intellidocs/internal/model"
	"intellidocs/pkg/database"
)

func newSQLiteOrgRepo(t *testing.T) OrganizationRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db, 3))
	return NewOrganizationRepository(db)
}

func TestOrganizationRepository(t *testing.T) {
	factories := map[string]func(*testing.T) OrganizationRepository{
		"gorm-sqlite": newSQLiteOrgRepo,
		"memory":      func(*testing.T) OrganizationRepository { return NewMemoryOrganizationRepository() },
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			ctx := context.Background()

			acme := &model.Organization{Name: "acme"}
			require.NoError(t, repo.Create(ctx, acme))
			require.NotZero(t, acme.ID)
			require.NoError(t, repo.Create(ctx, &model.Organization{Name: "globex"}))

			assert.ErrorIs(t, repo.Create(ctx, &model.Organization{Name: "  "}), model.ErrInvalidInput)
			assert.Error(t, repo.Create(ctx, &model.Organization{Name: "acme"}))

			got, err := repo.GetByID(ctx, acme.ID)
			require.NoError(t, err)
			assert.Equal(t, "acme", got.Name)

			_, err = repo.GetByID(ctx, 999)
			assert.ErrorIs(t, err, model.ErrNotFound)

			orgs, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, orgs, 2)
			assert.Equal(t, "acme", orgs[0].Name)
			assert.Equal(t, "globex", orgs[1].Name)
		})
	}
}
