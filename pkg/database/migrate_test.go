package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"intellidocs/internal/model"
)

func TestMigrate_SQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db, 4))
	assert.True(t, db.Migrator().HasTable(&model.Organization{}))
	assert.True(t, db.Migrator().HasTable(&model.Document{}))
	assert.True(t, db.Migrator().HasTable(&model.Chunk{}))
	assert.True(t, db.Migrator().HasIndex(&model.Chunk{}, "idx_chunk_document_page"))

	// idempotent
	require.NoError(t, Migrate(db, 4))
}
