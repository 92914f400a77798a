package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_PutOpenRemove(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocal(root)
	require.NoError(t, err)
	ctx := context.Background()

	handle, err := s.Put(ctx, "organizations/1/abc/report.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "organizations/1/abc/report.pdf", handle)
	assert.FileExists(t, filepath.Join(root, "organizations", "1", "abc", "report.pdf"))

	rc, err := s.Open(ctx, handle)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, s.Remove(ctx, handle))
	_, err = s.Open(ctx, handle)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// removing twice is not an error
	assert.NoError(t, s.Remove(ctx, handle))
}

func TestLocalStorage_StaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocal(filepath.Join(root, "data"))
	require.NoError(t, err)

	handle, err := s.Put(context.Background(), "../../escape.txt", strings.NewReader("x"), 1, "text/plain")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(root, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))

	rc, err := s.Open(context.Background(), handle)
	require.NoError(t, err)
	rc.Close()
}
