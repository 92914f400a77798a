package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intellidocs/internal/config"
	"intellidocs/pkg/storage"
	"intellidocs/pkg/tika"
)

func newStore(t *testing.T, files map[string]string) storage.Storage {
	t.Helper()
	s, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	for key, body := range files {
		_, err := s.Put(context.Background(), key, strings.NewReader(body), int64(len(body)), "")
		require.NoError(t, err)
	}
	return s
}

func TestRegistry_UnsupportedWithoutFallback(t *testing.T) {
	r := NewRegistry(newStore(t, map[string]string{"a.bin": "xx"}))
	_, err := r.Open(context.Background(), Source{Handle: "a.bin", FileName: "a.bin", MimeType: "application/octet-stream"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRegistry_CorruptPDF(t *testing.T) {
	r := NewRegistry(newStore(t, map[string]string{"bad.pdf": "not a pdf at all"}))
	_, err := r.Open(context.Background(), Source{Handle: "bad.pdf", FileName: "bad.pdf", MimeType: "application/pdf"})
	assert.Error(t, err)
}

func TestRegistry_MissingObject(t *testing.T) {
	r := NewRegistry(newStore(t, nil))
	_, err := r.Open(context.Background(), Source{Handle: "gone.pdf", FileName: "gone.pdf"})
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestRegistry_TikaFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="page">one</div><div class="page">two</div></body></html>`))
	}))
	defer srv.Close()

	client := tika.NewClient(config.TikaConfig{ServerURL: srv.URL})
	r := NewRegistry(newStore(t, map[string]string{"slides.pptx": "zip"}), WithTikaFallback(client))

	doc, err := r.Open(context.Background(), Source{Handle: "slides.pptx", FileName: "slides.pptx"})
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 2, doc.PageCount())
	text, err := doc.PageText(1)
	require.NoError(t, err)
	assert.Equal(t, "two", text)
}

func TestRegistry_ParserSelection(t *testing.T) {
	r := NewRegistry(nil)
	assert.NotNil(t, r.parserFor(Source{MimeType: "application/pdf; charset=binary"}))
	assert.NotNil(t, r.parserFor(Source{FileName: "REPORT.PDF"}))
	assert.NotNil(t, r.parserFor(Source{FileName: "memo.docx"}))
	assert.Nil(t, r.parserFor(Source{FileName: "notes.txt", MimeType: "text/plain"}))
}

func TestPages_OutOfRange(t *testing.T) {
	doc := NewPages("a", "b")
	_, err := doc.PageText(2)
	assert.Error(t, err)
	_, err = doc.PageText(-1)
	assert.Error(t, err)
	require.NoError(t, doc.Close())
	assert.Equal(t, 0, doc.PageCount())
}
