// Package extractor opens stored files as paginated plain-text documents.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"intellidocs/pkg/log"
	"intellidocs/pkg/storage"
	"intellidocs/pkg/tika"
)

// ErrUnsupportedType is returned when no parser handles the file's type.
var ErrUnsupportedType = errors.New("unsupported document type")

// Source identifies a stored file to extract.
type Source struct {
	Handle   string
	FileName string
	MimeType string
}

// Document is an opened, paginated text container. Page indexes are 0-based.
type Document interface {
	PageCount() int
	PageText(i int) (string, error)
	Close() error
}

// Extractor opens a Source as a Document. Callers must Close the result.
type Extractor interface {
	Open(ctx context.Context, src Source) (Document, error)
}

// parser turns raw file bytes into a Document.
type parser func(ctx context.Context, data []byte, src Source) (Document, error)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Registry reads bytes from storage and dispatches on MIME type or file extension.
type Registry struct {
	store    storage.Storage
	parsers  map[string]parser
	fallback parser
}

// Option configures a Registry.
type Option func(*Registry)

// WithTikaFallback sends every type without a built-in parser to Tika.
func WithTikaFallback(c *tika.Client) Option {
	return func(r *Registry) {
		r.fallback = tikaParser(c)
	}
}

// WithTikaForPDF routes PDFs through Tika instead of the native parser.
func WithTikaForPDF(c *tika.Client) Option {
	return func(r *Registry) {
		r.parsers[mimePDF] = tikaParser(c)
	}
}

func NewRegistry(store storage.Storage, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		parsers: map[string]parser{
			mimePDF:  parsePDF,
			mimeDOCX: parseDOCX,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Open(ctx context.Context, src Source) (Document, error) {
	p := r.parserFor(src)
	if p == nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, src.FileName, src.MimeType)
	}

	rc, err := r.store.Open(ctx, src.Handle)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.Handle, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Handle, err)
	}
	log.Debugf("[Extractor] 读取文件完成, handle: %s, size: %d", src.Handle, len(data))
	return p(ctx, data, src)
}

func (r *Registry) parserFor(src Source) parser {
	mimeType := strings.ToLower(strings.TrimSpace(strings.SplitN(src.MimeType, ";", 2)[0]))
	if p, ok := r.parsers[mimeType]; ok {
		return p
	}
	switch strings.ToLower(filepath.Ext(src.FileName)) {
	case ".pdf":
		return r.parsers[mimePDF]
	case ".docx":
		return r.parsers[mimeDOCX]
	}
	return r.fallback
}

// pages is a Document backed by already extracted page strings.
type pages struct {
	texts []string
}

func (p *pages) PageCount() int { return len(p.texts) }

func (p *pages) PageText(i int) (string, error) {
	if i < 0 || i >= len(p.texts) {
		return "", fmt.Errorf("page index %d out of range [0,%d)", i, len(p.texts))
	}
	return p.texts[i], nil
}

func (p *pages) Close() error {
	p.texts = nil
	return nil
}

// NewPages wraps extracted page texts as a Document.
func NewPages(texts ...string) Document {
	return &pages{texts: texts}
}

func tikaParser(c *tika.Client) parser {
	return func(ctx context.Context, data []byte, src Source) (Document, error) {
		texts, err := c.ExtractPages(ctx, bytes.NewReader(data), src.FileName, src.MimeType)
		if err != nil {
			return nil, err
		}
		return NewPages(texts...), nil
	}
}
