package extractor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pdfDocument reads pages lazily from an in-memory PDF.
//
// ledongthuc/pdf panics on malformed object syntax; every call into the
// reader goes through recoverPDF so a broken file surfaces as an error.
type pdfDocument struct {
	reader   *pdf.Reader
	numPages int
}

func parsePDF(_ context.Context, data []byte, _ Source) (doc Document, err error) {
	defer recoverPDF(&err, "open")

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	n := reader.NumPage()
	if n < 0 {
		return nil, fmt.Errorf("malformed PDF: negative page count %d", n)
	}
	return &pdfDocument{reader: reader, numPages: n}, nil
}

func recoverPDF(err *error, op string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed PDF (%s): %v", op, r)
	}
}

func (d *pdfDocument) PageCount() int {
	if d.reader == nil {
		return 0
	}
	return d.numPages
}

func (d *pdfDocument) PageText(i int) (text string, err error) {
	if d.reader == nil {
		return "", fmt.Errorf("pdf document is closed")
	}
	if i < 0 || i >= d.numPages {
		return "", fmt.Errorf("page index %d out of range [0,%d)", i, d.numPages)
	}
	defer recoverPDF(&err, fmt.Sprintf("page %d", i+1))

	// ledongthuc/pdf numbers pages from 1
	page := d.reader.Page(i + 1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", i+1, err)
	}
	return text, nil
}

func (d *pdfDocument) Close() error {
	d.reader = nil
	return nil
}
