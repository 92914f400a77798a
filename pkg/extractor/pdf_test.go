package extractor

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intellidocs/pkg/extractor/pdftest"
)

func TestParsePDF_PagesAreOneToOne(t *testing.T) {
	data := pdftest.Build("Quarterly revenue grew", "", "Headcount stayed flat")

	doc, err := parsePDF(context.Background(), data, Source{FileName: "report.pdf"})
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 3, doc.PageCount())

	first, err := doc.PageText(0)
	require.NoError(t, err)
	assert.Contains(t, first, "Quarterly revenue grew")

	blank, err := doc.PageText(1)
	require.NoError(t, err)
	assert.Empty(t, bytes.TrimSpace([]byte(blank)))

	third, err := doc.PageText(2)
	require.NoError(t, err)
	assert.Contains(t, third, "Headcount stayed flat")
	assert.NotContains(t, third, "Quarterly")

	_, err = doc.PageText(3)
	assert.Error(t, err)
}

func TestParsePDF_ThroughRegistry(t *testing.T) {
	data := pdftest.Build("alpha", "beta")
	r := NewRegistry(newStore(t, map[string]string{"docs/a.pdf": string(data)}))

	doc, err := r.Open(context.Background(), Source{Handle: "docs/a.pdf", FileName: "a.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 2, doc.PageCount())
	text, err := doc.PageText(1)
	require.NoError(t, err)
	assert.Contains(t, text, "beta")
}

func TestParsePDF_ClosedDocument(t *testing.T) {
	doc, err := parsePDF(context.Background(), pdftest.Build("x"), Source{})
	require.NoError(t, err)
	require.NoError(t, doc.Close())
	assert.Equal(t, 0, doc.PageCount())
	_, err = doc.PageText(0)
	assert.Error(t, err)
}

// 损坏的 PDF 只能返回错误，不能 panic。
func TestParsePDF_CorruptedBytesNeverPanic(t *testing.T) {
	valid := pdftest.Build("first page text", "second page text", "third page text")
	for seed := int64(1); seed <= 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		data := append([]byte(nil), valid...)
		for i := 0; i < 3; i++ {
			data[rng.Intn(len(data))] = byte(rng.Intn(256))
		}

		assert.NotPanics(t, func() {
			doc, err := parsePDF(context.Background(), data, Source{})
			if err != nil {
				return
			}
			defer doc.Close()
			for i := 0; i < doc.PageCount() && i < 16; i++ {
				_, _ = doc.PageText(i)
			}
		}, "seed %d", seed)
	}
}

func TestParsePDF_TruncatedFile(t *testing.T) {
	valid := pdftest.Build("some text")
	for _, n := range []int{0, 9, len(valid) / 2, len(valid) - 10} {
		assert.NotPanics(t, func() {
			_, _ = parsePDF(context.Background(), valid[:n], Source{})
		}, "length %d", n)
	}
}
