package extractor

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv/v2"
)

// parseDOCX converts a Word document into a single logical page;
// DOCX carries no reliable page boundaries.
func parseDOCX(_ context.Context, data []byte, _ Source) (Document, error) {
	result, err := docconv.Convert(bytes.NewReader(data), mimeDOCX, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert Word document: %w", err)
	}
	return NewPages(result.Body), nil
}
