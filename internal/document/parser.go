// Package document extracts text from fetched document payloads.
package document

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"orgdocs/backend/internal/apperr"
)

// ExtractPages returns per-page plain text for a PDF payload. Pages that
// fail text extraction are skipped; the whole document is a parse error only
// when no page yields non-whitespace content.
func ExtractPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Newf(apperr.ErrParse, "opening pdf: %v", err)
	}

	pages := make([]string, 0, reader.NumPage())
	hasText := false
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		if strings.TrimSpace(text) != "" {
			hasText = true
		}
		pages = append(pages, text)
	}

	if !hasText {
		return nil, apperr.Newf(apperr.ErrParse, "no extractable text on any of %d pages", reader.NumPage())
	}
	return pages, nil
}
