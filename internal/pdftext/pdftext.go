// Package pdftext extracts plain text from PDF documents page by page,
// preserving reading order. It is the extraction collaborator behind the
// schedule PDF importer.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	appLog "coursebuilder/internal/log"
)

// Extractor reads PDF bytes and returns the concatenated per-page text.
// The zero value is ready to use.
type Extractor struct{}

// Extract returns the document text, one page per chunk joined by newlines.
// Pages whose text cannot be decoded are skipped; the remaining pages still
// produce output so a partially damaged document imports what it can.
func (Extractor) Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("pdftext: empty document")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdftext: open document: %w", err)
	}

	chunks := make([]string, 0, reader.NumPage())
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			appLog.Error("pdftext: page text decode failed", err, "page", pageNum)
			continue
		}
		chunks = append(chunks, text)
	}

	return strings.Join(chunks, "\n"), nil
}
