package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"health-records-platform/internal/logger"

	"github.com/ledongthuc/pdf"
)

// maxPDFBytes caps in-memory extraction to avoid OOM on oversized uploads.
const maxPDFBytes = 200 << 20

// PDFExtractor pulls plain text out of uploaded report PDFs.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractionResult carries the extracted text plus basic stats.
type ExtractionResult struct {
	Text      string
	Pages     int
	CharCount int
}

// ExtractText reads the PDF at filePath and returns its text with
// per-page markers so downstream chunking keeps page locality.
func (e *PDFExtractor) ExtractText(ctx context.Context, filePath string) (*ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > maxPDFBytes {
		return nil, fmt.Errorf("pdf too large for in-memory extraction")
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()
	extracted := 0

	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract text from page", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		if extracted > 0 {
			textBuilder.WriteString("\n\n")
		}
		fmt.Fprintf(&textBuilder, "--- Page %d ---\n", i)
		textBuilder.WriteString(text)
		extracted++
	}

	result := &ExtractionResult{
		Text:  textBuilder.String(),
		Pages: pages,
	}
	result.CharCount = len(result.Text)

	if strings.TrimSpace(result.Text) == "" {
		return nil, fmt.Errorf("no extractable text in PDF")
	}
	return result, nil
}
