// Package extract turns uploaded files into plain text for ingestion.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls plain text out of an uploaded file. An empty result is not
// an error here; the ingestion path decides that nothing-to-process is
// terminal.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader, filename string) (string, error)
}

// PDFExtractor extracts text from PDF files.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filename, err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open %s as PDF: %w", filename, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", filename, err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("failed to read extracted text from %s: %w", filename, err)
	}

	return b.String(), nil
}

// PlainTextExtractor passes file bytes through as UTF-8 text.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Extract(ctx context.Context, r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return string(data), nil
}

// AutoExtractor dispatches on file extension: PDFs go through the PDF
// parser, everything else is treated as plain text.
type AutoExtractor struct {
	pdf   Extractor
	plain Extractor
}

func NewAutoExtractor() *AutoExtractor {
	return &AutoExtractor{
		pdf:   NewPDFExtractor(),
		plain: NewPlainTextExtractor(),
	}
}

func (e *AutoExtractor) Extract(ctx context.Context, r io.Reader, filename string) (string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return e.pdf.Extract(ctx, r, filename)
	}
	return e.plain.Extract(ctx, r, filename)
}
