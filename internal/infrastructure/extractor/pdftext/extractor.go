package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

// Extractor reads the stored PDF of an uploaded policy and returns the
// text of every page in order. Pages without text come back empty.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) PageTexts(ctx context.Context, doc *domain.UploadedPolicy) ([]domain.PageText, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return ParsePages(raw)
}

// ParseReport parses a PDF supplied in memory.
func (e *Extractor) ParseReport(raw []byte) ([]domain.PageText, error) {
	return ParsePages(raw)
}

// ParsePages extracts page texts from PDF bytes. The parser panics on some
// malformed files; that is reported as ErrInvalidInput.
func ParsePages(raw []byte) (pages []domain.PageText, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = domain.WrapError(domain.ErrInvalidInput, "parse pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse pdf", err)
	}

	total := r.NumPage()
	pages = make([]domain.PageText, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, domain.PageText{Number: i})
			continue
		}
		text, err := pageText(page)
		if err != nil {
			slog.Warn("pdf_page_unreadable", "page", i, "error", err)
		}
		pages = append(pages, domain.PageText{Number: i, Text: text})
	}
	return pages, nil
}

// pageText keeps the visual line structure, which section detection and
// policy naming rely on.
func pageText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return page.GetPlainText(nil)
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		for _, word := range row.Content {
			b.WriteString(word.S)
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
