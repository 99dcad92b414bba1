// Package extract turns an uploaded document into per-page text, recovering
// text from page images with OCR when a page carries too little selectable text.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
)

// DefaultMinTextForOCR is the page text length below which OCR runs.
const DefaultMinTextForOCR = 50

// Source gives page-level access to an opened document. Pages are 1-indexed.
type Source interface {
	PageCount() int
	PageText(number int) (string, error)
	PageImages(number int) ([][]byte, error)
	Close() error
}

// Opener opens a document on disk.
type Opener func(path string) (Source, error)

// Recognizer extracts text from one image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Extractor produces the ordered pages of a document.
type Extractor struct {
	open          Opener
	ocr           Recognizer
	minTextForOCR int
	logger        *slog.Logger
}

// New creates an Extractor. A nil recognizer disables OCR.
func New(open Opener, ocr Recognizer, minTextForOCR int, logger *slog.Logger) *Extractor {
	if minTextForOCR <= 0 {
		minTextForOCR = DefaultMinTextForOCR
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{open: open, ocr: ocr, minTextForOCR: minTextForOCR, logger: logger}
}

// Extract reads every page of doc. A page whose text cannot be read is kept
// with empty text so that OCR still gets a chance at it.
func (e *Extractor) Extract(ctx context.Context, doc domain.Document) ([]domain.Page, error) {
	src, err := e.open(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", doc.Filename, err)
	}
	defer src.Close()

	count := src.PageCount()
	pages := make([]domain.Page, 0, count)
	for number := 1; number <= count; number++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := src.PageText(number)
		if err != nil {
			e.logger.Warn("page text extraction failed", "file", doc.Filename, "page", number, "error", err)
			text = ""
		}
		page := domain.Page{Number: number, Text: text}
		if utf8.RuneCountInString(strings.TrimSpace(text)) < e.minTextForOCR {
			page = e.recoverText(ctx, src, page, doc.Filename)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// recoverText runs OCR over every image on the page. Failures on single
// images are skipped.
func (e *Extractor) recoverText(ctx context.Context, src Source, page domain.Page, filename string) domain.Page {
	if e.ocr == nil {
		return page
	}
	images, err := src.PageImages(page.Number)
	if err != nil {
		e.logger.Warn("page image extraction failed", "file", filename, "page", page.Number, "error", err)
		return page
	}
	page.Images = images

	var recovered []string
	for i, img := range images {
		text, err := e.ocr.Recognize(ctx, img)
		if err != nil {
			e.logger.Warn("ocr failed on image", "file", filename, "page", page.Number, "image", i, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			recovered = append(recovered, text)
		}
	}
	if len(recovered) == 0 {
		return page
	}
	page.OCRText = strings.Join(recovered, "\n")
	if page.Text == "" {
		page.Text = page.OCRText
	} else {
		page.Text = page.Text + "\n\n" + page.OCRText
	}
	e.logger.Debug("ocr recovered page text", "file", filename, "page", page.Number, "images", len(images), "chars", utf8.RuneCountInString(page.OCRText))
	return page
}
