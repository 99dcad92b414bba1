package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/reader"

	"docqa/internal/domain"
)

// TabulaSource reads PDF pages with tabula. Detected tables are rendered as
// markdown pipe tables in reading order.
type TabulaSource struct {
	r     *reader.Reader
	pages map[int]*model.Page
	count int
}

// NewTabulaOpener returns an Opener backed by tabula. Extraction warnings are
// logged, not returned.
func NewTabulaOpener(logger *slog.Logger) Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(path string) (Source, error) {
		r, err := reader.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedDocument, err)
		}
		count, err := r.PageCount()
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("page count: %w", err)
		}
		doc, warnings, err := tabula.FromReader(r).Document()
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("layout analysis: %w", err)
		}
		if len(warnings) > 0 {
			logger.Warn("pdf extraction warnings", "path", path, "count", len(warnings))
		}
		pages := make(map[int]*model.Page, len(doc.Pages))
		for i, p := range doc.Pages {
			number := p.Number
			if number <= 0 {
				number = i + 1
			}
			pages[number] = p
		}
		return &TabulaSource{r: r, pages: pages, count: count}, nil
	}
}

// PageCount returns the number of pages in the document.
func (s *TabulaSource) PageCount() int { return s.count }

// PageText renders text and tables of one page, blocks separated by a blank line.
func (s *TabulaSource) PageText(number int) (string, error) {
	p, ok := s.pages[number]
	if !ok {
		return "", nil
	}
	var blocks []string
	for _, el := range p.Elements {
		var block string
		switch v := el.(type) {
		case *model.Table:
			block = v.ToMarkdown()
		case model.TextElement:
			block = v.GetText()
		}
		if block = strings.TrimRight(block, " \n"); strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

// PageImages returns the page's embedded images encoded as PNG. Images that
// cannot be decoded are skipped.
func (s *TabulaSource) PageImages(number int) ([][]byte, error) {
	page, err := s.r.GetPage(number - 1)
	if err != nil {
		return nil, fmt.Errorf("get page %d: %w", number, err)
	}
	images, err := s.r.ExtractPageImages(page)
	if err != nil {
		return nil, fmt.Errorf("extract images of page %d: %w", number, err)
	}
	out := make([][]byte, 0, len(images))
	for i := range images {
		data, err := images[i].ToPNG()
		if err != nil {
			continue
		}
		out = append(out, data)
	}
	return out, nil
}

// Close releases the underlying reader.
func (s *TabulaSource) Close() error { return s.r.Close() }
