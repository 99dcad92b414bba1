package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type fakeSource struct {
	texts   map[int]string
	images  map[int][][]byte
	textErr map[int]error
	closed  bool
}

func (s *fakeSource) PageCount() int { return len(s.texts) }

func (s *fakeSource) PageText(n int) (string, error) {
	if err := s.textErr[n]; err != nil {
		return "", err
	}
	return s.texts[n], nil
}

func (s *fakeSource) PageImages(n int) ([][]byte, error) { return s.images[n], nil }

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeOCR struct {
	results map[string]string
	calls   int
}

func (f *fakeOCR) Recognize(_ context.Context, img []byte) (string, error) {
	f.calls++
	text, ok := f.results[string(img)]
	if !ok {
		return "", errors.New("unreadable image")
	}
	return text, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func openerFor(src *fakeSource) Opener {
	return func(string) (Source, error) { return src, nil }
}

func TestExtractor_TextPageSkipsOCR(t *testing.T) {
	prose := strings.Repeat("Plain selectable text. ", 5)
	src := &fakeSource{texts: map[int]string{1: prose}, images: map[int][][]byte{1: {[]byte("img")}}}
	ocr := &fakeOCR{results: map[string]string{"img": "should not run"}}

	pages, err := New(openerFor(src), ocr, 50, quietLogger()).Extract(context.Background(), domain.Document{Filename: "a.pdf", Path: "a.pdf"})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, prose, pages[0].Text)
	assert.False(t, pages[0].OCRUsed())
	assert.Zero(t, ocr.calls)
	assert.True(t, src.closed)
}

func TestExtractor_ScannedPageUsesOCR(t *testing.T) {
	table := "| Item | Qty |\n|---|---|\n| Bolt | 4 |\n| Nut | 8 |"
	src := &fakeSource{
		texts:  map[int]string{1: table + "\n\n" + strings.Repeat("Prose ", 100), 2: ""},
		images: map[int][][]byte{2: {[]byte("scan-1"), []byte("broken"), []byte("scan-2")}},
	}
	ocr := &fakeOCR{results: map[string]string{"scan-1": "Recovered line one", "scan-2": "Recovered line two"}}

	pages, err := New(openerFor(src), ocr, 50, quietLogger()).Extract(context.Background(), domain.Document{Filename: "a.pdf"})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.False(t, pages[0].OCRUsed())
	assert.True(t, pages[1].OCRUsed())
	assert.Equal(t, "Recovered line one\nRecovered line two", pages[1].Text)
	assert.Len(t, pages[1].Images, 3)
	assert.Equal(t, 3, ocr.calls)
}

func TestExtractor_SparseTextKeepsOriginalAndAppendsOCR(t *testing.T) {
	src := &fakeSource{texts: map[int]string{1: "Figure 1"}, images: map[int][][]byte{1: {[]byte("scan")}}}
	ocr := &fakeOCR{results: map[string]string{"scan": "Label text"}}

	pages, err := New(openerFor(src), ocr, 50, quietLogger()).Extract(context.Background(), domain.Document{})
	require.NoError(t, err)
	assert.Equal(t, "Figure 1\n\nLabel text", pages[0].Text)
	assert.Equal(t, "Label text", pages[0].OCRText)
}

func TestExtractor_OCRReturnsNothing(t *testing.T) {
	src := &fakeSource{texts: map[int]string{1: ""}, images: map[int][][]byte{1: {[]byte("broken")}}}
	pages, err := New(openerFor(src), &fakeOCR{}, 50, quietLogger()).Extract(context.Background(), domain.Document{})
	require.NoError(t, err)
	assert.Empty(t, pages[0].Text)
	assert.False(t, pages[0].OCRUsed())
}

func TestExtractor_NilRecognizerDisablesOCR(t *testing.T) {
	src := &fakeSource{texts: map[int]string{1: ""}, images: map[int][][]byte{1: {[]byte("scan")}}}
	pages, err := New(openerFor(src), nil, 50, quietLogger()).Extract(context.Background(), domain.Document{})
	require.NoError(t, err)
	assert.False(t, pages[0].OCRUsed())
	assert.Nil(t, pages[0].Images)
}

func TestExtractor_PageTextErrorFallsBackToOCR(t *testing.T) {
	src := &fakeSource{
		texts:   map[int]string{1: "ignored"},
		textErr: map[int]error{1: errors.New("bad content stream")},
		images:  map[int][][]byte{1: {[]byte("scan")}},
	}
	ocr := &fakeOCR{results: map[string]string{"scan": "From image"}}
	pages, err := New(openerFor(src), ocr, 50, quietLogger()).Extract(context.Background(), domain.Document{})
	require.NoError(t, err)
	assert.Equal(t, "From image", pages[0].Text)
}

func TestExtractor_OpenError(t *testing.T) {
	open := func(string) (Source, error) { return nil, domain.ErrUnsupportedDocument }
	_, err := New(open, nil, 0, quietLogger()).Extract(context.Background(), domain.Document{Filename: "x.pdf"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)
}

func TestExtractor_Cancelled(t *testing.T) {
	src := &fakeSource{texts: map[int]string{1: "a", 2: "b"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(openerFor(src), nil, 50, quietLogger()).Extract(ctx, domain.Document{})
	assert.ErrorIs(t, err, context.Canceled)
}
