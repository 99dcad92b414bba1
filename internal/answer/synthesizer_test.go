package answer

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

type fakeGenerator struct {
	answer string
	err    error
	prompt string
	opts   domain.GenerateOptions
}

func (g *fakeGenerator) Model() string { return "fake-model" }
func (g *fakeGenerator) Generate(_ context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	g.prompt, g.opts = prompt, opts
	return g.answer, g.err
}

func intp(v int) *int { return &v }

func candidates() []domain.SearchResult {
	return []domain.SearchResult{
		{Chunk: domain.Chunk{Text: "Revenue rose 12% in 2023. Costs fell.", Page: 2, Type: domain.ChunkText, CharStart: intp(0), CharEnd: intp(37)}},
		{Chunk: domain.Chunk{Text: "| Year | Revenue |\n|---|---|\n| 2023 | 5M |", Page: 3, HasTable: true, Type: domain.ChunkTableOnly}},
	}
}

func newSynth(g domain.Generator) *Synthesizer {
	return NewSynthesizer(g, Options{Temperature: 0.1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuildContext(t *testing.T) {
	ctx := BuildContext(candidates())
	assert.Contains(t, ctx, "[Document 1 - Page 2]\nRevenue rose 12% in 2023.")
	assert.Contains(t, ctx, "[Document 2 - Page 3 - CONTAINS TABLE DATA]\n[TABLE START]\n| Year | Revenue |")
	assert.Contains(t, ctx, "| 2023 | 5M |\n[TABLE END]")
	assert.NotContains(t, strings.Split(ctx, "[Document 2")[0], "TABLE START")
}

func TestBuildPrompt_TableRulesOnlyForTableQueries(t *testing.T) {
	assert.Contains(t, BuildPrompt("q", candidates(), true), "restate them exactly")
	p := BuildPrompt("what rose?", candidates(), false)
	assert.NotContains(t, p, "restate them exactly")
	assert.Contains(t, p, "Question: what rose?")
	assert.Contains(t, p, "ONLY on the provided context")
	assert.Contains(t, p, "Reference page numbers")
}

func TestSynthesize_Success(t *testing.T) {
	g := &fakeGenerator{answer: "Revenue rose 12% (page 2)."}
	res := newSynth(g).Synthesize(context.Background(), "How did revenue change?", candidates(), false)
	require.NoError(t, res.Err)
	assert.Equal(t, "Revenue rose 12% (page 2).", res.Answer)
	assert.Len(t, res.Locations, 2)
	assert.InDelta(t, 0.1, g.opts.Temperature, 1e-6)
	assert.Equal(t, 2048, g.opts.MaxTokens)
}

func TestSynthesize_GenerationFailureKeepsLocations(t *testing.T) {
	g := &fakeGenerator{err: errors.New("quota exceeded")}
	res := newSynth(g).Synthesize(context.Background(), "q", candidates(), true)
	require.Error(t, res.Err)
	assert.Equal(t, ErrorAnswer, res.Answer)
	require.Len(t, res.Locations, 2)
	assert.Equal(t, 3, res.Locations[1].Page)
}

func TestLocations(t *testing.T) {
	locs := Locations(candidates())
	first := locs[0]
	assert.Equal(t, 2, first.Page)
	assert.Equal(t, 1, first.PageIndex)
	assert.Equal(t, "2", first.Label)
	assert.Equal(t, domain.ChunkText, first.ChunkType)
	assert.Equal(t, "Revenue rose 12% in 2023.", first.HighlightText)
	assert.Equal(t, 37, *first.CharEnd)

	second := locs[1]
	assert.True(t, second.HasTable)
	assert.Equal(t, domain.ChunkTableOnly, second.ChunkType)
	assert.Equal(t, "| Year | Revenue |", second.HighlightText)
	assert.Nil(t, second.CharStart)

	zero := Locations([]domain.SearchResult{{Chunk: domain.Chunk{Text: "x"}}})
	assert.Equal(t, 0, zero[0].PageIndex)
}

func TestSnippet(t *testing.T) {
	short := strings.Repeat("a", 150)
	assert.Equal(t, short, Snippet(short))
	long := strings.Repeat("é", 151)
	assert.Equal(t, strings.Repeat("é", 150)+"...", Snippet(long))
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, "Version 2.1 shipped.", Highlight("Version 2.1 shipped. Then more."))
	assert.Equal(t, "no terminator", Highlight("  no terminator  "))
	assert.Len(t, []rune(Highlight(strings.Repeat("w", 500))), 200)
	assert.Equal(t, "राजस्व बढ़ा।", Highlight("राजस्व बढ़ा। लागत घटी।"))
}

func TestSynthesize_ZeroTemperatureIsKept(t *testing.T) {
	g := &fakeGenerator{answer: "ok"}
	s := NewSynthesizer(g, Options{Temperature: 0}, nil)
	res := s.Synthesize(context.Background(), "q", candidates(), false)
	require.NoError(t, res.Err)
	assert.Zero(t, g.opts.Temperature)
}
