// Package answer turns retrieved chunks into a generated answer and the
// page locations that back it.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"docqa/internal/domain"
)

// ErrorAnswer is returned to the user when generation fails.
const ErrorAnswer = "I encountered an error while processing your question. Please try again."

const (
	snippetRunes   = 150
	highlightRunes = 200
)

const preamble = `You are an intelligent document assistant. Answer the question based ONLY on the provided context from the document.

Rules:
1. Answer the question directly and concisely.
2. Use information ONLY from the provided context.
3. If the context does not contain enough information to answer the question, say "I cannot find sufficient information in the provided documents to answer this question."
4. Reference page numbers when discussing specific information.
5. Be precise and factual.`

const tableRules = `
6. The question is about tabular data. Blocks between [TABLE START] and [TABLE END] are tables in markdown form; read values from the correct row and column and restate them exactly as written.`

// Options tunes generation.
type Options struct {
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Result is the outcome of one synthesis. Err is set when generation failed;
// Answer then holds ErrorAnswer and Locations are still populated.
type Result struct {
	Answer         string
	Locations      []domain.Location
	GenerationTime time.Duration
	Err            error
}

// Synthesizer builds the prompt, calls the generator and derives locations.
type Synthesizer struct {
	generator domain.Generator
	opts      Options
	logger    *slog.Logger
}

// NewSynthesizer wires a synthesizer. Temperature is used as given, zero included.
func NewSynthesizer(generator domain.Generator, opts Options, logger *slog.Logger) *Synthesizer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{generator: generator, opts: opts, logger: logger}
}

// Model reports the generator model name.
func (s *Synthesizer) Model() string { return s.generator.Model() }

func (s *Synthesizer) Synthesize(ctx context.Context, question string, candidates []domain.SearchResult, tableQuery bool) Result {
	res := Result{Locations: Locations(candidates)}
	prompt := BuildPrompt(question, candidates, tableQuery)

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := s.generator.Generate(ctx, prompt, domain.GenerateOptions{
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	res.GenerationTime = time.Since(start)
	if err != nil {
		s.logger.Error("answer generation failed", "model", s.generator.Model(), "error", err)
		res.Answer = ErrorAnswer
		res.Err = err
		return res
	}
	res.Answer = text
	return res
}

// BuildPrompt renders the instructions, the numbered context blocks and the question.
func BuildPrompt(question string, candidates []domain.SearchResult, tableQuery bool) string {
	var b strings.Builder
	b.WriteString(preamble)
	if tableQuery {
		b.WriteString(tableRules)
	}
	b.WriteString("\n\nContext from the document:\n\n")
	b.WriteString(BuildContext(candidates))
	fmt.Fprintf(&b, "\n\nQuestion: %s\n\nProvide a clear and accurate answer based on the context above.", question)
	return b.String()
}

// BuildContext renders one block per candidate.
func BuildContext(candidates []domain.SearchResult) string {
	blocks := make([]string, 0, len(candidates))
	for i, c := range candidates {
		var b strings.Builder
		fmt.Fprintf(&b, "[Document %d - Page %d", i+1, c.Chunk.Page)
		if c.Chunk.HasTable {
			b.WriteString(" - CONTAINS TABLE DATA")
		}
		b.WriteString("]\n")
		if c.Chunk.Type == domain.ChunkTableOnly {
			b.WriteString("[TABLE START]\n")
			b.WriteString(c.Chunk.Text)
			b.WriteString("\n[TABLE END]\n")
		} else {
			b.WriteString(c.Chunk.Text)
			b.WriteString("\n")
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// Locations projects candidates for the viewer, in candidate order.
func Locations(candidates []domain.SearchResult) []domain.Location {
	locs := make([]domain.Location, 0, len(candidates))
	for _, c := range candidates {
		ch := c.Chunk
		pageIndex := 0
		if ch.Page > 0 {
			pageIndex = ch.Page - 1
		}
		t := ch.Type
		if t == "" {
			t = domain.ChunkText
		}
		locs = append(locs, domain.Location{
			Page:          ch.Page,
			PageIndex:     pageIndex,
			Label:         strconv.Itoa(ch.Page),
			Snippet:       Snippet(ch.Text),
			FullText:      ch.Text,
			HasTable:      ch.HasTable,
			ChunkType:     t,
			CharStart:     ch.CharStart,
			CharEnd:       ch.CharEnd,
			HighlightText: Highlight(ch.Text),
		})
	}
	return locs
}

// Snippet caps text at 150 runes, marking the cut with "...".
func Snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetRunes {
		return text
	}
	return string([]rune(text)[:snippetRunes]) + "..."
}

// Highlight returns the first sentence or line of text, capped at 200 runes.
func Highlight(text string) string {
	text = strings.TrimSpace(text)
	rs := []rune(text)
	end := len(rs)
	for i, r := range rs {
		if r == '\n' {
			end = i
			break
		}
		if strings.ContainsRune(".!?।", r) && (i+1 == len(rs) || rs[i+1] == ' ' || rs[i+1] == '\n') {
			end = i + 1
			break
		}
	}
	end = min(end, highlightRunes)
	return strings.TrimSpace(string(rs[:end]))
}
