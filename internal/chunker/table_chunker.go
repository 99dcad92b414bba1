package chunker

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"docqa/internal/domain"
)

// TableAwareChunker splits page text into length-bounded chunks while keeping
// markdown pipe tables intact. Tables are swapped for placeholder tokens before
// splitting and restored afterwards, so a chunk holding a table may exceed the
// nominal size. Tables whose placeholder did not survive splitting whole are
// emitted as standalone table_only chunks.
type TableAwareChunker struct {
	splitter *RecursiveSplitter
}

// NewTableAwareChunker creates a chunker with the given size and overlap in runes.
func NewTableAwareChunker(chunkSize, overlap int) *TableAwareChunker {
	return &TableAwareChunker{splitter: NewRecursiveSplitter(chunkSize, overlap, nil)}
}

type table struct {
	text  string
	start int
	end   int
}

// region maps a range of the working text back to the original text.
// table is -1 for plain text regions.
type region struct {
	work  span
	orig  span
	table int
}

// Chunk splits the text of one page. Offsets on the returned chunks are rune
// offsets into text.
func (c *TableAwareChunker) Chunk(text string, page int, source string) []domain.Chunk {
	orig := []rune(text)
	tables := findTables(orig)
	open, closing := placeholderAffixes(text)
	work, regions := substitute(orig, tables, open, closing)

	embedded := make([]bool, len(tables))
	var chunks []domain.Chunk
	for _, sp := range c.splitter.Split(work) {
		body, used := restore(orig, sp, regions, tables)
		trimmed := strings.TrimSpace(body)
		if trimmed == "" {
			continue
		}
		start := mapStart(sp.start, regions)
		end := mapEnd(sp.end, regions)
		start += leadingSpace(body)
		end -= trailingSpace(body)
		if end < start {
			end = start
		}
		ch := domain.Chunk{
			Text:      trimmed,
			Page:      page,
			Source:    source,
			Type:      domain.ChunkText,
			CharStart: intPtr(start),
			CharEnd:   intPtr(end),
		}
		if len(used) > 0 {
			ch.HasTable = true
			ch.Type = domain.ChunkMixed
			for _, t := range used {
				embedded[t] = true
			}
		}
		chunks = append(chunks, ch)
	}

	for i, t := range tables {
		if embedded[i] {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:      t.text,
			Page:      page,
			Source:    source,
			HasTable:  true,
			Type:      domain.ChunkTableOnly,
			CharStart: intPtr(t.start),
			CharEnd:   intPtr(t.end),
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return *chunks[i].CharStart < *chunks[j].CharStart
	})
	return chunks
}

// findTables returns contiguous runs of at least two lines whose trimmed form
// starts with a pipe.
func findTables(text []rune) []table {
	var tables []table
	runStart, runEnd, runLines := 0, 0, 0
	flush := func() {
		if runLines >= 2 {
			tables = append(tables, table{text: string(text[runStart:runEnd]), start: runStart, end: runEnd})
		}
		runLines = 0
	}
	for lineStart := 0; lineStart <= len(text); {
		lineEnd := lineStart
		for lineEnd < len(text) && text[lineEnd] != '\n' {
			lineEnd++
		}
		if isTableLine(text[lineStart:lineEnd]) {
			if runLines == 0 {
				runStart = lineStart
			}
			runEnd = lineEnd
			runLines++
		} else {
			flush()
		}
		lineStart = lineEnd + 1
	}
	flush()
	return tables
}

func isTableLine(line []rune) bool {
	return strings.HasPrefix(strings.TrimSpace(string(line)), "|")
}

// placeholderAffixes picks token brackets that do not already occur in text.
func placeholderAffixes(text string) (string, string) {
	open, closing := "[[", "]]"
	for strings.Contains(text, open+"TABLE_") {
		open += "["
		closing += "]"
	}
	return open, closing
}

func substitute(orig []rune, tables []table, open, closing string) ([]rune, []region) {
	work := make([]rune, 0, len(orig))
	var regions []region
	appendText := func(from, to int) {
		if to <= from {
			return
		}
		ws := len(work)
		work = append(work, orig[from:to]...)
		regions = append(regions, region{work: span{ws, len(work)}, orig: span{from, to}, table: -1})
	}
	cursor := 0
	for i, t := range tables {
		appendText(cursor, t.start)
		ws := len(work)
		work = append(work, []rune(fmt.Sprintf("%sTABLE_%d%s", open, i, closing))...)
		regions = append(regions, region{work: span{ws, len(work)}, orig: span{t.start, t.end}, table: i})
		cursor = t.end
	}
	appendText(cursor, len(orig))
	return work, regions
}

// restore rebuilds the original text for a working-text span. Placeholders
// cut by the span are dropped; whole ones are replaced by their table.
func restore(orig []rune, sp span, regions []region, tables []table) (string, []int) {
	var b strings.Builder
	var used []int
	for _, r := range regions {
		lo, hi := max(sp.start, r.work.start), min(sp.end, r.work.end)
		if lo >= hi {
			continue
		}
		if r.table < 0 {
			off := r.orig.start - r.work.start
			b.WriteString(string(orig[lo+off : hi+off]))
			continue
		}
		if lo == r.work.start && hi == r.work.end {
			b.WriteString(tables[r.table].text)
			used = append(used, r.table)
		}
	}
	return b.String(), used
}

func mapStart(p int, regions []region) int {
	for _, r := range regions {
		if p < r.work.start || p >= r.work.end {
			continue
		}
		if r.table < 0 {
			return r.orig.start + p - r.work.start
		}
		if p == r.work.start {
			return r.orig.start
		}
		return r.orig.end
	}
	if n := len(regions); n > 0 {
		return regions[n-1].orig.end
	}
	return 0
}

func mapEnd(p int, regions []region) int {
	for _, r := range regions {
		if p <= r.work.start || p > r.work.end {
			continue
		}
		if r.table < 0 {
			return r.orig.start + p - r.work.start
		}
		if p == r.work.end {
			return r.orig.end
		}
		return r.orig.start
	}
	return 0
}

func leadingSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}

func trailingSpace(s string) int {
	rs := []rune(s)
	n := 0
	for i := len(rs) - 1; i >= 0 && unicode.IsSpace(rs[i]); i-- {
		n++
	}
	return n
}

func intPtr(v int) *int { return &v }
