package chunker

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

const sampleTable = "| Name | Value |\n|------|-------|\n| a | 1 |\n| b | 2 |"

func spanTexts(text string, spans []span) []string {
	rs := []rune(text)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = string(rs[sp.start:sp.end])
	}
	return out
}

func TestRecursiveSplitter_MergesWords(t *testing.T) {
	s := NewRecursiveSplitter(10, 0, nil)
	text := "aaaa bbbb cccc"
	assert.Equal(t, []string{"aaaa bbbb", "cccc"}, spanTexts(text, s.Split([]rune(text))))
}

func TestRecursiveSplitter_PrefersParagraphs(t *testing.T) {
	s := NewRecursiveSplitter(20, 0, nil)
	text := "first para here\n\nsecond para here"
	assert.Equal(t, []string{"first para here", "second para here"}, spanTexts(text, s.Split([]rune(text))))
}

func TestRecursiveSplitter_Empty(t *testing.T) {
	s := NewRecursiveSplitter(10, 2, nil)
	assert.Empty(t, s.Split(nil))
	assert.Empty(t, s.Split([]rune("   \n\n  ")))
}

func TestTableAwareChunker_ShortTextSingleChunk(t *testing.T) {
	c := NewTableAwareChunker(1000, 200)
	chunks := c.Chunk("  Hello world.  ", 3, "doc.pdf")
	require.Len(t, chunks, 1)
	ch := chunks[0]
	assert.Equal(t, "Hello world.", ch.Text)
	assert.Equal(t, domain.ChunkText, ch.Type)
	assert.False(t, ch.HasTable)
	assert.Equal(t, 3, ch.Page)
	assert.Equal(t, "doc.pdf", ch.Source)
	require.NotNil(t, ch.CharStart)
	require.NotNil(t, ch.CharEnd)
	assert.Equal(t, 2, *ch.CharStart)
	assert.Equal(t, 14, *ch.CharEnd)
}

func TestTableAwareChunker_EmptyText(t *testing.T) {
	c := NewTableAwareChunker(1000, 200)
	assert.Empty(t, c.Chunk("", 1, "doc.pdf"))
	assert.Empty(t, c.Chunk(" \n\t\n ", 1, "doc.pdf"))
}

func TestTableAwareChunker_TableEmbeddedInText(t *testing.T) {
	c := NewTableAwareChunker(1000, 200)
	text := "Intro paragraph.\n\n" + sampleTable + "\n\nClosing words."
	chunks := c.Chunk(text, 1, "doc.pdf")
	require.Len(t, chunks, 1)
	ch := chunks[0]
	assert.Equal(t, domain.ChunkMixed, ch.Type)
	assert.True(t, ch.HasTable)
	assert.Contains(t, ch.Text, sampleTable)
	assert.Equal(t, text, ch.Text)
	assert.Equal(t, 0, *ch.CharStart)
	assert.Equal(t, len([]rune(text)), *ch.CharEnd)
}

func TestTableAwareChunker_TableExemptFromSizeCap(t *testing.T) {
	var rows []string
	rows = append(rows, "| Quarter | Revenue | Cost |", "|---|---|---|")
	for i := 0; i < 8; i++ {
		rows = append(rows, fmt.Sprintf("| Q%d | %d | %d |", i+1, 1000+i, 500+i))
	}
	tbl := strings.Join(rows, "\n")
	text := "Header text.\n\n" + tbl + "\n\nFooter text."

	c := NewTableAwareChunker(50, 10)
	chunks := c.Chunk(text, 2, "doc.pdf")

	var holder *domain.Chunk
	for i := range chunks {
		if strings.Contains(chunks[i].Text, tbl) {
			holder = &chunks[i]
		}
	}
	require.NotNil(t, holder, "table must be kept intact in one chunk")
	assert.True(t, holder.HasTable)
	assert.Greater(t, len([]rune(holder.Text)), 50)
}

func TestTableAwareChunker_SinglePipeLineIsText(t *testing.T) {
	c := NewTableAwareChunker(1000, 200)
	chunks := c.Chunk("| just one line\nplain text", 1, "doc.pdf")
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.ChunkText, chunks[0].Type)
	assert.False(t, chunks[0].HasTable)
}

func TestTableAwareChunker_CutPlaceholderBecomesTableOnly(t *testing.T) {
	tbl := "| a | b |\n| 1 | 2 |"
	c := NewTableAwareChunker(5, 0)
	chunks := c.Chunk(tbl, 1, "doc.pdf")
	require.Len(t, chunks, 1)
	ch := chunks[0]
	assert.Equal(t, domain.ChunkTableOnly, ch.Type)
	assert.True(t, ch.HasTable)
	assert.Equal(t, tbl, ch.Text)
	assert.Equal(t, 0, *ch.CharStart)
	assert.Equal(t, len([]rune(tbl)), *ch.CharEnd)
}

func TestTableAwareChunker_TableOnlyHasHeaderAndRow(t *testing.T) {
	inputs := []string{
		"| a | b |\n| 1 | 2 |",
		"before\n| x | y |\n|---|---|\n| 3 | 4 |\nafter",
		strings.Repeat("word ", 40) + "\n| h1 | h2 |\n| v1 | v2 |\n" + strings.Repeat("tail ", 40),
	}
	for _, in := range inputs {
		for _, size := range []int{5, 12, 40, 1000} {
			for _, ch := range NewTableAwareChunker(size, size/5).Chunk(in, 1, "doc.pdf") {
				if ch.Type != domain.ChunkTableOnly {
					continue
				}
				pipeLines := 0
				for _, line := range strings.Split(ch.Text, "\n") {
					if strings.HasPrefix(strings.TrimSpace(line), "|") {
						pipeLines++
					}
				}
				assert.GreaterOrEqual(t, pipeLines, 2, "input %q size %d", in, size)
			}
		}
	}
}

func TestTableAwareChunker_OffsetsNonDecreasing(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "Sentence number %d is here. ", i)
		if i == 20 {
			b.WriteString("\n\n" + sampleTable + "\n\n")
		}
	}
	text := b.String()
	for _, size := range []int{12, 60, 200, 1000} {
		chunks := NewTableAwareChunker(size, size/4).Chunk(text, 1, "doc.pdf")
		require.NotEmpty(t, chunks)
		for i := 1; i < len(chunks); i++ {
			assert.LessOrEqual(t, *chunks[i-1].CharStart, *chunks[i].CharStart, "size %d chunk %d", size, i)
			assert.LessOrEqual(t, *chunks[i-1].CharEnd, *chunks[i].CharEnd, "size %d chunk %d", size, i)
		}
	}
}

func TestTableAwareChunker_LongProseBoundedWithOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "Sentence number %d is here. ", i)
	}
	text := b.String()
	rs := []rune(text)

	chunks := NewTableAwareChunker(200, 50).Chunk(text, 1, "doc.pdf")
	require.Greater(t, len(chunks), 1)
	overlapped := false
	for i, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 200)
		assert.Equal(t, string(rs[*ch.CharStart:*ch.CharEnd]), ch.Text)
		if i > 0 && *ch.CharStart < *chunks[i-1].CharEnd {
			overlapped = true
		}
	}
	assert.True(t, overlapped)
}

func TestTableAwareChunker_LiteralPlaceholderInText(t *testing.T) {
	text := "See [[TABLE_0]] below.\n\n" + sampleTable
	chunks := NewTableAwareChunker(1000, 200).Chunk(text, 1, "doc.pdf")
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.True(t, chunks[0].HasTable)
}

func TestTableAwareChunker_Deterministic(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma. ", 120) + "\n\n" + sampleTable
	c := NewTableAwareChunker(300, 60)
	assert.Equal(t, c.Chunk(text, 4, "doc.pdf"), c.Chunk(text, 4, "doc.pdf"))
}

func TestTableAwareChunker_GeneratedTextsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"revenue", "grew", "क्षेत्र", "में", "वृद्धि", "the", "plan", strings.Repeat("x", 35), "total."}
	for n := 0; n < 300; n++ {
		var b strings.Builder
		var tbls []string
		for para := 0; para < 1+rng.Intn(5); para++ {
			if rng.Intn(3) == 0 {
				rows := []string{"| h1 | h2 |"}
				for r := 0; r < 1+rng.Intn(4); r++ {
					rows = append(rows, fmt.Sprintf("| %d | %s |", r, words[rng.Intn(len(words))]))
				}
				tbl := strings.Join(rows, "\n")
				tbls = append(tbls, tbl)
				b.WriteString(tbl + "\n\n")
				continue
			}
			for w := 0; w < rng.Intn(40); w++ {
				b.WriteString(words[rng.Intn(len(words))] + " ")
			}
			b.WriteString("\n\n")
		}
		text := b.String()
		rs := []rune(text)
		chunks := NewTableAwareChunker(120, 30).Chunk(text, 1, "doc.pdf")

		joined := ""
		for i, ch := range chunks {
			require.NotEmpty(t, strings.TrimSpace(ch.Text), "text %d chunk %d", n, i)
			assert.Equal(t, string(rs[*ch.CharStart:*ch.CharEnd]), ch.Text, "text %d chunk %d", n, i)
			if ch.Type == domain.ChunkText {
				assert.LessOrEqual(t, len([]rune(ch.Text)), 120, "text %d chunk %d", n, i)
			}
			if i > 0 {
				assert.LessOrEqual(t, *chunks[i-1].CharStart, *ch.CharStart, "text %d chunk %d", n, i)
				assert.LessOrEqual(t, *chunks[i-1].CharEnd, *ch.CharEnd, "text %d chunk %d", n, i)
			}
			joined += ch.Text + "\n"
		}
		for _, tbl := range tbls {
			assert.Contains(t, joined, tbl, "text %d lost a table", n)
		}
	}
}
