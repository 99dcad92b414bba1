package chunker

import "unicode"

// DefaultSeparators are tried in order: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// span is a half-open rune range [start, end) of a text.
type span struct {
	start int
	end   int
}

func (s span) len() int { return s.end - s.start }

// RecursiveSplitter splits text by a prioritized list of separators and merges
// the pieces into chunks of bounded size with overlap between neighbours.
// Separators are kept at the start of the piece that follows them.
// Sizes are measured in runes.
type RecursiveSplitter struct {
	chunkSize  int
	overlap    int
	separators [][]rune
}

// NewRecursiveSplitter creates a splitter. Zero values fall back to 1000/200.
func NewRecursiveSplitter(chunkSize, overlap int, separators []string) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	seps := make([][]rune, len(separators))
	for i, s := range separators {
		seps[i] = []rune(s)
	}
	return &RecursiveSplitter{chunkSize: chunkSize, overlap: overlap, separators: seps}
}

// ChunkSize returns the maximum chunk length in runes.
func (s *RecursiveSplitter) ChunkSize() int { return s.chunkSize }

// Split returns whitespace-trimmed, non-empty chunk spans of text in order.
func (s *RecursiveSplitter) Split(text []rune) []span {
	if len(text) == 0 {
		return nil
	}
	return s.split(text, span{0, len(text)}, s.separators)
}

func (s *RecursiveSplitter) split(text []rune, sp span, separators [][]rune) []span {
	sep := separators[len(separators)-1]
	var rest [][]rune
	for i, cand := range separators {
		if len(cand) == 0 {
			sep = cand
			break
		}
		if indexRunes(text[sp.start:sp.end], cand) >= 0 {
			sep = cand
			rest = separators[i+1:]
			break
		}
	}

	var out, good []span
	for _, piece := range splitKeepSeparator(text, sp, sep) {
		if piece.len() < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(text, good)...)
			good = nil
		}
		if len(rest) == 0 {
			if t := trimSpan(text, piece); t.len() > 0 {
				out = append(out, t)
			}
			continue
		}
		out = append(out, s.split(text, piece, rest)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(text, good)...)
	}
	return out
}

// merge joins contiguous pieces into chunks no longer than chunkSize where
// possible, carrying up to overlap runes of trailing pieces into the next chunk.
func (s *RecursiveSplitter) merge(text []rune, pieces []span) []span {
	var out, current []span
	total := 0
	for _, p := range pieces {
		l := p.len()
		if total+l > s.chunkSize && len(current) > 0 {
			if t := trimSpan(text, span{current[0].start, current[len(current)-1].end}); t.len() > 0 {
				out = append(out, t)
			}
			for total > s.overlap || (total+l > s.chunkSize && total > 0) {
				total -= current[0].len()
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
	}
	if len(current) > 0 {
		if t := trimSpan(text, span{current[0].start, current[len(current)-1].end}); t.len() > 0 {
			out = append(out, t)
		}
	}
	return out
}

func splitKeepSeparator(text []rune, sp span, sep []rune) []span {
	if len(sep) == 0 {
		out := make([]span, 0, sp.len())
		for i := sp.start; i < sp.end; i++ {
			out = append(out, span{i, i + 1})
		}
		return out
	}
	var out []span
	pieceStart := sp.start
	pos := sp.start
	for pos < sp.end {
		i := indexRunes(text[pos:sp.end], sep)
		if i < 0 {
			break
		}
		at := pos + i
		if at > pieceStart {
			out = append(out, span{pieceStart, at})
		}
		pieceStart = at
		pos = at + len(sep)
	}
	if sp.end > pieceStart {
		out = append(out, span{pieceStart, sp.end})
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	n := len(needle)
	for i := 0; i+n <= len(haystack); i++ {
		match := true
		for j := 0; j < n; j++ {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func trimSpan(text []rune, sp span) span {
	for sp.start < sp.end && unicode.IsSpace(text[sp.start]) {
		sp.start++
	}
	for sp.end > sp.start && unicode.IsSpace(text[sp.end-1]) {
		sp.end--
	}
	return sp
}
