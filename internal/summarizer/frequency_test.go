package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	text := "Revenue grew in every region. The office cat is orange. " +
		"Regional revenue growth was strongest in Asia. Revenue targets were raised."
	out, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.NotContains(t, out, "cat")
	assert.Contains(t, out, "Revenue")
}

func TestSummarize_IgnoresTableRows(t *testing.T) {
	text := "| Revenue | Revenue | Revenue |\n|---|---|---|\n| 1. | 2. | 3. |\nThe report covers two quarters."
	out, err := NewFrequencySummarizer().Summarize(text, 3)
	require.NoError(t, err)
	assert.Equal(t, "The report covers two quarters.", out)
}

func TestSummarize_NoSentenceTerminator(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize("  a heading   without   punctuation ", 3)
	require.NoError(t, err)
	assert.Equal(t, "a heading without punctuation", out)
}

func TestSummarize_Devanagari(t *testing.T) {
	text := "राजस्व बढ़ा। राजस्व लक्ष्य बढ़ाए गए। बिल्ली नारंगी है।"
	out, err := NewFrequencySummarizer().Summarize(text, 1)
	require.NoError(t, err)
	assert.Contains(t, out, "राजस्व")
}

func TestSummarize_Deterministic(t *testing.T) {
	text := "One two. Three four. Five six. Seven eight."
	s := NewFrequencySummarizer()
	a, _ := s.Summarize(text, 2)
	b, _ := s.Summarize(text, 2)
	assert.Equal(t, a, b)
	assert.Equal(t, "One two. Three four.", a)
}
