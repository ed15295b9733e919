package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ══════════════════════════════════════════════════════════════════════════════
// Test Helpers
// ══════════════════════════════════════════════════════════════════════════════

// collapseSpace reduces any run of whitespace to a single space so text
// can be compared modulo formatting.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joinedText(chunks []Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return collapseSpace(strings.Join(parts, " "))
}

// repeatSentence builds text of roughly n units from a stock sentence.
func repeatSentence(n int) string {
	const sentence = "The quick brown fox jumps over the lazy dog near the river bank today." // ~17 units
	var b strings.Builder
	for EstimateUnits(b.String()) < n {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(sentence)
	}
	return b.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// EstimateUnits Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestEstimateUnits(t *testing.T) {
	assert.Equal(t, 0, EstimateUnits(""))
	assert.Equal(t, 0, EstimateUnits("   "))
	assert.Equal(t, 1, EstimateUnits("Hi"))
	assert.Equal(t, 25, EstimateUnits(strings.Repeat("a", 100)))
}

// ══════════════════════════════════════════════════════════════════════════════
// Split Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestSplitEmptyText(t *testing.T) {
	_, err := Split("   \n\n  ", DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	chunks, err := Split("Hello world. This is a short test.", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Hello world. This is a short test.", chunks[0].Text)
}

func TestSplitParagraphBoundariesFirst(t *testing.T) {
	// Two paragraphs that together exceed the target but individually
	// fit: the blank line wins over sentence packing.
	para := repeatSentence(200)
	text := para + "\n\n" + para

	chunks, err := Split(text, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestSplitCoverageInvariant(t *testing.T) {
	texts := []string{
		"One sentence.",
		"First. Second. Third!",
		repeatSentence(600),
		repeatSentence(300) + "\n\nSecond paragraph here. " + repeatSentence(280),
		"Dr. Smith went to Washington. He arrived at 3 p.m. sharp and left quickly.",
	}
	for _, text := range texts {
		chunks, err := Split(text, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, collapseSpace(text), joinedText(chunks))
	}
}

func TestSplitBudgetInvariant(t *testing.T) {
	chunks, err := Split(repeatSentence(2000), DefaultOptions())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Units, AbsoluteMaxUnits, "chunk %d", c.Index)
		assert.Less(t, c.Units, HardCeilingUnits)
	}
}

func TestSplitIndicesSequential(t *testing.T) {
	chunks, err := Split(repeatSentence(1000), DefaultOptions())
	require.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSplitForcedBreakForRunawaySentence(t *testing.T) {
	// A single "sentence" with no terminal punctuation, far over the
	// absolute budget: only whitespace breaks remain.
	words := strings.Repeat("word ", 2500)
	chunks, err := Split(strings.TrimSpace(words), DefaultOptions())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Units, AbsoluteMaxUnits)
	}
	assert.Equal(t, collapseSpace(words), joinedText(chunks))
}

func TestSplitShortTailMerged(t *testing.T) {
	// Force a tiny trailing fragment and check it folds into the
	// previous chunk instead of becoming its own synthesis call.
	text := repeatSentence(260) + " Bye."
	chunks, err := Split(text, DefaultOptions())
	require.NoError(t, err)
	last := chunks[len(chunks)-1]
	assert.GreaterOrEqual(t, last.Units, MinChunkUnits)
	assert.Equal(t, collapseSpace(text), joinedText(chunks))
}

func TestSplitAbbreviationsNotBoundaries(t *testing.T) {
	sentences := SplitSentences("Dr. Smith arrived. He met Mr. Jones at the office. They left.")
	require.Len(t, sentences, 3)
	assert.Equal(t, "Dr. Smith arrived.", sentences[0])
	assert.Equal(t, "He met Mr. Jones at the office.", sentences[1])
	assert.Equal(t, "They left.", sentences[2])
}

func TestSplitCustomBreakFunc(t *testing.T) {
	called := false
	opts := DefaultOptions()
	opts.Break = func(para string) []string {
		called = true
		return strings.SplitAfter(para, ";")
	}

	_, err := Split(repeatSentence(300), opts)
	require.NoError(t, err)
	assert.True(t, called, "custom break function must drive sentence detection")
}

// ══════════════════════════════════════════════════════════════════════════════
// SplitSentences Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestSplitSentencesNoPunctuation(t *testing.T) {
	got := SplitSentences("no terminal punctuation here")
	assert.Equal(t, []string{"no terminal punctuation here"}, got)
}

func TestSplitSentencesMixedTerminators(t *testing.T) {
	got := SplitSentences("Really? Yes! Good.")
	assert.Equal(t, []string{"Really?", "Yes!", "Good."}, got)
}
