// Package chunker splits long text into synthesis-sized chunks. The
// backend models accept a bounded number of phonetic units per call, so
// text is divided along natural boundaries: paragraphs first, sentences
// within an oversized paragraph, and forced whitespace breaks only as a
// last resort for a single runaway sentence.
package chunker

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Unit budgets. The hard ceiling is the backend's architectural limit;
// the absolute max leaves headroom below it, and the target max is where
// chunks sound best.
const (
	TargetMaxUnits   = 250
	AbsoluteMaxUnits = 450
	HardCeilingUnits = 510

	// MinChunkUnits is the smallest chunk worth synthesizing alone; a
	// shorter tail merges into its predecessor.
	MinChunkUnits = 20
)

// unitsPerChar approximates phonetic units from character count. True
// unit counts require the backend's phonemizer; four characters per
// unit is the calibrated fallback.
const unitsPerChar = 0.25

var ErrEmptyText = errors.New("text is empty")

// BreakFunc splits a paragraph into sentences. The concatenation of the
// returned pieces must reproduce the paragraph modulo whitespace.
type BreakFunc func(paragraph string) []string

// Chunk is one synthesis unit of the source text.
type Chunk struct {
	Index int
	Text  string
	Units int
}

// Options control chunk sizing and sentence detection.
type Options struct {
	TargetMaxUnits   int
	AbsoluteMaxUnits int
	MinChunkUnits    int

	// Break overrides the sentence splitter. Nil uses SplitSentences.
	Break BreakFunc
}

// DefaultOptions returns the calibrated chunking budgets.
func DefaultOptions() Options {
	return Options{
		TargetMaxUnits:   TargetMaxUnits,
		AbsoluteMaxUnits: AbsoluteMaxUnits,
		MinChunkUnits:    MinChunkUnits,
	}
}

// EstimateUnits approximates the phonetic unit count of text.
func EstimateUnits(text string) int {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	units := int(float64(n) * unitsPerChar)
	if units < 1 && n > 0 {
		units = 1
	}
	return units
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// Split divides text into chunks that each fit the unit budgets. Chunks
// appear in source order and their concatenation reproduces the input
// modulo whitespace. Empty or whitespace-only input is an error.
func Split(text string, opts Options) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if opts.TargetMaxUnits <= 0 {
		opts.TargetMaxUnits = TargetMaxUnits
	}
	if opts.AbsoluteMaxUnits <= 0 {
		opts.AbsoluteMaxUnits = AbsoluteMaxUnits
	}
	if opts.MinChunkUnits < 0 {
		opts.MinChunkUnits = MinChunkUnits
	}
	breakFn := opts.Break
	if breakFn == nil {
		breakFn = SplitSentences
	}

	var texts []string
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		texts = append(texts, chunkParagraph(para, opts, breakFn)...)
	}

	texts = mergeShortTail(texts, opts)

	chunks := make([]Chunk, len(texts))
	for i, ct := range texts {
		chunks[i] = Chunk{Index: i, Text: ct, Units: EstimateUnits(ct)}
	}

	log.Debug().
		Int("chunks", len(chunks)).
		Int("total_units", EstimateUnits(text)).
		Msg("text chunked")
	return chunks, nil
}

// chunkParagraph packs a paragraph's sentences into chunks up to the
// target budget, forcing a whitespace break only when one sentence alone
// overflows the absolute budget.
func chunkParagraph(para string, opts Options, breakFn BreakFunc) []string {
	if EstimateUnits(para) <= opts.TargetMaxUnits {
		return []string{para}
	}

	var chunks []string
	var current strings.Builder
	currentUnits := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentUnits = 0
		}
	}

	for _, sentence := range breakFn(para) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		units := EstimateUnits(sentence)

		if units > opts.AbsoluteMaxUnits {
			// No natural boundary fits; break on whitespace. Prosody
			// suffers at the seam, so record the degradation.
			log.Warn().
				Int("units", units).
				Int("limit", opts.AbsoluteMaxUnits).
				Msg("sentence exceeds unit budget, forcing whitespace break")
			flush()
			chunks = append(chunks, forceBreak(sentence, opts.TargetMaxUnits)...)
			continue
		}

		if currentUnits+units > opts.TargetMaxUnits {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentUnits += units
	}
	flush()

	return chunks
}

// forceBreak splits on whitespace into pieces under the unit budget. A
// single word longer than the budget becomes its own piece; words are
// never cut mid-token.
func forceBreak(sentence string, maxUnits int) []string {
	var pieces []string
	var current strings.Builder
	currentUnits := 0

	for _, word := range strings.Fields(sentence) {
		units := EstimateUnits(word)
		if currentUnits+units > maxUnits && current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			currentUnits = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
		currentUnits += units
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// mergeShortTail folds a trailing fragment below the minimum budget into
// the previous chunk when the merge still fits the absolute budget.
func mergeShortTail(chunks []string, opts Options) []string {
	n := len(chunks)
	if n < 2 {
		return chunks
	}
	last := chunks[n-1]
	if EstimateUnits(last) >= opts.MinChunkUnits {
		return chunks
	}
	merged := chunks[n-2] + " " + last
	if EstimateUnits(merged) > opts.AbsoluteMaxUnits {
		return chunks
	}
	log.Debug().Str("tail", last).Msg("merging short tail chunk")
	return append(chunks[:n-2], merged)
}

// Common abbreviations that end with a period but not a sentence.
var abbreviations = []string{
	"Dr.", "Mr.", "Mrs.", "Ms.", "Prof.", "Sr.", "Jr.",
	"St.", "Ave.", "Rd.", "Blvd.", "Dept.", "Inc.", "Ltd.",
	"Co.", "Corp.", "etc.", "vs.", "i.e.", "e.g.", "Ph.D.",
}

var sentenceEnd = regexp.MustCompile(`([.!?]+)\s+`)

// SplitSentences is the default BreakFunc: it splits after terminal
// punctuation followed by whitespace, keeping the punctuation with its
// sentence and skipping boundaries that land on known abbreviations.
func SplitSentences(text string) []string {
	matches := sentenceEnd.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var sentences []string
	lastEnd := 0
	for _, m := range matches {
		candidate := strings.TrimSpace(text[lastEnd:m[1]])
		if endsWithAbbreviation(candidate) {
			continue
		}
		sentences = append(sentences, candidate)
		lastEnd = m[1]
	}
	if rest := strings.TrimSpace(text[lastEnd:]); rest != "" {
		sentences = append(sentences, rest)
	}
	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

func endsWithAbbreviation(s string) bool {
	for _, abbrev := range abbreviations {
		if strings.HasSuffix(s, abbrev) {
			return true
		}
	}
	return false
}
