package extract

import (
	"math"
	"unicode"

	"github.com/local/pdfdocx/internal/textnorm"
)

const (
	wordWeight       = 3
	noisePenalty     = 40
	minAlnumRatio    = 0.45
	confidenceWeight = 1.5
)

// Candidate is the output of one OCR pass over one image variant.
type Candidate struct {
	Variant    string
	Pass       string
	Text       string
	Confidence *float64
	// Score is the text-only quality score, see Score.
	Score int
}

// Score rates OCR text by how much plausible text it holds:
// non-whitespace runes plus three per word, minus 40 when fewer than 45%
// of those runes are letters or digits. Empty text scores -40.
func Score(text string) int {
	norm := textnorm.Normalize(text)
	compact, alnum := 0, 0
	for _, r := range norm {
		if unicode.IsSpace(r) {
			continue
		}
		compact++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	score := compact + len(textnorm.Words(norm))*wordWeight

	ratio := 0.0
	if compact > 0 {
		ratio = float64(alnum) / float64(compact)
	}
	if ratio < minAlnumRatio {
		score -= noisePenalty
	}
	return score
}

// SelectionScore ranks candidates across passes: Score plus round(1.5 × confidence)
// when the engine reported one.
func (c Candidate) SelectionScore() int {
	if c.Confidence == nil {
		return c.Score
	}
	return c.Score + int(math.Round(*c.Confidence*confidenceWeight))
}

// best returns the index of the highest SelectionScore; the earliest wins ties.
// It returns -1 for an empty slice.
func best(cands []Candidate) int {
	idx := -1
	for i, c := range cands {
		if idx < 0 || c.SelectionScore() > cands[idx].SelectionScore() {
			idx = i
		}
	}
	return idx
}
