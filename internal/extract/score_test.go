package extract

import (
	"strings"
	"testing"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"empty is penalized", "", -40},
		{"whitespace only", " \n\t ", -40},
		{"one word", "hello", 5 + 3},
		{"two words", "hello world", 10 + 6},
		{"accented letters count as alnum", "Žluťoučký kůň", 12 + 6},
		{"cyrillic counts as alnum", "привет мир", 9 + 6},
		{"noise penalized", "|| ~~ ## .. ,,", 10 + 15 - 40},
		{"digits", "2024 12 31", 8 + 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.text); got != tc.want {
				t.Fatalf("Score(%q) = %d, want %d", tc.text, got, tc.want)
			}
		})
	}
}

func TestScoreRatioBoundary(t *testing.T) {
	// 9 alnum of 20 compact runes = 0.45 exactly: no penalty
	text := "abcdefghi" + strings.Repeat("-", 11)
	if got := Score(text); got != 20+3 {
		t.Fatalf("Score at ratio 0.45 = %d, want 23", got)
	}
	// 8 of 20 = 0.40: penalty
	text = "abcdefgh" + strings.Repeat("-", 12)
	if got := Score(text); got != 20+3-40 {
		t.Fatalf("Score below ratio = %d, want -17", got)
	}
}

func TestScoreMonotonic(t *testing.T) {
	prev := Score(words(1))
	for n := 2; n < 40; n++ {
		s := Score(words(n))
		if s <= prev {
			t.Fatalf("Score(%d words) = %d not above %d", n, s, prev)
		}
		prev = s
	}
	base := "Invoice number 42 due today"
	if Score(base+" please pay") < Score(base) {
		t.Fatal("superset of words scored lower")
	}
}

func TestSelectionScore(t *testing.T) {
	c := Candidate{Score: 100}
	if c.SelectionScore() != 100 {
		t.Fatalf("no confidence: %d", c.SelectionScore())
	}
	c.Confidence = conf(83)
	// round(124.5) = 125
	if c.SelectionScore() != 225 {
		t.Fatalf("with confidence: %d", c.SelectionScore())
	}
}

func TestBestPrefersFirstOnTies(t *testing.T) {
	cands := []Candidate{
		{Variant: "raw", Score: 50},
		{Variant: "normalized", Score: 70},
		{Variant: "threshold", Score: 70},
		{Variant: "sharpened", Score: 20, Confidence: conf(30)},
	}
	if i := best(cands); i != 1 {
		t.Fatalf("best = %d, want 1", i)
	}
	cands[3].Confidence = conf(40)
	if i := best(cands); i != 3 {
		t.Fatalf("best with confidence boost = %d, want 3", i)
	}
	if best(nil) != -1 {
		t.Fatal("best(nil) must be -1")
	}
}
