// Package textnorm canonicalizes whitespace and line endings in extracted text.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	lineBreaks     = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n", "\v", "\n")
	horizontalRuns = regexp.MustCompile(`[\t\p{Zs}]+`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	blockSplit     = regexp.MustCompile(`\n\s*\n`)
)

// Normalize returns s in NFC with LF line endings, single spaces, no trailing
// spaces per line, at most one blank line in a row and no surrounding whitespace.
// Normalize is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = lineBreaks.Replace(s)
	s = horizontalRuns.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Trim(l, " ")
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// CompactLen counts the non-whitespace runes in s.
func CompactLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Words splits s on whitespace.
func Words(s string) []string { return strings.Fields(s) }

// Blocks splits normalized text into blank-line delimited blocks.
func Blocks(s string) []string {
	var out []string
	for _, b := range blockSplit.Split(s, -1) {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
