package extract

import (
	"strings"

	"github.com/local/pdfdocx/internal/textnorm"
)

// Merge combines the native text layer and the OCR text of one page without
// repeating content that one side already contains.
func Merge(native, ocrText string) string {
	n := textnorm.Normalize(native)
	o := textnorm.Normalize(ocrText)
	switch {
	case n == "" && o == "":
		return ""
	case n == "":
		return o
	case o == "":
		return n
	case strings.Contains(o, n):
		return o
	case strings.Contains(n, o):
		return n
	default:
		return textnorm.Normalize(n + "\n\n" + o)
	}
}
