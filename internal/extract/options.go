package extract

import (
	"fmt"
	"sort"
	"strings"
)

// Profile is a processing effort tier. Higher tiers rasterize at higher
// resolution, generate more image variants and demand better OCR output.
type Profile string

const (
	ProfileFast    Profile = "fast"
	ProfileQuality Profile = "quality"
	ProfileMaximum Profile = "maximum"
	ProfileUltra   Profile = "ultra"
)

// Profiles lists every profile in increasing order of effort.
var Profiles = []Profile{ProfileFast, ProfileQuality, ProfileMaximum, ProfileUltra}

func (p Profile) rank() int {
	for i, q := range Profiles {
		if q == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool { return p.rank() >= 0 }

// AtLeast reports whether p is q or a higher tier.
func (p Profile) AtLeast(q Profile) bool { return p.rank() >= q.rank() }

// ModeHybrid is the only supported OCR mode: native text first, OCR for sparse pages.
const ModeHybrid = "hybrid"

// MaxMinNativeChars bounds Options.MinNativeCharsPerPage.
const MaxMinNativeChars = 5000

// AllowedLanguages are the OCR language codes accepted in Options.Languages.
var AllowedLanguages = map[string]bool{
	"eng": true, "deu": true, "fra": true, "spa": true, "ita": true, "por": true,
	"nld": true, "pol": true, "ces": true, "slk": true, "slv": true, "hrv": true,
	"srp": true, "bos": true, "hun": true, "ron": true, "rus": true, "ukr": true,
}

// DefaultLanguages is used when a request names none.
var DefaultLanguages = []string{"eng"}

// Options controls one extraction.
type Options struct {
	OCRMode                  string
	Languages                []string
	Profile                  Profile
	IncludePageBreaks        bool
	IncludeConfidenceMarkers bool
	// MinNativeCharsPerPage overrides the profile default when set.
	MinNativeCharsPerPage *int
}

// MinNativeChars returns the resolved per-page native text threshold.
// Only meaningful on options returned by Resolve.
func (o Options) MinNativeChars() int {
	if o.MinNativeCharsPerPage == nil {
		return 0
	}
	return *o.MinNativeCharsPerPage
}

// Resolve validates o and fills defaults from t. The result has a known
// profile, a deduplicated language list and a concrete native-char threshold.
func (o Options) Resolve(t Tuning) (Options, error) {
	out := o
	if out.OCRMode == "" {
		out.OCRMode = ModeHybrid
	}
	if out.OCRMode != ModeHybrid {
		return Options{}, newError(CodeInputInvalid, 0, nil, "unsupported ocr mode %q", o.OCRMode)
	}

	if out.Profile == "" {
		out.Profile = ProfileQuality
	}
	out.Profile = Profile(strings.ToLower(string(out.Profile)))
	if !out.Profile.Valid() {
		return Options{}, newError(CodeInputInvalid, 0, nil, "unknown processing profile %q", o.Profile)
	}

	langs, err := normalizeLanguages(o.Languages)
	if err != nil {
		return Options{}, err
	}
	out.Languages = langs

	var minChars int
	if o.MinNativeCharsPerPage != nil {
		minChars = *o.MinNativeCharsPerPage
		if minChars < 0 || minChars > MaxMinNativeChars {
			return Options{}, newError(CodeInputInvalid, 0, nil, "min native chars per page must be between 0 and %d, got %d", MaxMinNativeChars, minChars)
		}
	} else {
		minChars = t.For(out.Profile).MinNativeChars
	}
	out.MinNativeCharsPerPage = &minChars
	return out, nil
}

func normalizeLanguages(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	var unknown []string
	for _, l := range in {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		if !AllowedLanguages[l] {
			unknown = append(unknown, l)
			continue
		}
		out = append(out, l)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, newError(CodeInputInvalid, 0, nil, "unsupported languages: %s", strings.Join(unknown, ", "))
	}
	if len(out) == 0 {
		out = append(out, DefaultLanguages...)
	}
	return out, nil
}

// ParseLanguages splits a comma or plus separated language list.
func ParseLanguages(s string) []string {
	f := func(r rune) bool { return r == ',' || r == '+' || r == ' ' }
	return strings.FieldsFunc(s, f)
}

func (o Options) String() string {
	return fmt.Sprintf("mode=%s profile=%s langs=%s min_chars=%d breaks=%t markers=%t",
		o.OCRMode, o.Profile, strings.Join(o.Languages, "+"), o.MinNativeChars(), o.IncludePageBreaks, o.IncludeConfidenceMarkers)
}
