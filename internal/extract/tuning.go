package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProfileTuning holds the per-profile numbers that drive rasterization and escalation.
type ProfileTuning struct {
	DPI            int `yaml:"dpi"`
	MinNativeChars int `yaml:"min_native_chars"`
	// AcceptScore is the base-pass score at or above which intensive passes are skipped.
	// Ignored for the fast profile, which always accepts.
	AcceptScore int `yaml:"accept_score"`
}

// Tuning maps each profile to its numbers.
type Tuning map[Profile]ProfileTuning

// DefaultTuning returns the built-in table.
func DefaultTuning() Tuning {
	return Tuning{
		ProfileFast:    {DPI: 300, MinNativeChars: 24, AcceptScore: 0},
		ProfileQuality: {DPI: 450, MinNativeChars: 48, AcceptScore: 140},
		ProfileMaximum: {DPI: 600, MinNativeChars: 72, AcceptScore: 180},
		ProfileUltra:   {DPI: 700, MinNativeChars: 96, AcceptScore: 240},
	}
}

// For returns the numbers for p, falling back to the defaults for profiles t lacks.
func (t Tuning) For(p Profile) ProfileTuning {
	if pt, ok := t[p]; ok {
		return pt
	}
	return DefaultTuning()[p]
}

type tuningOverride struct {
	DPI            *int `yaml:"dpi"`
	MinNativeChars *int `yaml:"min_native_chars"`
	AcceptScore    *int `yaml:"accept_score"`
}

// LoadTuning reads a YAML file of per-profile overrides on top of DefaultTuning:
//
//	profiles:
//	  ultra:
//	    dpi: 800
//	    accept_score: 260
//
// An empty path returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %w", err)
	}
	var doc struct {
		Profiles map[string]tuningOverride `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tuning file: %w", err)
	}
	for name, o := range doc.Profiles {
		p := Profile(name)
		if !p.Valid() {
			return nil, fmt.Errorf("tuning file: unknown profile %q", name)
		}
		pt := t[p]
		if o.DPI != nil {
			pt.DPI = *o.DPI
		}
		if o.MinNativeChars != nil {
			pt.MinNativeChars = *o.MinNativeChars
		}
		if o.AcceptScore != nil {
			pt.AcceptScore = *o.AcceptScore
		}
		t[p] = pt
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks ranges and that higher profiles never ask for less effort.
func (t Tuning) Validate() error {
	var prev ProfileTuning
	for i, p := range Profiles {
		pt := t.For(p)
		if pt.DPI < 72 || pt.DPI > 1200 {
			return fmt.Errorf("tuning: %s dpi %d outside 72-1200", p, pt.DPI)
		}
		if pt.MinNativeChars < 0 || pt.MinNativeChars > MaxMinNativeChars {
			return fmt.Errorf("tuning: %s min_native_chars %d outside 0-%d", p, pt.MinNativeChars, MaxMinNativeChars)
		}
		if pt.AcceptScore < 0 {
			return fmt.Errorf("tuning: %s accept_score must not be negative", p)
		}
		if i > 0 {
			if pt.DPI < prev.DPI {
				return fmt.Errorf("tuning: %s dpi %d below %s dpi %d", p, pt.DPI, Profiles[i-1], prev.DPI)
			}
			// fast always accepts, so only the escalating tiers must be ordered
			if i > 1 && pt.AcceptScore <= prev.AcceptScore {
				return fmt.Errorf("tuning: %s accept_score %d must exceed %s accept_score %d", p, pt.AcceptScore, Profiles[i-1], prev.AcceptScore)
			}
		}
		prev = pt
	}
	return nil
}
