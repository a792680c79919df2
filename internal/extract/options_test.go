package extract

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestResolveDefaults(t *testing.T) {
	for _, tc := range []struct {
		profile Profile
		want    int
	}{
		{ProfileFast, 24}, {ProfileQuality, 48}, {ProfileMaximum, 72}, {ProfileUltra, 96},
	} {
		o, err := Options{Profile: tc.profile}.Resolve(DefaultTuning())
		if err != nil {
			t.Fatalf("%s: %v", tc.profile, err)
		}
		if o.MinNativeChars() != tc.want {
			t.Fatalf("%s min chars = %d, want %d", tc.profile, o.MinNativeChars(), tc.want)
		}
		if o.OCRMode != ModeHybrid || !reflect.DeepEqual(o.Languages, []string{"eng"}) {
			t.Fatalf("%s resolved = %+v", tc.profile, o)
		}
	}

	o, err := Options{}.Resolve(DefaultTuning())
	if err != nil || o.Profile != ProfileQuality {
		t.Fatalf("empty options = %+v, %v", o, err)
	}
}

func TestResolveOverrideAndLanguages(t *testing.T) {
	o, err := Options{
		Profile:               "ULTRA",
		Languages:             []string{"deu", " ENG ", "deu", ""},
		MinNativeCharsPerPage: intPtr(0),
	}.Resolve(DefaultTuning())
	if err != nil {
		t.Fatal(err)
	}
	if o.Profile != ProfileUltra || o.MinNativeChars() != 0 {
		t.Fatalf("resolved = %+v", o)
	}
	if !reflect.DeepEqual(o.Languages, []string{"deu", "eng"}) {
		t.Fatalf("languages = %v", o.Languages)
	}
}

func TestResolveRejects(t *testing.T) {
	cases := map[string]Options{
		"mode":         {OCRMode: "ocr-only"},
		"profile":      {Profile: "insane"},
		"language":     {Languages: []string{"eng", "klingon"}},
		"min too high": {MinNativeCharsPerPage: intPtr(5001)},
		"min negative": {MinNativeCharsPerPage: intPtr(-1)},
	}
	for name, o := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := o.Resolve(DefaultTuning())
			if CodeOf(err) != CodeInputInvalid {
				t.Fatalf("err = %v, want INPUT_INVALID", err)
			}
		})
	}
}

func TestParseLanguages(t *testing.T) {
	got := ParseLanguages("eng+deu, fra")
	if !reflect.DeepEqual(got, []string{"eng", "deu", "fra"}) {
		t.Fatalf("ParseLanguages = %v", got)
	}
}

func TestDefaultTuningIsMonotonic(t *testing.T) {
	if err := DefaultTuning().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadTuning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	body := "profiles:\n  ultra:\n    dpi: 800\n    accept_score: 260\n  fast:\n    min_native_chars: 10\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	tun, err := LoadTuning(path)
	if err != nil {
		t.Fatal(err)
	}
	if u := tun.For(ProfileUltra); u.DPI != 800 || u.AcceptScore != 260 || u.MinNativeChars != 96 {
		t.Fatalf("ultra = %+v", u)
	}
	if f := tun.For(ProfileFast); f.MinNativeChars != 10 || f.DPI != 300 {
		t.Fatalf("fast = %+v", f)
	}

	def, err := LoadTuning("")
	if err != nil || def.For(ProfileQuality).AcceptScore != 140 {
		t.Fatalf("LoadTuning(\"\") = %+v, %v", def, err)
	}
}

func TestLoadTuningRejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown profile":      "profiles:\n  turbo:\n    dpi: 300\n",
		"non monotonic score":  "profiles:\n  maximum:\n    accept_score: 100\n",
		"dpi out of range":     "profiles:\n  fast:\n    dpi: 10\n",
		"dpi below lower tier": "profiles:\n  quality:\n    dpi: 250\n",
		"bad yaml":             "profiles: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "t.yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadTuning(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
