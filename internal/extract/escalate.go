package extract

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/local/pdfdocx/internal/metrics"
	"github.com/local/pdfdocx/internal/ocr"
	"github.com/local/pdfdocx/internal/variants"
)

// pass is one OCR configuration tried against a variant.
type pass struct {
	name  string
	seg   ocr.Segmentation
	flags map[string]string
}

var (
	passLayout = pass{name: "layout", seg: ocr.PageLayout}
	passBlock  = pass{name: "block", seg: ocr.UniformBlock, flags: map[string]string{ocr.PreserveInterwordSpaces: "1"}}
	passSparse = pass{name: "sparse", seg: ocr.SparseText}
	passColumn = pass{name: "column", seg: ocr.SingleColumn}
)

// baseVariants is how many leading variants the base pass covers.
const baseVariants = 2

// variantSet maps a profile to the optional image variants it needs.
func variantSet(p Profile) variants.Set {
	return variants.Set{
		Threshold: p.AtLeast(ProfileMaximum),
		Sharpened: p.AtLeast(ProfileUltra),
	}
}

// escalation records what the controller did for one page.
type escalation struct {
	winner     *Candidate
	passes     int
	escalated  bool
	baseScore  int
	candidates []Candidate
}

type escalator struct {
	engine  ocr.Engine
	langs   []string
	profile Profile
	accept  int
	workDir string
	log     zerolog.Logger
}

// run drives base passes, decides on escalation and picks the winner.
// Any engine failure aborts the page.
func (e *escalator) run(ctx context.Context, vs []variants.Variant) (escalation, error) {
	var res escalation

	basePasses := []pass{passLayout}
	if e.profile != ProfileFast {
		basePasses = append(basePasses, passBlock)
	}
	n := baseVariants
	if len(vs) < n {
		n = len(vs)
	}
	for _, v := range vs[:n] {
		for _, p := range basePasses {
			if err := e.try(ctx, v, p, &res); err != nil {
				return res, err
			}
		}
	}

	if i := best(res.candidates); i >= 0 {
		res.baseScore = res.candidates[i].Score
	}
	accepted := e.profile == ProfileFast || (len(res.candidates) > 0 && res.baseScore >= e.accept)
	e.log.Debug().
		Int("base_score", res.baseScore).
		Int("accept_score", e.accept).
		Bool("accepted", accepted).
		Msg("base pass evaluated")

	if !accepted {
		res.escalated = true
		metrics.IncEscalation(string(e.profile))
		intensive := []pass{passSparse}
		if e.profile == ProfileUltra {
			intensive = append(intensive, passColumn)
		}
		for _, v := range vs {
			for _, p := range intensive {
				if err := e.try(ctx, v, p, &res); err != nil {
					return res, err
				}
			}
		}
	}

	if i := best(res.candidates); i >= 0 {
		w := res.candidates[i]
		res.winner = &w
	}
	return res, nil
}

func (e *escalator) try(ctx context.Context, v variants.Variant, p pass, res *escalation) error {
	out, err := e.engine.Recognize(ctx, ocr.Request{
		ImagePath:    v.Path,
		Languages:    e.langs,
		Segmentation: p.seg,
		Flags:        p.flags,
		OutputBase:   filepath.Join(e.workDir, fmt.Sprintf("%s-%s", v.Label, p.name)),
	})
	res.passes++
	if err != nil {
		metrics.IncOCRPass(p.name, "error")
		return fmt.Errorf("ocr %s pass on %s variant: %w", p.name, v.Label, err)
	}
	metrics.IncOCRPass(p.name, "ok")

	c := Candidate{Variant: v.Label, Pass: p.name, Text: out.Text, Confidence: out.Confidence, Score: Score(out.Text)}
	res.candidates = append(res.candidates, c)

	ev := e.log.Debug().Str("variant", v.Label).Str("pass", p.name).Int("score", c.Score)
	if c.Confidence != nil {
		ev = ev.Float64("confidence", *c.Confidence)
	}
	ev.Msg("ocr candidate")
	return nil
}
