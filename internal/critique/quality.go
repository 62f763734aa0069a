package critique

import (
	"math"

	"github.com/dyike/cortexanalyst/internal/parser"
	"github.com/dyike/cortexanalyst/models"
)

// Sub-score weights of the composite quality score, out of 100.
const (
	WeightStructural     = 20
	WeightNumeric        = 25
	WeightArgumentation  = 20
	WeightRecommendation = 15
	WeightSources        = 10
	WeightCoherence      = 10
)

const DefaultThreshold = 50.0

// Assessment is the result of one CHECKING pass.
type Assessment struct {
	Iteration int
	Sections  SectionCheck
	Figures   NumericCheck
	Rubric    Rubric
	Score     float64

	// RubricDegraded forces a correction regardless of Score.
	RubricDegraded bool
	RubricReason   string
}

// Assess is a pure function of its inputs.
func Assess(draft models.Draft, evidence string, rubric parser.Result[Rubric]) Assessment {
	a := Assessment{
		Sections:       CheckSections(draft.Body, SectionsFor(draft.Template)),
		Figures:        CheckFigures(draft.Body, evidence),
		Rubric:         rubric.Value(),
		RubricDegraded: rubric.Degraded(),
		RubricReason:   rubric.Reason(),
	}
	a.Score = Combine(a.Sections.Score, a.Figures.Score, a.Rubric)
	return a
}

// Combine weights every sub-score into a 0–100 composite rounded to one
// decimal. Rubric ratings are on a 0–10 scale.
func Combine(structural, numeric float64, r Rubric) float64 {
	total := clampPct(structural)*WeightStructural +
		clampPct(numeric)*WeightNumeric +
		rubricPct(r.Argumentation)*WeightArgumentation +
		rubricPct(r.Recommendation)*WeightRecommendation +
		rubricPct(r.Sources)*WeightSources +
		rubricPct(r.Coherence)*WeightCoherence
	return math.Round(total/100*10) / 10
}

func rubricPct(v float64) float64 {
	return clampPct(v * 10)
}

func clampPct(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// Passes reports whether the assessment clears threshold without a forced
// correction.
func (a Assessment) Passes(threshold float64) bool {
	return !a.RubricDegraded && a.Score >= threshold
}

// Breakdown lists the weighted sub-scores for display.
func (a Assessment) Breakdown() []SubScore {
	return []SubScore{
		{"Sections complete", a.Sections.Score},
		{"Figures correct", a.Figures.Score},
		{"Argumentation", rubricPct(a.Rubric.Argumentation)},
		{"Recommendation", rubricPct(a.Rubric.Recommendation)},
		{"Sources cited", rubricPct(a.Rubric.Sources)},
		{"Overall coherence", rubricPct(a.Rubric.Coherence)},
	}
}

type SubScore struct {
	Name  string
	Value float64
}
