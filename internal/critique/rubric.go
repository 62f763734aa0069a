package critique

import (
	"strings"

	"github.com/dyike/cortexanalyst/internal/parser"
)

// Rubric is the reasoning service's independent evaluation of a draft.
type Rubric struct {
	Argumentation  float64  `json:"argumentation"`
	Recommendation float64  `json:"recommendation"`
	Sources        float64  `json:"sources"`
	Coherence      float64  `json:"coherence"`
	Problems       []string `json:"problems"`
	Corrections    []string `json:"corrections"`
	Verdict        string   `json:"verdict"`
}

const neutralSubRating = 5

// NeutralRubric is used whenever the evaluation could not be obtained.
func NeutralRubric() Rubric {
	return Rubric{
		Argumentation:  neutralSubRating,
		Recommendation: neutralSubRating,
		Sources:        neutralSubRating,
		Coherence:      neutralSubRating,
		Problems:       []string{"automatic evaluation unavailable"},
	}
}

// DecodeRubric parses the evaluation answer, falling back to neutral
// sub-ratings.
func DecodeRubric(raw string) parser.Result[Rubric] {
	res := parser.Decode(raw, NeutralRubric())
	if res.Degraded() {
		return res
	}
	r := res.Value()
	r.Problems = compact(r.Problems)
	r.Corrections = compact(r.Corrections)
	return parser.Ok(r)
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
