package scoring

import (
	"math"
	"strings"

	"github.com/dyike/cortexanalyst/internal/parser"
)

// Response is the wire shape requested from the reasoning service.
type Response struct {
	Scores         map[string]float64 `json:"scores"`
	Justifications map[string]string  `json:"justifications"`
	Conclusion     string             `json:"conclusion"`
}

// Decode parses a scoring answer and computes the result locally. A parse
// failure falls back to neutral ratings for every criterion.
func Decode(raw string, w Weights) Result {
	res := parser.Decode(raw, Response{})
	if res.Degraded() {
		return Neutral(w, "parse error: "+res.Reason())
	}
	return FromResponse(res.Value(), w)
}

// rawBound keeps float-to-int conversion of wild ratings well defined while
// still recording that the answer was out of range.
const rawBound = 1000

// FromResponse rounds the returned ratings and recomputes everything from
// them; nothing but the ratings themselves is trusted.
func FromResponse(resp Response, w Weights) Result {
	ratings := make(map[Criterion]int, len(resp.Scores))
	for k, v := range resp.Scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		ratings[normalizeKey(k)] = int(math.Round(math.Max(-rawBound, math.Min(rawBound, v))))
	}
	justs := make(map[Criterion]string, len(resp.Justifications))
	for k, v := range resp.Justifications {
		justs[normalizeKey(k)] = v
	}
	out := Compute(ratings, justs, w)
	out.Conclusion = strings.TrimSpace(resp.Conclusion)
	return out
}

func normalizeKey(k string) Criterion {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	return Criterion(k)
}
