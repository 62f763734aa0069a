package scoring

import (
	"fmt"
	"math"
	"strings"
)

const (
	MinRating     = 0
	MaxRating     = 10
	NeutralRating = 5
)

type Tier string

const (
	StrongSell  Tier = "strong sell"
	Hold        Tier = "hold/neutral"
	ModerateBuy Tier = "moderate buy"
	StrongBuy   Tier = "strong buy"
)

// TierFor maps a composite score to its recommendation. Cut points are
// inclusive upper bounds.
func TierFor(score float64) Tier {
	switch {
	case score <= 3:
		return StrongSell
	case score <= 5:
		return Hold
	case score <= 7:
		return ModerateBuy
	default:
		return StrongBuy
	}
}

// Clamp bounds a rating to [0,10].
func Clamp(r int) int {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}

// Line is one weighted criterion of a breakdown.
type Line struct {
	Criterion     Criterion
	Raw           int
	Rating        int
	Weight        float64
	Contribution  float64
	Justification string
	Defaulted     bool
}

// Result is the locally computed scoring outcome.
type Result struct {
	Lines      []Line
	Composite  float64
	Tier       Tier
	Conclusion string
	Degraded   bool
	Reason     string
}

// Composite is Σ clamp(rating)·weight, rounded to 4 decimals so exact
// boundary scores such as 3.0 are not lost to float drift.
func Composite(ratings map[Criterion]int, w Weights) float64 {
	sum := 0.0
	for _, c := range Criteria {
		r, ok := ratings[c]
		if !ok {
			r = NeutralRating
		}
		sum += float64(Clamp(r)) * w[c]
	}
	return math.Round(sum*1e4) / 1e4
}

// Compute builds the full breakdown. Criteria absent from ratings get the
// neutral rating and mark the result degraded.
func Compute(ratings map[Criterion]int, justifications map[Criterion]string, w Weights) Result {
	res := Result{Lines: make([]Line, 0, len(Criteria))}
	complete := make(map[Criterion]int, len(Criteria))
	var missing []string
	for _, c := range Criteria {
		raw, ok := ratings[c]
		if !ok {
			raw = NeutralRating
			missing = append(missing, string(c))
		}
		rating := Clamp(raw)
		complete[c] = rating
		just := strings.TrimSpace(justifications[c])
		if just == "" {
			just = "N/A"
		}
		res.Lines = append(res.Lines, Line{
			Criterion:     c,
			Raw:           raw,
			Rating:        rating,
			Weight:        w[c],
			Contribution:  float64(rating) * w[c],
			Justification: just,
			Defaulted:     !ok,
		})
	}
	res.Composite = Composite(complete, w)
	res.Tier = TierFor(res.Composite)
	if len(missing) > 0 {
		res.Degraded = true
		res.Reason = "missing ratings: " + strings.Join(missing, ", ")
	}
	return res
}

// Neutral is the fallback when no usable rating came back.
func Neutral(w Weights, reason string) Result {
	res := Compute(map[Criterion]int{}, nil, w)
	res.Conclusion = "Automatic scoring unavailable; every criterion rated neutral."
	res.Degraded = true
	res.Reason = reason
	return res
}

// Markdown renders the breakdown stored as the score artifact.
func (r Result) Markdown() string {
	var b strings.Builder
	b.WriteString("# SCORE VERDICT\n\n")
	fmt.Fprintf(&b, "## Composite score: %.1f/10\n", r.Composite)
	fmt.Fprintf(&b, "**Recommendation: %s**\n", strings.ToUpper(string(r.Tier)))
	if r.Degraded {
		fmt.Fprintf(&b, "\n> Degraded scoring: %s\n", r.Reason)
	}
	b.WriteString("\n---\n\n## Per-criterion breakdown\n\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "- **%s**: %d/10 (x%d%% = %.2f)\n  _%s_\n",
			l.Criterion.Label(), l.Rating, int(math.Round(l.Weight*100)), l.Contribution, l.Justification)
	}
	if r.Conclusion != "" {
		b.WriteString("\n---\n\n## Conclusion\n" + r.Conclusion + "\n")
	}
	b.WriteString("\n---\n\n### Methodology\nScore = Σ(rating × coefficient) over:\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "- %s: %d%%\n", l.Criterion.Label(), int(math.Round(l.Weight*100)))
	}
	return b.String()
}
