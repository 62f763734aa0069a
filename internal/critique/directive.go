package critique

import (
	"fmt"
	"strings"
	"time"
)

// Directive is the structured feedback handed to exactly one revision.
type Directive struct {
	Iteration       int
	Score           float64
	Threshold       float64
	MissingSections []string
	NumericProblems []string
	RubricProblems  []string
	Fixes           []string
	Scores          []SubScore
	CreatedAt       time.Time
}

func NewDirective(a Assessment, threshold float64) Directive {
	d := Directive{
		Iteration:       a.Iteration,
		Score:           a.Score,
		Threshold:       threshold,
		MissingSections: append([]string(nil), a.Sections.Missing...),
		NumericProblems: append([]string(nil), a.Figures.Problems...),
		RubricProblems:  append([]string(nil), a.Rubric.Problems...),
		Fixes:           append([]string(nil), a.Rubric.Corrections...),
		Scores:          a.Breakdown(),
		CreatedAt:       time.Now(),
	}
	if a.RubricDegraded {
		d.RubricProblems = append(d.RubricProblems, "evaluation could not be parsed: "+a.RubricReason)
	}
	if len(d.MissingSections) > 0 {
		d.Fixes = append(d.Fixes, "add missing sections: "+strings.Join(d.MissingSections, ", "))
	}
	return d
}

func (d Directive) Empty() bool {
	return len(d.MissingSections) == 0 && len(d.NumericProblems) == 0 &&
		len(d.RubricProblems) == 0 && len(d.Fixes) == 0
}

// Markdown renders the directive as it is fed back to the composer.
func (d Directive) Markdown() string {
	var b strings.Builder
	b.WriteString("# REQUESTED CORRECTIONS\n\n")
	fmt.Fprintf(&b, "Date: %s\n", d.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Report score: %.1f/100 (threshold: %.0f/100)\n", d.Score, d.Threshold)
	b.WriteString("Verdict: NEEDS CORRECTION\n\n---\n\n## PROBLEMS\n\n### 1. Report sections\n")
	if len(d.MissingSections) > 0 {
		b.WriteString("- missing sections: " + strings.Join(d.MissingSections, ", ") + "\n")
	} else {
		b.WriteString("- OK: every section is present\n")
	}

	b.WriteString("\n### 2. Figure consistency\n")
	if len(d.NumericProblems) > 0 {
		for _, p := range d.NumericProblems {
			b.WriteString("- " + p + "\n")
		}
	} else {
		b.WriteString("- OK: figures match the evidence\n")
	}

	b.WriteString("\n### 3. Evaluation findings\n")
	for _, p := range d.RubricProblems {
		b.WriteString("- " + p + "\n")
	}

	b.WriteString("\n---\n\n## CORRECTIONS TO MAKE\n\n")
	for i, f := range d.Fixes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}

	b.WriteString("\n---\n\n## SCORES\n\n| Criterion | Score |\n|---|---|\n")
	for _, s := range d.Scores {
		fmt.Fprintf(&b, "| %s | %.0f/100 |\n", s.Name, s.Value)
	}
	fmt.Fprintf(&b, "| **OVERALL** | **%.1f/100** |\n", d.Score)
	return b.String()
}
