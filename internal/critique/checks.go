package critique

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dyike/cortexanalyst/models"
)

// Mandatory section markers per template.
var (
	FullSections = []string{
		"DIRECT ANSWER",
		"INVESTMENT CASE",
		"IDENTIFIED RISKS",
		"KEY FIGURES",
		"SCORE BREAKDOWN",
		"FINAL ADVICE",
	}
	FactualSections = []string{
		"SUMMARY",
		"COMPANY OVERVIEW",
		"CURRENT SITUATION",
		"KEY TAKEAWAYS",
		"RECENT NEWS",
	}
)

func SectionsFor(t models.Template) []string {
	if t == models.TemplateFactual {
		return FactualSections
	}
	return FullSections
}

type SectionCheck struct {
	Score   float64
	Found   []string
	Missing []string
}

func (c SectionCheck) Problem() string {
	if len(c.Missing) == 0 {
		return ""
	}
	return "missing sections: " + strings.Join(c.Missing, ", ")
}

// CheckSections reports the share of mandatory markers present in report.
func CheckSections(report string, sections []string) SectionCheck {
	upper := strings.ToUpper(report)
	var c SectionCheck
	for _, s := range sections {
		if strings.Contains(upper, strings.ToUpper(s)) {
			c.Found = append(c.Found, s)
		} else {
			c.Missing = append(c.Missing, s)
		}
	}
	if len(sections) == 0 {
		c.Score = 100
		return c
	}
	c.Score = float64(len(c.Found)) / float64(len(sections)) * 100
	return c
}

// Labels of the key figures as rendered in the evidence document.
const (
	LabelPrice     = "Current price"
	LabelMarketCap = "Market cap"
	LabelPE        = "P/E (trailing)"
)

var (
	priceRe = figureRe(LabelPrice, `[\d.,]+`)
	capRe   = figureRe(LabelMarketCap, `[\d.,]+\s?[KMBT]?`)
	peRe    = figureRe(LabelPE, `[\d.,]+`)
)

func figureRe(label, value string) *regexp.Regexp {
	return regexp.MustCompile(`\*\*` + regexp.QuoteMeta(label) + `:\*\*\s*(` + value + `)`)
}

type NumericCheck struct {
	Score    float64
	Verified int
	Total    int
	Problems []string
}

func (c NumericCheck) Problem() string {
	return strings.Join(c.Problems, "; ")
}

// CheckFigures extracts price, market cap and P/E from the evidence
// document and verifies each appears literally in the report. Market cap
// only has to match on its leading six characters.
func CheckFigures(report, evidence string) NumericCheck {
	var c NumericCheck

	if m := priceRe.FindStringSubmatch(evidence); m != nil {
		c.Total++
		v := strings.TrimRight(m[1], ".,")
		if containsFigure(report, v) {
			c.Verified++
		} else {
			c.Problems = append(c.Problems, fmt.Sprintf("current price (%s) missing or different in the report", v))
		}
	}
	if m := capRe.FindStringSubmatch(evidence); m != nil {
		c.Total++
		v := strings.TrimSpace(m[1])
		prefix := v
		if len(prefix) > 6 {
			prefix = prefix[:6]
		}
		if strings.Contains(report, prefix) {
			c.Verified++
		} else {
			c.Problems = append(c.Problems, fmt.Sprintf("market cap (%s) missing or different in the report", v))
		}
	}
	if m := peRe.FindStringSubmatch(evidence); m != nil {
		c.Total++
		v := strings.TrimRight(m[1], ".,")
		if containsFigure(report, v) {
			c.Verified++
		} else {
			c.Problems = append(c.Problems, fmt.Sprintf("P/E ratio (%s) missing or different in the report", v))
		}
	}

	if c.Total == 0 {
		c.Score = 100
		return c
	}
	c.Score = float64(c.Verified) / float64(c.Total) * 100
	return c
}

// containsFigure accepts the literal value, its decimal-comma spelling and
// the value with trailing fractional zeros dropped.
func containsFigure(report, v string) bool {
	if v == "" {
		return false
	}
	for _, cand := range figureVariants(v) {
		if strings.Contains(report, cand) {
			return true
		}
	}
	return false
}

func figureVariants(v string) []string {
	out := []string{v}
	if strings.Contains(v, ".") && !strings.Contains(v, ",") {
		out = append(out, strings.ReplaceAll(v, ".", ","))
		if trimmed := strings.TrimRight(v, "0"); trimmed != v && !strings.HasSuffix(trimmed, ".") {
			out = append(out, trimmed)
		}
	}
	if strings.Contains(v, ",") && !strings.Contains(v, ".") {
		out = append(out, strings.ReplaceAll(v, ",", "."))
	}
	return out
}
