package models

import "strings"

// Classification is the intake decision for one request.
type Classification struct {
	Admissible   bool    `json:"admissible"`
	Reason       string  `json:"reason"`
	InstrumentID *string `json:"instrument_id"`
}

// Instrument returns the normalized instrument id, or "" when none was extracted.
func (c Classification) Instrument() string {
	if c.InstrumentID == nil {
		return ""
	}
	id := strings.ToUpper(strings.TrimSpace(*c.InstrumentID))
	if id == "NULL" || id == "NONE" {
		return ""
	}
	return id
}

// WithInstrument returns a copy carrying id as instrument.
func (c Classification) WithInstrument(id string) Classification {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		c.InstrumentID = nil
		return c
	}
	c.InstrumentID = &id
	return c
}

type Route string

const (
	RouteFactual      Route = "FACTUAL"
	RouteFullAnalysis Route = "FULL_ANALYSIS"
)

func (r Route) Full() bool {
	return r == RouteFullAnalysis
}

type Stance string

const (
	Bullish Stance = "bullish"
	Bearish Stance = "bearish"
)

// Opinion is one independently produced argument set. The argument slice
// is copied on construction and never handed out directly.
type Opinion struct {
	stance     Stance
	arguments  []string
	conclusion string
	raw        string
}

func NewOpinion(stance Stance, arguments []string, conclusion, raw string) Opinion {
	args := make([]string, len(arguments))
	copy(args, arguments)
	return Opinion{stance: stance, arguments: args, conclusion: conclusion, raw: raw}
}

func (o Opinion) Stance() Stance     { return o.stance }
func (o Opinion) Conclusion() string { return o.conclusion }
func (o Opinion) Raw() string        { return o.raw }
func (o Opinion) Len() int           { return len(o.arguments) }
func (o Opinion) Empty() bool        { return len(o.arguments) == 0 }

func (o Opinion) Arguments() []string {
	out := make([]string, len(o.arguments))
	copy(out, o.arguments)
	return out
}

// Markdown renders the opinion the way it is stored as an artifact.
func (o Opinion) Markdown() string {
	var b strings.Builder
	title := "ARGUMENTS FOR BUYING"
	if o.stance == Bearish {
		title = "ARGUMENTS AGAINST BUYING"
	}
	b.WriteString("## " + title + "\n\n")
	for _, a := range o.arguments {
		b.WriteString("- " + a + "\n")
	}
	if o.conclusion != "" {
		b.WriteString("\n**Conclusion:** " + o.conclusion + "\n")
	}
	return b.String()
}
