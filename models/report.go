package models

import "time"

type Template string

const (
	TemplateFactual Template = "factual"
	TemplateFull    Template = "full"
)

// Draft is the latest rendered report of a session.
type Draft struct {
	Template  Template  `json:"template"`
	Corrected bool      `json:"corrected"`
	Revision  int       `json:"revision"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (d Draft) Empty() bool {
	return d.Body == ""
}

// ComposeInput carries every upstream artifact the composer may use.
// Directive and Previous are only set on a correction cycle.
type ComposeInput struct {
	Request    string
	Instrument string
	Route      Route
	Context    string
	KeyFigures string
	News       string
	Bull       Opinion
	Bear       Opinion
	Score      string
	Directive  string
	Previous   *Draft
}

func (in ComposeInput) Correcting() bool {
	return in.Directive != "" && in.Previous != nil
}
