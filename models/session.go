package models

import "time"

// StageEvent is emitted once per executed stage.
type StageEvent struct {
	Session string      `json:"session"`
	Stage   string      `json:"stage"`
	Start   time.Time   `json:"start"`
	End     time.Time   `json:"end"`
	Success bool        `json:"success"`
	Kind    OutcomeKind `json:"kind"`
	Error   string      `json:"error,omitempty"`
}

func (e StageEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// SessionSummary is emitted once when a session terminates.
type SessionSummary struct {
	Session        string        `json:"session"`
	Request        string        `json:"request"`
	Instrument     string        `json:"instrument"`
	Mode           string        `json:"mode"`
	Route          Route         `json:"route"`
	Status         string        `json:"status"`
	Degraded       bool          `json:"degraded"`
	Iterations     int           `json:"iterations"`
	QualityScore   float64       `json:"quality_score"`
	Validated      bool          `json:"validated"`
	ValidatedFirst bool          `json:"validated_first_pass"`
	CompositeScore float64       `json:"composite_score"`
	Recommendation string        `json:"recommendation"`
	BullArguments  int           `json:"bull_arguments"`
	BearArguments  int           `json:"bear_arguments"`
	Duration       time.Duration `json:"duration"`
	StartedAt      time.Time     `json:"started_at"`
}
