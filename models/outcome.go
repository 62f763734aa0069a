package models

import "fmt"

type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeDegraded OutcomeKind = "degraded"
	OutcomeFatal    OutcomeKind = "fatal"
)

// StageOutcome is the typed result every stage reports.
type StageOutcome struct {
	Stage  string      `json:"stage"`
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

func Success(stage string) StageOutcome {
	return StageOutcome{Stage: stage, Kind: OutcomeSuccess}
}

func Degraded(stage, reason string) StageOutcome {
	return StageOutcome{Stage: stage, Kind: OutcomeDegraded, Reason: reason}
}

func Fatal(stage string, err error) StageOutcome {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return StageOutcome{Stage: stage, Kind: OutcomeFatal, Reason: reason}
}

func (o StageOutcome) OK() bool      { return o.Kind != OutcomeFatal }
func (o StageOutcome) IsFatal() bool { return o.Kind == OutcomeFatal }

func (o StageOutcome) String() string {
	if o.Reason == "" {
		return fmt.Sprintf("%s: %s", o.Stage, o.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", o.Stage, o.Kind, o.Reason)
}
