package critique

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/cortexanalyst/internal/parser"
	"github.com/dyike/cortexanalyst/models"
)

type State string

const (
	Checking   State = "CHECKING"
	Correcting State = "CORRECTING"
	Validated  State = "VALIDATED"
	Exhausted  State = "EXHAUSTED"
)

type Terminal string

const (
	TerminalValidated     Terminal = "VALIDATED"
	TerminalMaxIterations Terminal = "MAX_ITERATIONS_EXCEEDED"
)

const DefaultMaxIterations = 3

var (
	ErrNoDraft  = errors.New("no report draft to check")
	ErrRevision = errors.New("report revision failed")
)

// Verdict is the outcome of one gate run.
type Verdict struct {
	Score     float64
	Passed    bool
	Iteration int
	Terminal  Terminal
	History   []Assessment
}

// FirstPass reports whether the first draft was accepted as is.
func (v Verdict) FirstPass() bool {
	return v.Passed && v.Iteration == 1
}

type Rater interface {
	Rate(ctx context.Context, draft models.Draft, evidence string) parser.Result[Rubric]
}

type Reviser interface {
	Revise(ctx context.Context, d Directive, previous models.Draft) (models.Draft, error)
}

// Loop is the bounded check/correct cycle. The zero value of
// MaxIterations and Threshold selects the defaults.
type Loop struct {
	MaxIterations int
	Threshold     float64
	Rater         Rater
	Reviser       Reviser

	// OnTransition, if set, observes every CHECKING result together with
	// the state it leads to.
	OnTransition func(a Assessment, next State)
}

func (l *Loop) maxIterations() int {
	if l.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return l.MaxIterations
}

func (l *Loop) threshold() float64 {
	if l.Threshold <= 0 {
		return DefaultThreshold
	}
	return l.Threshold
}

// Check runs one CHECKING pass without changing any loop state.
func (l *Loop) Check(ctx context.Context, draft models.Draft, evidence string) Assessment {
	rubric := parser.Fallback(NeutralRubric(), "no rater configured")
	if l.Rater != nil {
		rubric = l.Rater.Rate(ctx, draft, evidence)
	}
	return Assess(draft, evidence, rubric)
}

// Run drives the state machine from CHECKING until VALIDATED or
// EXHAUSTED. It always returns the latest draft; on EXHAUSTED that draft is
// unvalidated. A cancelled context is honoured before each revision.
func (l *Loop) Run(ctx context.Context, draft models.Draft, evidence string) (Verdict, models.Draft, error) {
	if draft.Empty() {
		return Verdict{}, draft, ErrNoDraft
	}
	limit := l.maxIterations()
	threshold := l.threshold()

	var (
		v         Verdict
		pending   *Directive
		iteration int
		state     = Checking
	)
	for {
		switch state {
		case Checking:
			iteration++
			a := l.Check(ctx, draft, evidence)
			a.Iteration = iteration
			v.History = append(v.History, a)
			v.Score = a.Score
			v.Iteration = iteration

			switch {
			case a.Passes(threshold):
				state = Validated
			case iteration < limit:
				d := NewDirective(a, threshold)
				pending = &d
				state = Correcting
			default:
				state = Exhausted
			}
			if l.OnTransition != nil {
				l.OnTransition(a, state)
			}

		case Correcting:
			if err := ctx.Err(); err != nil {
				return v, draft, fmt.Errorf("critique interrupted: %w", err)
			}
			if l.Reviser == nil {
				v.Terminal = TerminalMaxIterations
				return v, draft, fmt.Errorf("%w: no reviser configured", ErrRevision)
			}
			d := *pending
			pending = nil
			revised, err := l.Reviser.Revise(ctx, d, draft)
			if err != nil {
				v.Terminal = TerminalMaxIterations
				return v, draft, fmt.Errorf("%w: %w", ErrRevision, err)
			}
			draft = revised
			state = Checking

		case Validated:
			v.Passed = true
			v.Terminal = TerminalValidated
			return v, draft, nil

		case Exhausted:
			v.Terminal = TerminalMaxIterations
			return v, draft, nil
		}
	}
}
