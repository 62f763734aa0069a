// Package pipeline holds the state and stage contracts shared by the
// orchestrator and its stages.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/critique"
	"github.com/dyike/cortexanalyst/internal/evidence"
	"github.com/dyike/cortexanalyst/internal/scoring"
	"github.com/dyike/cortexanalyst/internal/session"
	"github.com/dyike/cortexanalyst/models"
)

var (
	ErrMissingArtifact      = errors.New("missing artifact")
	ErrUnresolvedInstrument = errors.New("unresolved instrument")
)

// Session modes.
const (
	ModePipeline = "pipeline"
	ModeMono     = "mono"
)

type Classifier interface {
	Classify(ctx context.Context, request string) (models.Classification, models.StageOutcome)
}

// Confirmer lets a human correct or supply the instrument id. An empty
// answer leaves the instrument unresolved.
type Confirmer interface {
	Confirm(ctx context.Context, request, proposed string) (string, error)
}

type Router interface {
	Route(ctx context.Context, request string) (models.Route, models.StageOutcome)
}

type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (*evidence.Evidence, error)
}

type Narrator interface {
	Narrate(ctx context.Context, instrument, evidence string) (string, models.StageOutcome)
}

type Analyst interface {
	Analyze(ctx context.Context, evidence string) (models.Opinion, models.StageOutcome)
}

type Scorer interface {
	Score(ctx context.Context, evidence string, bull, bear models.Opinion) (scoring.Result, models.StageOutcome)
}

type Composer interface {
	Compose(ctx context.Context, in models.ComposeInput) (models.Draft, models.StageOutcome)
}

type Reporter interface {
	Report(ctx context.Context, request, instrument, evidence string) (models.Draft, models.StageOutcome)
}

// State is the per-run data carried from node to node. Goto names the
// next node.
type State struct {
	Session   string
	Request   string
	Mode      string
	StartedAt time.Time
	Artifacts *session.Artifacts

	Classification models.Classification
	Instrument     string
	Route          models.Route

	Evidence   *evidence.Evidence
	Context    string
	KeyFigures string
	News       string
	Narrative  string

	Bull  models.Opinion
	Bear  models.Opinion
	Score *scoring.Result

	Draft   models.Draft
	Verdict critique.Verdict

	Outcomes []models.StageOutcome
	Status   string
	Err      error
	Goto     string
}

func NewState(id, request, mode string, artifacts *session.Artifacts, now time.Time) *State {
	return &State{
		Session:   id,
		Request:   request,
		Mode:      mode,
		StartedAt: now,
		Artifacts: artifacts,
		Route:     models.RouteFactual,
	}
}

func (s *State) Record(o models.StageOutcome) {
	s.Outcomes = append(s.Outcomes, o)
}

// Degraded reports whether any stage fell back to a default.
func (s *State) Degraded() bool {
	for _, o := range s.Outcomes {
		if o.Kind == models.OutcomeDegraded {
			return true
		}
	}
	return false
}

// Fail ends the run with status and cause.
func (s *State) Fail(status string, err error) {
	s.Status = status
	s.Err = err
}

// Put stores an artifact when the run has a namespace.
func (s *State) Put(key, value string) {
	if s.Artifacts != nil {
		s.Artifacts.Put(key, value)
	}
}

// Outcome is what a finished run reports to its caller.
type Outcome struct {
	Summary        models.SessionSummary
	Classification models.Classification
	Draft          models.Draft
	Verdict        critique.Verdict
	Score          *scoring.Result
	Outcomes       []models.StageOutcome
	Err            error
}

func (o *Outcome) Status() string { return o.Summary.Status }

// HasReport reports whether a draft, validated or not, was produced.
func (o *Outcome) HasReport() bool { return !o.Draft.Empty() }

// Summarize derives the session summary from the final state.
func Summarize(s *State, end time.Time) models.SessionSummary {
	status := s.Status
	if status == "" {
		status = consts.StatusCompleted
		if !s.Verdict.Passed {
			status = consts.StatusUnvalidated
		}
	}
	sum := models.SessionSummary{
		Session:        s.Session,
		Request:        s.Request,
		Instrument:     s.Instrument,
		Mode:           s.Mode,
		Route:          s.Route,
		Status:         status,
		Degraded:       s.Degraded(),
		Iterations:     s.Verdict.Iteration,
		QualityScore:   s.Verdict.Score,
		Validated:      s.Verdict.Passed,
		ValidatedFirst: s.Verdict.FirstPass(),
		BullArguments:  s.Bull.Len(),
		BearArguments:  s.Bear.Len(),
		Duration:       end.Sub(s.StartedAt),
		StartedAt:      s.StartedAt,
	}
	if s.Score != nil {
		sum.CompositeScore = s.Score.Composite
		sum.Recommendation = string(s.Score.Tier)
	}
	return sum
}

// NewOutcome packages the final state.
func NewOutcome(s *State, end time.Time) *Outcome {
	return &Outcome{
		Summary:        Summarize(s, end),
		Classification: s.Classification,
		Draft:          s.Draft,
		Verdict:        s.Verdict,
		Score:          s.Score,
		Outcomes:       append([]models.StageOutcome(nil), s.Outcomes...),
		Err:            s.Err,
	}
}
