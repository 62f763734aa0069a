package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/agents"
	"github.com/dyike/cortexanalyst/internal/critique"
	"github.com/dyike/cortexanalyst/internal/pipeline"
	"github.com/dyike/cortexanalyst/models"
)

// stageFunc runs one stage, sets st.Goto and returns its outcome.
type stageFunc func(ctx context.Context, st *pipeline.State) models.StageOutcome

// node wraps a stage as a graph lambda. Cancellation is honoured before
// the stage starts, never inside it.
func (p *Pipeline) node(stage string, fn stageFunc) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *pipeline.State) (*pipeline.State, error) {
		st.Goto = compose.END
		if err := ctx.Err(); err != nil {
			st.Fail(consts.StatusCancelled, err)
			return st, nil
		}
		start := p.now()
		out := p.guard(ctx, stage, st, fn)
		if out.Stage == "" {
			out.Stage = stage
		}
		st.Record(out)
		p.emit(st, out, start)
		return st, nil
	})
}

func (p *Pipeline) guard(ctx context.Context, stage string, st *pipeline.State, fn stageFunc) (out models.StageOutcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s: %v", stage, r)
			p.logger.Error("stage panicked", zap.String("stage", stage), zap.Error(err))
			st.Fail(consts.StatusFailed, err)
			st.Goto = compose.END
			out = models.Fatal(stage, err)
		}
	}()
	return fn(ctx, st)
}

func (p *Pipeline) emit(st *pipeline.State, out models.StageOutcome, start time.Time) {
	p.sink.StageEvent(models.StageEvent{
		Session: st.Session,
		Stage:   out.Stage,
		Start:   start,
		End:     p.now(),
		Success: !out.IsFatal(),
		Kind:    out.Kind,
		Error:   out.Reason,
	})
}

func (p *Pipeline) intake(ctx context.Context, st *pipeline.State) models.StageOutcome {
	cls, out := p.stages.Classifier.Classify(ctx, st.Request)
	st.Classification = cls
	st.Instrument = cls.Instrument()
	st.Put(consts.ArtifactClassified, describeClassification(cls))

	if !cls.Admissible {
		st.Fail(consts.StatusRejected, nil)
		return out
	}
	if st.Mode == pipeline.ModeMono {
		st.Route = models.RouteFullAnalysis
	}
	st.Goto = afterIntake(st, p.stages.Confirmer != nil)
	if st.Goto == compose.END {
		st.Fail(consts.StatusUnresolved, pipeline.ErrUnresolvedInstrument)
	}
	return out
}

func describeClassification(c models.Classification) string {
	instrument := c.Instrument()
	if instrument == "" {
		instrument = "none"
	}
	return fmt.Sprintf("admissible: %t\nreason: %s\ninstrument: %s\n", c.Admissible, c.Reason, instrument)
}

func (p *Pipeline) confirm(ctx context.Context, st *pipeline.State) models.StageOutcome {
	id, err := p.stages.Confirmer.Confirm(ctx, st.Request, st.Instrument)
	if err != nil {
		if ctx.Err() != nil {
			st.Fail(consts.StatusCancelled, ctx.Err())
		} else {
			st.Fail(consts.StatusUnresolved, fmt.Errorf("%w: %w", pipeline.ErrUnresolvedInstrument, err))
		}
		return models.Fatal(consts.Confirm, err)
	}
	st.Classification = st.Classification.WithInstrument(id)
	st.Instrument = st.Classification.Instrument()
	if st.Instrument == "" {
		st.Fail(consts.StatusUnresolved, pipeline.ErrUnresolvedInstrument)
		return models.Fatal(consts.Confirm, pipeline.ErrUnresolvedInstrument)
	}
	st.Put(consts.ArtifactClassified, describeClassification(st.Classification))
	st.Goto = afterConfirm(st)
	return models.Success(consts.Confirm)
}

func (p *Pipeline) route(ctx context.Context, st *pipeline.State) models.StageOutcome {
	route, out := p.stages.Router.Route(ctx, st.Request)
	st.Route = route
	st.Goto = consts.Fetch
	return out
}

func (p *Pipeline) fetch(ctx context.Context, st *pipeline.State) models.StageOutcome {
	ev, err := p.stages.Fetcher.Fetch(ctx, st.Instrument)
	if err != nil {
		if ctx.Err() != nil {
			st.Fail(consts.StatusCancelled, ctx.Err())
		} else {
			st.Fail(consts.StatusFetchFailed, err)
		}
		return models.Fatal(consts.Fetch, err)
	}
	st.Evidence = ev
	st.Context = ev.Render()
	st.KeyFigures = ev.KeyFigures()
	st.News = ev.NewsDigest()
	st.Put(consts.ArtifactContext, st.Context)
	st.Goto = afterFetch(st)

	if len(ev.Omitted) > 0 {
		names := make([]string, len(ev.Omitted))
		for i, o := range ev.Omitted {
			names[i] = o.Source
		}
		return models.Degraded(consts.Fetch, "omitted sources: "+strings.Join(names, ", "))
	}
	return models.Success(consts.Fetch)
}

// narrate appends the narrative to the evidence context. On failure the
// context stays the data rendering alone.
func (p *Pipeline) narrate(ctx context.Context, st *pipeline.State) models.StageOutcome {
	narrative, out := p.stages.Narrator.Narrate(ctx, st.Instrument, st.Context)
	st.Goto = afterNarrate(st)
	if out.Kind != models.OutcomeSuccess {
		return out
	}
	st.Narrative = narrative
	st.Put(consts.ArtifactNarrative, narrative)
	st.Context += "\n\n# NARRATIVE\n\n" + narrative + "\n"
	st.Put(consts.ArtifactContext, st.Context)
	return out
}

func (p *Pipeline) stances(ctx context.Context, st *pipeline.State) models.StageOutcome {
	ops := agents.RunStances(ctx, p.stages.Bull, p.stages.Bear, st.Context)
	st.Bull, st.Bear = ops.Bull, ops.Bear
	st.Put(consts.ArtifactBull, ops.Bull.Markdown())
	st.Put(consts.ArtifactBear, ops.Bear.Markdown())
	st.Goto = consts.Score

	var reasons []string
	for _, o := range []models.StageOutcome{ops.BullOutcome, ops.BearOutcome} {
		if o.Kind != models.OutcomeSuccess {
			reasons = append(reasons, o.String())
		}
	}
	if len(reasons) > 0 {
		return models.Degraded(consts.Stances, strings.Join(reasons, "; "))
	}
	return models.Success(consts.Stances)
}

func (p *Pipeline) score(ctx context.Context, st *pipeline.State) models.StageOutcome {
	res, out := p.stages.Scorer.Score(ctx, st.Context, st.Bull, st.Bear)
	st.Score = &res
	st.Put(consts.ArtifactScore, res.Markdown())
	st.Goto = consts.Compose
	return out
}

func (p *Pipeline) composeInput(st *pipeline.State) models.ComposeInput {
	in := models.ComposeInput{
		Request:    st.Request,
		Instrument: st.Instrument,
		Route:      st.Route,
		Context:    st.Context,
		KeyFigures: st.KeyFigures,
		News:       st.News,
		Bull:       st.Bull,
		Bear:       st.Bear,
	}
	if st.Route.Full() && st.Artifacts != nil {
		in.Score, _ = st.Artifacts.Get(consts.ArtifactScore)
	}
	return in
}

func (p *Pipeline) compose(ctx context.Context, st *pipeline.State) models.StageOutcome {
	draft, out := p.stages.Composer.Compose(ctx, p.composeInput(st))
	if out.IsFatal() {
		st.Fail(consts.StatusFailed, fmt.Errorf("compose report: %s", out.Reason))
		return out
	}
	st.Draft = draft
	st.Put(consts.ArtifactDraft, draft.Body)
	st.Goto = consts.Critique
	return out
}

// latestDraft reads the authoritative draft back from the session store.
func latestDraft(st *pipeline.State) (models.Draft, error) {
	if st.Artifacts == nil {
		return models.Draft{}, fmt.Errorf("%w %s", pipeline.ErrMissingArtifact, consts.ArtifactDraft)
	}
	body, ok := st.Artifacts.Get(consts.ArtifactDraft)
	if !ok || strings.TrimSpace(body) == "" {
		return models.Draft{}, fmt.Errorf("%w %s", pipeline.ErrMissingArtifact, consts.ArtifactDraft)
	}
	d := st.Draft
	d.Body = body
	return d, nil
}

func (p *Pipeline) critique(ctx context.Context, st *pipeline.State) models.StageOutcome {
	draft, err := latestDraft(st)
	if err != nil {
		st.Fail(consts.StatusFailed, err)
		return models.Fatal(consts.Critique, err)
	}

	loop := critique.Loop{
		MaxIterations: p.maxIterations,
		Threshold:     p.threshold,
		Rater:         p.stages.Rater,
		Reviser:       &reviser{p: p, st: st},
		OnTransition: func(a critique.Assessment, next critique.State) {
			p.logger.Debug("quality check",
				zap.String("session", st.Session),
				zap.Int("iteration", a.Iteration),
				zap.Float64("score", a.Score),
				zap.Bool("rubric_degraded", a.RubricDegraded),
				zap.String("next", string(next)))
		},
	}
	verdict, final, err := loop.Run(ctx, draft, st.Context)
	st.Verdict = verdict
	st.Draft = final
	st.Put(consts.ArtifactDraft, final.Body)

	switch {
	case errors.Is(err, critique.ErrNoDraft):
		err = fmt.Errorf("%w %s", pipeline.ErrMissingArtifact, consts.ArtifactDraft)
		st.Fail(consts.StatusFailed, err)
		return models.Fatal(consts.Critique, err)
	case errors.Is(err, critique.ErrRevision):
		st.Fail(consts.StatusUnvalidated, err)
		return models.Degraded(consts.Critique, err.Error())
	case err != nil:
		st.Fail(consts.StatusCancelled, err)
		return models.Fatal(consts.Critique, err)
	}
	out := models.Success(consts.Critique)
	out.Reason = string(verdict.Terminal)
	return out
}

// mono checks the single-call report once, without revision.
func (p *Pipeline) mono(ctx context.Context, st *pipeline.State) models.StageOutcome {
	draft, out := p.stages.Mono.Report(ctx, st.Request, st.Instrument, st.Context)
	if out.IsFatal() {
		st.Fail(consts.StatusFailed, fmt.Errorf("mono report: %s", out.Reason))
		return out
	}
	st.Draft = draft
	st.Put(consts.ArtifactDraft, draft.Body)

	threshold := p.threshold
	if threshold <= 0 {
		threshold = critique.DefaultThreshold
	}
	loop := critique.Loop{Threshold: threshold, Rater: p.stages.Rater}
	a := loop.Check(ctx, draft, st.Context)
	a.Iteration = 1
	st.Verdict = critique.Verdict{
		Score:     a.Score,
		Passed:    a.Passes(threshold),
		Iteration: 1,
		Terminal:  critique.TerminalMaxIterations,
		History:   []critique.Assessment{a},
	}
	if st.Verdict.Passed {
		st.Verdict.Terminal = critique.TerminalValidated
	}
	return out
}
