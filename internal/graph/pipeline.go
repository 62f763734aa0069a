// Package graph runs one analysis session as an eino graph of stages.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/critique"
	"github.com/dyike/cortexanalyst/internal/observe"
	"github.com/dyike/cortexanalyst/internal/pipeline"
	"github.com/dyike/cortexanalyst/internal/session"
)

// Stages are the collaborators the graph drives. Confirmer and Mono are
// optional.
type Stages struct {
	Classifier pipeline.Classifier
	Confirmer  pipeline.Confirmer
	Router     pipeline.Router
	Fetcher    pipeline.Fetcher
	Narrator   pipeline.Narrator
	Bull       pipeline.Analyst
	Bear       pipeline.Analyst
	Scorer     pipeline.Scorer
	Composer   pipeline.Composer
	Rater      critique.Rater
	Mono       pipeline.Reporter
}

func (s Stages) validate() error {
	required := []struct {
		name string
		set  bool
	}{
		{"classifier", s.Classifier != nil},
		{"router", s.Router != nil},
		{"fetcher", s.Fetcher != nil},
		{"narrator", s.Narrator != nil},
		{"bull analyst", s.Bull != nil},
		{"bear analyst", s.Bear != nil},
		{"scorer", s.Scorer != nil},
		{"composer", s.Composer != nil},
		{"rater", s.Rater != nil},
	}
	for _, r := range required {
		if !r.set {
			return fmt.Errorf("missing stage: %s", r.name)
		}
	}
	return nil
}

type Option func(*Pipeline)

func WithRegistry(r *session.Registry) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.registry = r
		}
	}
}

func WithSink(s observe.Sink) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.sink = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMaxIterations(n int) Option {
	return func(p *Pipeline) { p.maxIterations = n }
}

func WithThreshold(t float64) Option {
	return func(p *Pipeline) { p.threshold = t }
}

// WithArchive controls whether finished sessions are handed to the
// registry's archivers.
func WithArchive(on bool) Option {
	return func(p *Pipeline) { p.archive = on }
}

// WithProgress receives node names as the graph enters them.
func WithProgress(fn func(node string)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

type Pipeline struct {
	stages        Stages
	registry      *session.Registry
	sink          observe.Sink
	logger        *zap.Logger
	maxIterations int
	threshold     float64
	archive       bool
	progress      func(node string)
	now           func() time.Time

	runnable compose.Runnable[*pipeline.State, *pipeline.State]
}

// New validates the stages and compiles the graph.
func New(ctx context.Context, stages Stages, opts ...Option) (*Pipeline, error) {
	if err := stages.validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		stages:        stages,
		registry:      session.NewRegistry(),
		sink:          observe.Nop(),
		logger:        zap.NewNop(),
		maxIterations: critique.DefaultMaxIterations,
		threshold:     critique.DefaultThreshold,
		archive:       true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	r, err := newOrchestrator(ctx, p)
	if err != nil {
		return nil, err
	}
	p.runnable = r
	return p, nil
}

// Run processes one request through the staged pipeline.
func (p *Pipeline) Run(ctx context.Context, request string) (*pipeline.Outcome, error) {
	return p.run(ctx, request, pipeline.ModePipeline)
}

// RunMono answers the request with the single-call reporter and one
// quality check.
func (p *Pipeline) RunMono(ctx context.Context, request string) (*pipeline.Outcome, error) {
	if p.stages.Mono == nil {
		return nil, errors.New("mono reporter not configured")
	}
	return p.run(ctx, request, pipeline.ModeMono)
}

// Comparison holds both answers to the same request.
type Comparison struct {
	Mono     *pipeline.Outcome
	Pipeline *pipeline.Outcome
}

// Compare runs the mono reporter and the pipeline back to back.
func (p *Pipeline) Compare(ctx context.Context, request string) (*Comparison, error) {
	mono, err := p.RunMono(ctx, request)
	if err != nil {
		return nil, err
	}
	full, err := p.Run(ctx, request)
	if err != nil {
		return nil, err
	}
	return &Comparison{Mono: mono, Pipeline: full}, nil
}

func (p *Pipeline) run(ctx context.Context, request, mode string) (*pipeline.Outcome, error) {
	id := session.NewID()
	artifacts, err := p.registry.Open(id)
	if err != nil {
		return nil, err
	}
	st := pipeline.NewState(id, request, mode, artifacts, p.now())
	logger := p.logger.With(zap.String("session", id), zap.String("mode", mode))
	logger.Info("session started", zap.String("request", request))

	_, err = p.runnable.Invoke(ctx, st, compose.WithCallbacks(newLoggerCallback(logger, p.progress)))
	if err != nil && ctx.Err() == nil {
		_ = p.registry.Close(context.WithoutCancel(ctx), session.Record{Summary: pipeline.Summarize(st, p.now())}, false)
		return nil, fmt.Errorf("run pipeline: %w", err)
	}
	if ctx.Err() != nil && st.Status == "" {
		st.Fail(consts.StatusCancelled, ctx.Err())
	}

	out := pipeline.NewOutcome(st, p.now())
	p.sink.SessionSummary(out.Summary)

	archive := p.archive && out.HasReport() && out.Status() != consts.StatusCancelled
	rec := session.Record{Summary: out.Summary}
	if err := p.registry.Close(context.WithoutCancel(ctx), rec, archive); err != nil {
		logger.Warn("archive session", zap.Error(err))
	}
	logger.Info("session finished",
		zap.String("status", out.Status()),
		zap.Float64("quality_score", out.Summary.QualityScore),
		zap.Duration("duration", out.Summary.Duration))
	return out, nil
}
