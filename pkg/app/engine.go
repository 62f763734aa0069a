package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/config"
	"github.com/dyike/cortexanalyst/internal/agents"
	"github.com/dyike/cortexanalyst/internal/evidence"
	"github.com/dyike/cortexanalyst/internal/graph"
	"github.com/dyike/cortexanalyst/internal/llm"
	"github.com/dyike/cortexanalyst/internal/observe"
	"github.com/dyike/cortexanalyst/internal/pipeline"
	"github.com/dyike/cortexanalyst/internal/scoring"
	"github.com/dyike/cortexanalyst/internal/session"
)

// Version is stamped at build time.
var Version = "dev"

const cacheTTL = 6 * time.Hour

// Engine is one immutable build of the pipeline for a config snapshot.
type Engine struct {
	Config   config.Config
	BuiltAt  time.Time
	Version  uint64
	Pipeline *graph.Pipeline
}

// Deps are the long-lived collaborators shared by every engine build.
type Deps struct {
	Logger    *zap.Logger
	Registry  *session.Registry
	Sink      observe.Sink
	Confirmer pipeline.Confirmer
	Progress  func(node string)
	Aliases   *agents.AliasTable
	Reasoner  func(ctx context.Context, cfg config.Config, logger *zap.Logger) (llm.Reasoner, error)
	Fetcher   pipeline.Fetcher
}

var engineSeq atomic.Uint64

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Aliases == nil {
		d.Aliases = agents.DefaultAliases()
	}
	if d.Reasoner == nil {
		d.Reasoner = llm.New
	}
	return d
}

// BuildEngine validates cfg and assembles agents, evidence sources and the
// compiled graph.
func BuildEngine(ctx context.Context, cfg config.Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	logger := deps.Logger

	weights, err := cfg.Weights()
	if err != nil {
		return nil, err
	}
	deep, err := deps.Reasoner(ctx, cfg, logger.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("build reasoner: %w", err)
	}
	quick := deep
	if cfg.QuickThinkLLM != "" && cfg.QuickThinkLLM != cfg.DeepThinkLLM {
		quickCfg := cfg
		quickCfg.DeepThinkLLM = cfg.QuickThinkLLM
		if quick, err = deps.Reasoner(ctx, quickCfg, logger.Named("llm")); err != nil {
			return nil, fmt.Errorf("build quick reasoner: %w", err)
		}
	}

	stages, err := buildStages(quick, deep, weights, deps, logger)
	if err != nil {
		return nil, err
	}
	stages.Fetcher = deps.Fetcher
	if stages.Fetcher == nil {
		if stages.Fetcher, err = buildAggregator(cfg, logger); err != nil {
			return nil, err
		}
	}
	if cfg.ConfirmInstrument {
		stages.Confirmer = deps.Confirmer
	}

	p, err := graph.New(ctx, stages,
		graph.WithRegistry(deps.Registry),
		graph.WithSink(deps.Sink),
		graph.WithLogger(logger.Named("pipeline")),
		graph.WithMaxIterations(cfg.MaxIterations),
		graph.WithThreshold(cfg.QualityThreshold),
		graph.WithArchive(cfg.ArchiveEnabled),
		graph.WithProgress(deps.Progress),
	)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Config:   cfg,
		BuiltAt:  time.Now(),
		Version:  engineSeq.Add(1),
		Pipeline: p,
	}, nil
}

func buildStages(quick, deep llm.Reasoner, weights scoring.Weights, deps Deps, logger *zap.Logger) (graph.Stages, error) {
	opt := agents.WithLogger(logger.Named("agents"))
	var (
		s   graph.Stages
		err error
	)
	if s.Classifier, err = agents.NewClassifier(quick, deps.Aliases, opt); err != nil {
		return s, err
	}
	if s.Router, err = agents.NewRouter(quick, opt); err != nil {
		return s, err
	}
	s.Narrator = agents.NewNarrator(deep, opt)
	if s.Bull, err = agents.NewBullAnalyst(deep, opt); err != nil {
		return s, err
	}
	if s.Bear, err = agents.NewBearAnalyst(deep, opt); err != nil {
		return s, err
	}
	if s.Scorer, err = agents.NewScorer(deep, weights, opt); err != nil {
		return s, err
	}
	s.Composer = agents.NewComposer(deep, weights, opt)
	if s.Rater, err = agents.NewCritic(quick, opt); err != nil {
		return s, err
	}
	if s.Mono, err = agents.NewMono(deep, opt); err != nil {
		return s, err
	}
	return s, nil
}

// buildAggregator puts Yahoo first and adds the fundamentals, news and,
// when credentials exist, Longport sources behind it.
func buildAggregator(cfg config.Config, logger *zap.Logger) (*evidence.Aggregator, error) {
	var cache *evidence.Cache
	if cfg.CacheEnabled {
		cache = evidence.NewCache(cfg.DataCacheDir, cacheTTL)
	}
	secondary := []evidence.Source{
		evidence.NewSummarySource("", cache),
		evidence.NewNewsSource(cfg.NewsFeedURL, cfg.NewsLimit, true),
	}
	if cfg.HasLongport() {
		lp, err := evidence.NewLongportSource(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken)
		if err != nil {
			return nil, fmt.Errorf("longport source: %w", err)
		}
		secondary = append(secondary, lp)
	}
	return evidence.NewAggregator(
		evidence.NewYahooSource(cache, cfg.HistoryDays),
		secondary,
		evidence.WithTimeout(cfg.SourceTimeoutDuration()),
		evidence.WithLogger(logger.Named("evidence")),
	), nil
}
