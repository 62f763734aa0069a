package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/config"
	"github.com/dyike/cortexanalyst/internal/graph"
	"github.com/dyike/cortexanalyst/internal/logging"
	"github.com/dyike/cortexanalyst/internal/observe"
	"github.com/dyike/cortexanalyst/internal/pipeline"
	"github.com/dyike/cortexanalyst/internal/session"
	"github.com/dyike/cortexanalyst/internal/storage/sqlite"
)

type EngineBuilder func(ctx context.Context, cfg config.Config, deps Deps) (*Engine, error)

type Option func(*Runtime)

func WithBuilder(builder EngineBuilder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

func WithNotifier(fn func(topic, payload string)) Option {
	return func(r *Runtime) {
		r.notify = fn
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithConfirmer asks the user to confirm the resolved instrument when the
// config enables confirmation.
func WithConfirmer(c pipeline.Confirmer) Option {
	return func(r *Runtime) { r.deps.Confirmer = c }
}

func WithProgress(fn func(node string)) Option {
	return func(r *Runtime) { r.deps.Progress = fn }
}

// WithOverride adjusts every config snapshot before an engine is built,
// for command line flags that must survive reloads.
func WithOverride(fn func(*config.Config)) Option {
	return func(r *Runtime) {
		if fn != nil {
			r.overrides = append(r.overrides, fn)
		}
	}
}

// WithDeps replaces the shared collaborators; zero fields keep the
// runtime's own.
func WithDeps(d Deps) Option {
	return func(r *Runtime) { r.extra = d }
}

// Runtime owns the storage, telemetry and session registry, and swaps in a
// new Engine whenever the config file changes.
type Runtime struct {
	cfgMgr *config.Manager
	engine atomic.Pointer[Engine]

	builder   EngineBuilder
	notify    func(string, string)
	cancel    context.CancelFunc
	logger    *zap.Logger
	overrides []func(*config.Config)
	deps      Deps
	extra     Deps

	store    *sqlite.Store
	recorder *observe.Recorder
	trace    *observe.TraceSink
	traces   *os.File
}

func NewRuntime(ctx context.Context, cfgMgr *config.Manager, opts ...Option) (*Runtime, error) {
	if cfgMgr == nil {
		return nil, fmt.Errorf("config manager is required")
	}

	rt := &Runtime{
		cfgMgr:  cfgMgr,
		builder: BuildEngine,
	}
	for _, opt := range opts {
		opt(rt)
	}

	cfg := rt.snapshot(cfgMgr.Get())
	if err := rt.open(cfg); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.reload(ctx, cfg); err != nil {
		rt.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancel = cancel
	if err := cfgMgr.Watch(watchCtx, func(cfg config.Config) {
		if err := rt.reload(watchCtx, rt.snapshot(cfg)); err != nil {
			rt.logger.Warn("engine reload failed", zap.Error(err))
		}
	}); err != nil {
		rt.Close()
		return nil, err
	}

	return rt, nil
}

func (r *Runtime) snapshot(cfg config.Config) config.Config {
	for _, fn := range r.overrides {
		fn(&cfg)
	}
	return cfg
}

// open builds the infrastructure that outlives engine reloads. Changes to
// paths or tracing take effect on the next start.
func (r *Runtime) open(cfg config.Config) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if r.logger == nil {
		logger, err := logging.New(cfg.Debug, filepath.Join(cfg.DataDir, "cortexanalyst.log"))
		if err != nil {
			return err
		}
		r.logger = logger
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	r.store = store
	r.recorder = observe.NewRecorder(store, r.logger.Named("recorder"))

	archivers := []session.Archiver{store}
	if cfg.ExportMarkdown {
		archivers = append(archivers, session.NewMarkdownArchiver(cfg.ResultsDir))
	}
	sinks := []observe.Sink{r.recorder, observe.NewLogSink(r.logger.Named("telemetry"))}
	if cfg.TraceEnabled {
		f, err := os.OpenFile(filepath.Join(cfg.DataDir, "traces.json"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		r.traces = f
		if r.trace, err = observe.NewStdoutTraceSink(f, Version); err != nil {
			return err
		}
		sinks = append(sinks, r.trace)
	}

	r.deps.Logger = r.logger
	r.deps.Registry = session.NewRegistry(archivers...)
	r.deps.Sink = observe.Multi(sinks...)
	if r.extra.Aliases != nil {
		r.deps.Aliases = r.extra.Aliases
	}
	if r.extra.Reasoner != nil {
		r.deps.Reasoner = r.extra.Reasoner
	}
	if r.extra.Fetcher != nil {
		r.deps.Fetcher = r.extra.Fetcher
	}
	return nil
}

func (r *Runtime) Engine() *Engine {
	return r.engine.Load()
}

func (r *Runtime) Logger() *zap.Logger {
	return r.logger
}

// Store is the session archive, for history queries.
func (r *Runtime) Store() *sqlite.Store {
	return r.store
}

func (r *Runtime) Config() config.Config {
	return r.snapshot(r.cfgMgr.Get())
}

func (r *Runtime) Analyze(ctx context.Context, request string) (*pipeline.Outcome, error) {
	return r.Engine().Pipeline.Run(ctx, request)
}

func (r *Runtime) Compare(ctx context.Context, request string) (*graph.Comparison, error) {
	return r.Engine().Pipeline.Compare(ctx, request)
}

// Close stops watching the config and flushes telemetry. Sessions still
// running must finish first.
func (r *Runtime) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.recorder != nil {
		r.recorder.Close()
	}
	var errs []error
	if r.trace != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, r.trace.Shutdown(ctx))
		cancel()
	}
	if r.traces != nil {
		errs = append(errs, r.traces.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if err := errors.Join(errs...); err != nil && r.logger != nil {
		r.logger.Warn("runtime close", zap.Error(err))
	}
	if r.logger != nil {
		_ = r.logger.Sync()
	}
}

func (r *Runtime) UpdateConfigJSON(jsonStr string) error {
	return r.cfgMgr.UpdateFromJSON(jsonStr)
}

func (r *Runtime) reload(ctx context.Context, cfg config.Config) error {
	engine, err := r.builder(ctx, cfg, r.deps)
	if err != nil {
		r.notifyFailure(err)
		return err
	}
	r.engine.Store(engine)
	r.logger.Info("engine built", zap.Uint64("version", engine.Version))
	r.notifySuccess(engine)
	return nil
}

func (r *Runtime) notifySuccess(engine *Engine) {
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"version":  engine.Version,
		"built_at": engine.BuiltAt.UTC().Format(time.RFC3339),
	})
	r.notify("engine.reloaded", string(payload))
}

func (r *Runtime) notifyFailure(err error) {
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"error": err.Error(),
	})
	r.notify("engine.reload_failed", string(payload))
}
