package evidence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source contributes part of the document. Fetch writes into part, which
// is private to the call.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string, part *Evidence) error
}

// Aggregator queries a primary identity/quote source and any number of
// secondary sources in parallel, each under its own timeout.
type Aggregator struct {
	primary   Source
	secondary []Source
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

type AggregatorOption func(*Aggregator)

func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.timeout = d }
}

func WithLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAggregator(primary Source, secondary []Source, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		primary:   primary,
		secondary: secondary,
		timeout:   15 * time.Second,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch assembles the evidence for symbol. A failing or slow secondary
// source is recorded in Omitted; only a failing primary returns ErrNoData.
func (a *Aggregator) Fetch(ctx context.Context, symbol string) (*Evidence, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrNoData)
	}
	if a.primary == nil {
		return nil, fmt.Errorf("%w: no primary source", ErrNoData)
	}

	sources := append([]Source{a.primary}, a.secondary...)
	parts := make([]*Evidence, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			part := &Evidence{}
			if err := a.run(gctx, src, symbol, part); err != nil {
				errs[i] = err
				a.logger.Warn("evidence source failed",
					zap.String("source", src.Name()),
					zap.String("symbol", symbol),
					zap.Error(err))
				return nil
			}
			parts[i] = part
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errs[0] != nil {
		return nil, fmt.Errorf("%w for %s: %s: %w", ErrNoData, symbol, a.primary.Name(), errs[0])
	}
	if !parts[0].HasQuote() {
		return nil, fmt.Errorf("%w for %s: %s returned no price", ErrNoData, symbol, a.primary.Name())
	}

	ev := &Evidence{FetchedAt: a.now()}
	for i, part := range parts {
		if part == nil {
			ev.Omitted = append(ev.Omitted, Omission{Source: sources[i].Name(), Reason: errs[i].Error()})
			continue
		}
		ev.merge(part)
	}
	if ev.Identity.Symbol == "" {
		ev.Identity.Symbol = symbol
	}
	return ev, nil
}

// run bounds one source by the per-source timeout. A source that ignores
// its context is abandoned; its late writes land in a part nobody reads.
func (a *Aggregator) run(ctx context.Context, src Source, symbol string, part *Evidence) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	scratch := &Evidence{}
	done := make(chan error, 1)
	go func() {
		done <- src.Fetch(ctx, symbol, scratch)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		*part = *scratch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out after %s: %w", a.timeout, ctx.Err())
	}
}
