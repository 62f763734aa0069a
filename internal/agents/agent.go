// Package agents holds the reasoning stages of the pipeline. Every stage
// makes at most one reasoning call per invocation and reports a typed
// outcome instead of failing.
package agents

import (
	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/internal/llm"
)

type Option func(*base)

func WithLogger(l *zap.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

type base struct {
	reasoner llm.Reasoner
	logger   *zap.Logger
}

func newBase(r llm.Reasoner, opts []Option) base {
	b := base{reasoner: r, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}
