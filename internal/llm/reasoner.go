// Package llm abstracts the reasoning service behind a single call shape
// and provides adapters for the supported providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Role string

const (
	RoleClassifier Role = "classifier"
	RoleRouter     Role = "router"
	RoleNarrator   Role = "narrator"
	RoleBull       Role = "bull"
	RoleBear       Role = "bear"
	RoleScorer     Role = "scorer"
	RoleComposer   Role = "composer"
	RoleCritic     Role = "critic"
	RoleMono       Role = "mono"
)

var ErrEmptyResponse = errors.New("empty response from reasoning service")

// Call is one request to the reasoning service. Structured asks the
// provider for a JSON answer where it supports that.
type Call struct {
	Role        Role
	Instruction string
	Content     string
	Structured  bool
}

type Reasoner interface {
	Reason(ctx context.Context, call Call) (string, error)
}

// Func adapts a plain function to Reasoner.
type Func func(ctx context.Context, call Call) (string, error)

func (f Func) Reason(ctx context.Context, call Call) (string, error) {
	return f(ctx, call)
}

type timeoutReasoner struct {
	next    Reasoner
	timeout time.Duration
}

// WithTimeout bounds every call made through r.
func WithTimeout(r Reasoner, d time.Duration) Reasoner {
	if d <= 0 {
		return r
	}
	return &timeoutReasoner{next: r, timeout: d}
}

func (t *timeoutReasoner) Reason(ctx context.Context, call Call) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Reason(ctx, call)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%s call timed out after %s: %w", call.Role, t.timeout, err)
	}
	return out, err
}

type loggedReasoner struct {
	next   Reasoner
	logger *zap.Logger
}

// WithLogging records role, duration and size of every call at debug level.
func WithLogging(r Reasoner, logger *zap.Logger) Reasoner {
	if logger == nil {
		return r
	}
	return &loggedReasoner{next: r, logger: logger}
}

func (l *loggedReasoner) Reason(ctx context.Context, call Call) (string, error) {
	start := time.Now()
	out, err := l.next.Reason(ctx, call)
	fields := []zap.Field{
		zap.String("role", string(call.Role)),
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_chars", len(call.Instruction)+len(call.Content)),
		zap.Int("answer_chars", len(out)),
	}
	if err != nil {
		l.logger.Warn("reasoning call failed", append(fields, zap.Error(err))...)
		return out, err
	}
	l.logger.Debug("reasoning call", fields...)
	return out, nil
}
