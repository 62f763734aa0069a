// Package observe receives one event per executed stage and one summary
// per finished session.
package observe

import (
	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/models"
)

// Sink consumes pipeline telemetry. Implementations must not block the
// caller for long.
type Sink interface {
	StageEvent(ev models.StageEvent)
	SessionSummary(sum models.SessionSummary)
}

type nop struct{}

func (nop) StageEvent(models.StageEvent)         {}
func (nop) SessionSummary(models.SessionSummary) {}

// Nop discards everything.
func Nop() Sink { return nop{} }

type multi []Sink

// Multi fans every call out to sinks in order.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) StageEvent(ev models.StageEvent) {
	for _, s := range m {
		s.StageEvent(ev)
	}
}

func (m multi) SessionSummary(sum models.SessionSummary) {
	for _, s := range m {
		s.SessionSummary(sum)
	}
}

// LogSink writes structured log lines.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) StageEvent(ev models.StageEvent) {
	fields := []zap.Field{
		zap.String("session", ev.Session),
		zap.String("stage", ev.Stage),
		zap.Duration("duration", ev.Duration()),
		zap.Bool("success", ev.Success),
		zap.String("kind", string(ev.Kind)),
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}
	if ev.Success && ev.Kind != models.OutcomeDegraded {
		l.logger.Debug("stage finished", fields...)
		return
	}
	l.logger.Warn("stage finished", fields...)
}

func (l *LogSink) SessionSummary(sum models.SessionSummary) {
	l.logger.Info("session finished",
		zap.String("session", sum.Session),
		zap.String("instrument", sum.Instrument),
		zap.String("mode", sum.Mode),
		zap.String("route", string(sum.Route)),
		zap.String("status", sum.Status),
		zap.Bool("degraded", sum.Degraded),
		zap.Int("iterations", sum.Iterations),
		zap.Float64("quality_score", sum.QualityScore),
		zap.Bool("validated", sum.Validated),
		zap.Bool("validated_first_pass", sum.ValidatedFirst),
		zap.Float64("composite_score", sum.CompositeScore),
		zap.String("recommendation", sum.Recommendation),
		zap.Int("bull_arguments", sum.BullArguments),
		zap.Int("bear_arguments", sum.BearArguments),
		zap.Duration("duration", sum.Duration),
	)
}
