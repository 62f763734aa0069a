package graph

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/internal/pipeline"
)

type startKey struct{}

// LoggerCallback logs every node the graph enters and leaves and reports
// node names to an optional progress function.
type LoggerCallback struct {
	logger   *zap.Logger
	progress func(node string)
}

func newLoggerCallback(logger *zap.Logger, progress func(string)) callbacks.Handler {
	cb := &LoggerCallback{logger: logger, progress: progress}
	return callbacks.NewHandlerBuilder().
		OnStartFn(cb.OnStart).
		OnEndFn(cb.OnEnd).
		OnErrorFn(cb.OnError).
		Build()
}

func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if info == nil || info.Name == "" || info.Name == graphName {
		return ctx
	}
	if cb.progress != nil {
		cb.progress(info.Name)
	}
	cb.logger.Debug("node start", zap.String("node", info.Name))
	return context.WithValue(ctx, startKey{}, time.Now())
}

func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if info == nil || info.Name == "" || info.Name == graphName {
		return ctx
	}
	fields := []zap.Field{zap.String("node", info.Name)}
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		fields = append(fields, zap.Duration("duration", time.Since(start)))
	}
	if st, ok := output.(*pipeline.State); ok {
		fields = append(fields, zap.String("next", st.Goto))
	}
	cb.logger.Debug("node end", fields...)
	return ctx
}

func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	name := ""
	if info != nil {
		name = info.Name
	}
	cb.logger.Error("node error", zap.String("node", name), zap.Error(err))
	return ctx
}
