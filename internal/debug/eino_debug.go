// Package debug starts the eino visual debugging plugin.
package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/config"
)

type EinoDebugger struct {
	enabled bool
	port    int
	logger  *zap.Logger
	init    func(ctx context.Context) error
}

func NewEinoDebugger(cfg config.Config, logger *zap.Logger) *EinoDebugger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EinoDebugger{
		enabled: cfg.EinoDebugEnabled,
		port:    cfg.EinoDebugPort,
		logger:  logger,
		init: func(ctx context.Context) error {
			return devops.Init(ctx, devops.WithDevServerPort(fmt.Sprint(cfg.EinoDebugPort)))
		},
	}
}

// Initialize must run before any graph is compiled, otherwise the plugin
// does not see it.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled {
		return nil
	}
	d.logger.Info("initializing eino debug plugin", zap.Int("port", d.port))
	if err := d.init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.logger.Info("eino debug server ready", zap.String("url", d.GetDebugURL()))
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
