package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/config"
	"github.com/dyike/cortexanalyst/internal/debug"
	"github.com/dyike/cortexanalyst/internal/logging"
	"github.com/dyike/cortexanalyst/pkg/app"
)

type rootOptions struct {
	configPath string
	verbose    bool
	confirm    bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cortexanalyst",
		Short: "CortexAnalyst - multi-agent financial question answering",
		Long: `CortexAnalyst answers natural-language questions about a listed company.
A staged pipeline classifies the question, gathers market data, argues the bull
and bear cases, scores the stock and validates the final report before printing it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&opts.confirm, "confirm", false, "Confirm the resolved ticker before fetching data")

	rootCmd.AddCommand(newAnalyzeCmd(opts))
	rootCmd.AddCommand(newCompareCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <question>",
		Short: "Answer one question about a stock",
		Example: `  cortexanalyst analyze "Should I invest in Tesla?"
  cortexanalyst analyze --confirm "What is Apple's P/E ratio?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, rt *app.Runtime) error {
				out, err := rt.Analyze(ctx, strings.Join(args, " "))
				if err != nil {
					return fmt.Errorf("analysis failed: %w", err)
				}
				fmt.Println(RenderOutcome(out, rt.Config().ResultsDir))
				return nil
			})
		},
	}
}

func newCompareCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <question>",
		Short: "Answer a question with the single-call agent and the pipeline side by side",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, rt *app.Runtime) error {
				cmp, err := rt.Compare(ctx, strings.Join(args, " "))
				if err != nil {
					return fmt.Errorf("comparison failed: %w", err)
				}
				fmt.Println(RenderComparison(cmp))
				return nil
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived sessions and pipeline statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, rt *app.Runtime) error {
				return showHistory(ctx, rt, limit)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent sessions to list")
	return cmd
}

func showHistory(ctx context.Context, rt *app.Runtime, limit int) error {
	stats, err := rt.Store().Stats(ctx)
	if err != nil {
		return err
	}
	recent, err := rt.Store().Recent(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Println(RenderHistory(stats, recent))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("CortexAnalyst %s\n", app.Version)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager(opts)
			if err != nil {
				return err
			}
			fmt.Println(RenderConfig(mgr.Path(), mgr.Get()))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager(opts)
			if err != nil {
				return err
			}
			return validateConfig(mgr.Get())
		},
	})

	return configCmd
}

func validateConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("directory validation failed: %w", err)
	}
	if cfg.APIKey() == "" {
		return fmt.Errorf("%w: no api key for provider %s", config.ErrInvalidConfig, cfg.LLMProvider)
	}
	DisplaySuccess("Configuration is valid")
	if !cfg.HasLongport() {
		DisplayInfo("Longport credentials not set; Asian markets use Yahoo only")
	}
	return nil
}

func openManager(opts *rootOptions) (*config.Manager, error) {
	if opts.configPath == "" {
		return config.NewManager()
	}
	return config.NewManager(config.WithConfigPath(opts.configPath))
}

// withRuntime builds the runtime for one command and cancels the run on
// SIGINT or SIGTERM.
func withRuntime(ctx context.Context, opts *rootOptions, fn func(context.Context, *app.Runtime) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := openManager(opts)
	if err != nil {
		return err
	}
	defer mgr.Close()
	cfg := mgr.Get()
	logger, err := newLogger(cfg, opts.verbose)
	if err != nil {
		return err
	}

	dbg := debug.NewEinoDebugger(cfg, logger)
	if err := dbg.Initialize(ctx); err != nil {
		return err
	}
	if dbg.IsEnabled() {
		DisplayInfo("Eino debug UI at " + dbg.GetDebugURL())
	}

	rt, err := app.NewRuntime(ctx, mgr,
		app.WithLogger(logger),
		app.WithConfirmer(&SurveyConfirmer{}),
		app.WithProgress(DisplayProgress),
		app.WithOverride(func(c *config.Config) {
			if opts.confirm {
				c.ConfirmInstrument = true
			}
			if opts.verbose {
				c.Debug = true
			}
		}),
		app.WithNotifier(func(topic, payload string) {
			logger.Debug("runtime event", zap.String("topic", topic), zap.String("payload", payload))
		}),
	)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

// newLogger writes to stderr when verbose, otherwise to a file next to
// the data so the terminal shows only the report.
func newLogger(cfg config.Config, verbose bool) (*zap.Logger, error) {
	if verbose {
		return logging.New(true, "")
	}
	return logging.New(cfg.Debug, filepath.Join(cfg.DataDir, "cortexanalyst.log"))
}
