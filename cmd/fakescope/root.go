package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ahrav/fakescope/infrastructure/middleware"
	"github.com/ahrav/fakescope/internal/application"
)

// commandContext carries the global flags and the lazily built
// collaborators shared by every subcommand.
type commandContext struct {
	configPath string
	verbose    bool
	metricsOut string

	stdin    io.Reader
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *middleware.PrometheusMetrics

	configOnce sync.Once
	config     *application.Config
	configErr  error
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "fakescope",
		Short:         "Multimodal deepfake detection ensemble",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.setup(cmd)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.flushMetrics()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "fakescope.yaml", `Ensemble configuration file, or "-" for stdin`)
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ctx.metricsOut, "metrics-out", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(newPredictCommand(ctx))
	rootCmd.AddCommand(newEvaluateCommand(ctx))
	rootCmd.AddCommand(newValidateCommand(ctx))

	return rootCmd
}

// setup builds the logger and metrics registry once flags are parsed.
func (c *commandContext) setup(cmd *cobra.Command) {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	c.stdin = cmd.InOrStdin()
	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	c.registry = prometheus.NewRegistry()
	c.metrics = middleware.NewPrometheusMetrics(c.registry)
}

// ensureConfig loads and validates the configuration once. A path of "-"
// reads the configuration from stdin.
func (c *commandContext) ensureConfig() (*application.Config, error) {
	c.configOnce.Do(func() {
		loader, err := application.NewConfigLoader()
		if err != nil {
			c.configErr = err
			return
		}
		var cfg *application.Config
		if path := strings.TrimSpace(c.configPath); path == "-" {
			cfg, err = loader.LoadFromReader(c.stdin)
		} else {
			cfg, err = loader.LoadFromFile(path)
		}
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensemble builds an ensemble from the loaded configuration.
func (c *commandContext) ensemble() (*application.Ensemble, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	e, err := application.NewEnsembleFromConfig(cfg, c.metrics, c.logger)
	if err != nil {
		return nil, fmt.Errorf("build ensemble: %w", err)
	}
	return e, nil
}

// flushMetrics writes the registry in text exposition format when
// --metrics-out is set.
func (c *commandContext) flushMetrics() error {
	if c.metricsOut == "" || c.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(c.metricsOut, c.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
