package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/config"
	"github.com/JakeFAU/content-capture/internal/logging"
	"github.com/JakeFAU/content-capture/internal/telemetry"
)

// cli carries state shared by every subcommand once the root hooks have run.
type cli struct {
	cfgPath string
	cfg     config.Config
	logger  *zap.Logger
	tracer  *sdktrace.TracerProvider
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Captures, enriches and searches links to social posts, videos and articles.",
		Long: `capture ingests submitted URLs, extracts their content through platform-specific
strategies with fallback, re-hosts referenced media, categorizes the result and serves
scored search over everything captured.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			c.shutdown(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd(c), newWorkerCmd(c), newProcessCmd(c))
	return cmd
}

func (c *cli) init(ctx context.Context) error {
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	tp, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	c.tracer = tp
	return nil
}

func (c *cli) shutdown(ctx context.Context) {
	if c.tracer != nil {
		if err := c.tracer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
