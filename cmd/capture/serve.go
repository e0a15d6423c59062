package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/app"
	"github.com/JakeFAU/content-capture/internal/config"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API",
		Long: `Serves the capture and search API. When the queue backend is memory the
worker runs in the same process, since nothing else can read that queue.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c)
		},
	}
}

func runServe(ctx context.Context, c *cli) error {
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer a.Close()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	workerDone := make(chan struct{})
	if c.cfg.PubSub.Backend == config.BackendMemory {
		go func() {
			defer close(workerDone)
			if err := a.Worker.Run(ctx); err != nil {
				c.logger.Error("embedded worker stopped", zap.Error(err))
				stop()
			}
		}()
	} else {
		close(workerDone)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.cfg.Server.Port),
		Handler:           a.Server().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		c.logger.Info("http server started", zap.Int("port", c.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	c.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("server shutdown error", zap.Error(err))
	}
	<-workerDone
	c.logger.Info("shutdown complete")
	return nil
}
