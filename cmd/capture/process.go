package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/content-capture/internal/app"
	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/config"
	"github.com/JakeFAU/content-capture/internal/ingest"
	"github.com/JakeFAU/content-capture/internal/pipeline"
)

func newProcessCmd(c *cli) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Captures one URL in memory and prints the record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), c, args[0], notes, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes stored with the capture")
	return cmd
}

func runProcess(ctx context.Context, c *cli, rawURL, notes string, out io.Writer) error {
	cfg := c.cfg
	cfg.DB.Backend = config.BackendMemory
	cfg.Storage.Backend = config.BackendMemory
	cfg.PubSub.Backend = config.BackendMemory

	a, err := app.New(ctx, cfg, c.logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer a.Close()

	rec, err := a.Ingest.Submit(ctx, ingest.Request{URL: rawURL, Notes: notes})
	if err != nil {
		return err
	}
	outcome := a.Processor.Process(ctx, capture.QueueMessage{
		CaptureID:  rec.ID,
		URL:        rec.SourceURL,
		SourceType: rec.SourceType,
		Notes:      rec.Notes,
	})

	final, err := a.Records.Get(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("load capture: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(final); err != nil {
		return fmt.Errorf("encode capture: %w", err)
	}
	if outcome.Kind == pipeline.Failed {
		return fmt.Errorf("capture failed: %s", outcome.Reason)
	}
	return nil
}
