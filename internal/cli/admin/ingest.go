package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/reelrag/internal/api/handlers"
	"github.com/cloo-solutions/reelrag/internal/config"
	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the ingestion pipeline once",
		Long:  "Scrape configured sources, select trending items, transcribe, store and embed them, then print the run report",
		RunE:  runIngest,
	}

	cmd.Flags().StringSlice("sources", nil, "Source handles to ingest (defaults to SOURCES)")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if sources, _ := cmd.Flags().GetStringSlice("sources"); len(sources) > 0 {
		cfg.Sources = sources
	}
	outputFormat, _ := cmd.Flags().GetString("output")

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.pipeline.RunOnce(ctx)
	if err != nil {
		return err
	}

	if err := printReport(cmd.OutOrStdout(), report, outputFormat); err != nil {
		return err
	}
	if report.Failed() {
		return fmt.Errorf("pipeline run %s failed", report.RunID)
	}
	return nil
}

func printReport(w io.Writer, report *domain.RunReport, outputFormat string) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(handlers.NewReportResponse(report))
	}

	fmt.Fprintf(w, "Run %s: %s in %s\n", report.RunID, report.Status, report.Elapsed)
	fmt.Fprintf(w, "Fetched: %d  Kept: %d  Transcribed: %d  Stored: %d  Chunked: %d\n",
		report.Fetched, report.Kept, report.Transcribed, report.Stored, report.Chunked)
	if report.UsedFallbackSource {
		fmt.Fprintln(w, "Primary source returned nothing, fallback source used")
	}
	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(report.Errors))
		for _, line := range report.ErrorStrings() {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	return nil
}
