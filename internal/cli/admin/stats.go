package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/cloo-solutions/reelrag/internal/api/handlers"
	"github.com/cloo-solutions/reelrag/internal/config"
	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/spf13/cobra"
)

// StatsCmd returns the stats command
func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			outputFormat, _ := cmd.Flags().GetString("output")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.retrieval.Stats(ctx)
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), stats, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func printStats(w io.Writer, stats *domain.Stats, outputFormat string) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(handlers.NewStatsResponse(stats))
	}

	fmt.Fprintf(w, "Items:          %d\n", stats.TotalItems)
	fmt.Fprintf(w, "Trending items: %d\n", stats.TrendingItems)
	fmt.Fprintf(w, "Chunks:         %d\n", stats.TotalChunks)
	if stats.LatestItemAt != nil {
		fmt.Fprintf(w, "Latest item:    %s\n", stats.LatestItemAt.UTC().Format(time.RFC3339))
	}

	if len(stats.ItemsPerSource) > 0 {
		handles := make([]string, 0, len(stats.ItemsPerSource))
		for h := range stats.ItemsPerSource {
			handles = append(handles, h)
		}
		sort.Strings(handles)

		fmt.Fprintln(w, "\nItems per source:")
		for _, h := range handles {
			fmt.Fprintf(w, "  @%-24s %d\n", h, stats.ItemsPerSource[h])
		}
	}
	return nil
}
