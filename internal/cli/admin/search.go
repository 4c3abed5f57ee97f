package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/reelrag/internal/api/handlers"
	"github.com/cloo-solutions/reelrag/internal/config"
	"github.com/cloo-solutions/reelrag/internal/domain"
	"github.com/cloo-solutions/reelrag/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// retrieveFlags are the retrieval options shared by commands that query the store.
type retrieveFlags struct {
	sources  []string
	limit    int
	minScore float64
}

func (f *retrieveFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&f.sources, "sources", "s", nil, "Restrict results to these source handles")
	fs.IntVarP(&f.limit, "limit", "n", 0, "Maximum number of results (defaults to RETRIEVE_LIMIT)")
	fs.Float64Var(&f.minScore, "min-score", 0, "Minimum vector score (defaults to RETRIEVE_MIN_SCORE)")
}

// input builds a RetrieveInput. The min score only overrides the configured
// floor when the flag was given.
func (f *retrieveFlags) input(fs *pflag.FlagSet, query string) service.RetrieveInput {
	input := service.RetrieveInput{
		Query:   query,
		Sources: f.sources,
		Limit:   f.limit,
	}
	if fs.Changed("min-score") {
		minScore := f.minScore
		input.MinScore = &minScore
	}
	return input
}

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	var flags retrieveFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve stored chunks for a query",
		Long:  "Rank stored chunks by hybrid vector and keyword score, falling back to keyword search when embeddings are unavailable",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			input := flags.input(cmd.Flags(), strings.Join(args, " "))
			return runSearch(cmd, input, outputFormat)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runSearch(cmd *cobra.Command, input service.RetrieveInput, outputFormat string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.retrieval.Retrieve(ctx, input)
	if err != nil {
		return err
	}

	return printResults(cmd.OutOrStdout(), results, outputFormat)
}

func printResults(w io.Writer, results []*domain.RetrievedResult, outputFormat string) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		out := make([]*handlers.ResultResponse, 0, len(results))
		for _, r := range results {
			out = append(out, handlers.NewResultResponse(r))
		}
		return enc.Encode(out)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(w, "%d. [%.3f %s] @%s %s\n", i+1, r.Score, r.Method, r.SourceHandle, r.ItemURL)
		if r.Hook != "" {
			fmt.Fprintf(w, "   Hook: %s\n", r.Hook)
		}
		fmt.Fprintf(w, "   %s\n", snippet(r.Text, 200))
	}
	return nil
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
