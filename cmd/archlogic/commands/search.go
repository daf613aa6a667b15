// ABOUTME: CLI command for one-shot case search without entering the chat loop
// ABOUTME: Dedupes dense retrieval hits by case name and prints the best per case
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danruili/archlogic/internal/llm"
	"github.com/danruili/archlogic/internal/retrieval"
)

var searchMode string

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed cases",
		Long: `Run one dense search over the logic index and report the best hit
per case. Useful for checking index quality without starting a chat.

Examples:
  archlogic search "courtyard daylighting"
  archlogic search --mode archseek "brutalist concrete facades"
  archlogic search --format json "adaptive reuse"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().StringVar(&searchMode, "mode", "default", "Search mode: default, archseek, raw_text, logic, summary")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireOpenAI(); err != nil {
		return err
	}
	client, err := llm.NewClient(cfg)
	if err != nil {
		return err
	}
	retriever, err := newRetriever(cfg, client, logger)
	if err != nil {
		return err
	}

	hits, err := retriever.CaseSearch(cmd.Context(), args[0], retrieval.Mode(searchMode))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No cases found for query: %s\n", args[0])
		}
		return nil
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tREF\tCASE\tCONTENT\n")
	for _, hit := range hits {
		fmt.Fprintf(w, "%.3f\tR%dA%d\t%s\t%s\n",
			hit.Score, hit.CaseID, hit.AssetID,
			truncate(hit.CaseName, 30),
			truncate(hit.Content, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d case(s)\n", len(hits))
	}
	return nil
}
