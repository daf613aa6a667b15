// ABOUTME: CLI commands for the dense logic index: build, query, info
// ABOUTME: Builds the Qdrant collection from extraction documents with an optional cluster pass
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danruili/archlogic/internal/cluster"
	"github.com/danruili/archlogic/internal/index"
	"github.com/danruili/archlogic/internal/llm"
	"github.com/danruili/archlogic/internal/retrieval"
)

var (
	indexForce     bool
	indexNoCluster bool
	indexQueryMode string
	indexQueryTopK int
)

// NewIndexCmd creates the index command group
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and query the design-logic index",
	}

	build := &cobra.Command{
		Use:   "build",
		Short: "Parse extraction documents and build the vector index",
		Long: `Parse every extraction document into logic nodes, embed them and
upsert them into the Qdrant collection. Also writes the asset and case
reference maps, and runs a cluster summarization pass over strategy and
goal nodes unless disabled.

Examples:
  archlogic index build
  archlogic index build --force --no-cluster`,
		RunE: runIndexBuild,
	}
	build.Flags().BoolVar(&indexForce, "force", false, "Rebuild a non-empty collection")
	build.Flags().BoolVar(&indexNoCluster, "no-cluster", false, "Skip the cluster summarization pass")

	query := &cobra.Command{
		Use:   "query <text>",
		Short: "Run one dense search against the index",
		Args:  cobra.ExactArgs(1),
		RunE:  runIndexQuery,
	}
	query.Flags().StringVar(&indexQueryMode, "mode", "default", "Search mode: default, archseek, raw_text, logic, summary")
	query.Flags().IntVar(&indexQueryTopK, "top-k", 10, "Number of results")

	info := &cobra.Command{
		Use:   "info",
		Short: "Show index point count, dimension and document count",
		RunE:  runIndexInfo,
	}

	cmd.AddCommand(build, query, info)
	return cmd
}

func indexSetup() (*index.Builder, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return newBuilder(cfg, client, logger), nil
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
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

	store := index.NewQdrant(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.Collection)
	var summarizer index.Summarizer
	if !indexNoCluster {
		summarizer = cluster.NewTransform(client, client, cfg.ClusterMaxDepth, cfg.ClusterMinNodes, logger)
	}
	builder := index.NewBuilder(cfg.ExtractionDir(), cfg.ReferenceDir(), store, client, summarizer, logger)

	stats, err := builder.Build(cmd.Context(), indexForce)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d case(s): %d node(s), %d summary node(s), %d skipped\n",
			stats.Cases, stats.Nodes, stats.SummaryNodes, stats.SkippedCases)
	}
	return nil
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(indexQueryTopK, "top-k"); err != nil {
		return err
	}
	types, ok := retrieval.ModeTypes[retrieval.Mode(indexQueryMode)]
	if !ok {
		return fmt.Errorf("unknown mode %q", indexQueryMode)
	}

	builder, err := indexSetup()
	if err != nil {
		return err
	}

	results, err := builder.Query(cmd.Context(), args[0], indexQueryTopK, types)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "No results")
		}
		return nil
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tTYPE\tCASE\tCONTENT\n")
	for _, res := range results {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n",
			res.Score,
			res.Node.Type,
			truncate(res.Node.CaseName, 25),
			truncate(res.Node.Text, 70))
	}
	return w.Flush()
}

func runIndexInfo(cmd *cobra.Command, args []string) error {
	builder, err := indexSetup()
	if err != nil {
		return err
	}

	info, err := builder.Info(cmd.Context())
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Points:           %d\n", info.Points)
	fmt.Fprintf(cmd.OutOrStdout(), "Dimension:        %d\n", info.Dimension)
	fmt.Fprintf(cmd.OutOrStdout(), "Extraction files: %d\n", info.ExtractionFiles)
	return nil
}
