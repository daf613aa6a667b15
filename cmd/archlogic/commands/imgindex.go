// ABOUTME: CLI commands for the image-embedding index: build, query, info
// ABOUTME: Embeds project images via Replicate CLIP and stores a flat-file index
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danruili/archlogic/internal/config"
	"github.com/danruili/archlogic/internal/imgindex"
	"github.com/danruili/archlogic/internal/index"
)

var (
	imgIndexForce     bool
	imgIndexQueryTopK int
)

// NewImgIndexCmd creates the imgindex command group
func NewImgIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgindex",
		Short: "Build and query the image-embedding index",
	}

	build := &cobra.Command{
		Use:   "build",
		Short: "Embed every indexed image and store the flat-file index",
		Long: `Embed each image referenced by the asset map with the Replicate
CLIP model and write the embedding matrix, record list and metadata to the
image index directory. Requires the logic index to be built first.

Examples:
  archlogic imgindex build
  archlogic imgindex build --force`,
		RunE: runImgIndexBuild,
	}
	build.Flags().BoolVar(&imgIndexForce, "force", false, "Rebuild an existing image index")

	query := &cobra.Command{
		Use:   "query <text>",
		Short: "Rank indexed images by text similarity",
		Args:  cobra.ExactArgs(1),
		RunE:  runImgIndexQuery,
	}
	query.Flags().IntVar(&imgIndexQueryTopK, "top-k", 10, "Number of results")

	info := &cobra.Command{
		Use:   "info",
		Short: "Show image index size, dimension and model",
		RunE:  runImgIndexInfo,
	}

	cmd.AddCommand(build, query, info)
	return cmd
}

func imgIndexSetup() (*imgindex.Index, *config.Config, *zap.Logger, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.RequireReplicate(); err != nil {
		return nil, nil, nil, err
	}
	rep, err := imgindex.NewReplicate(cfg.ReplicateToken, cfg.ReplicateModel, cfg.MaxRetries, cfg.RetryDelay)
	if err != nil {
		return nil, nil, nil, err
	}
	ix := imgindex.New(cfg.ImgIndexDir(), cfg.ReplicateModel, rep, cfg.ImageWorkers, logger)
	return ix, cfg, logger, nil
}

func runImgIndexBuild(cmd *cobra.Command, args []string) error {
	ix, cfg, logger, err := imgIndexSetup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	assetMap, err := index.LoadAssetIDMap(cfg.ReferenceDir())
	if err != nil {
		return fmt.Errorf("loading asset map (run `archlogic index build` first): %w", err)
	}

	meta, err := ix.Build(cmd.Context(), assetMap, cfg.RawDir(), imgIndexForce)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d image(s) at dimension %d\n", meta.Count, meta.Dimension)
	}
	return nil
}

func runImgIndexQuery(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(imgIndexQueryTopK, "top-k"); err != nil {
		return err
	}
	ix, _, logger, err := imgIndexSetup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	results, err := ix.QueryText(cmd.Context(), args[0], imgIndexQueryTopK)
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
	fmt.Fprintf(w, "SCORE\tCASE\tIMAGE\n")
	for _, res := range results {
		fmt.Fprintf(w, "%.3f\t%s\t%s\n",
			res.Score,
			truncate(res.Record.CaseName, 30),
			truncate(res.Record.ImageName, 40))
	}
	return w.Flush()
}

func runImgIndexInfo(cmd *cobra.Command, args []string) error {
	ix, _, logger, err := imgIndexSetup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	meta, err := ix.Info()
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Images:    %d\n", meta.Count)
	fmt.Fprintf(cmd.OutOrStdout(), "Dimension: %d\n", meta.Dimension)
	fmt.Fprintf(cmd.OutOrStdout(), "Model:     %s\n", meta.Model)
	return nil
}
