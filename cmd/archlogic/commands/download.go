// ABOUTME: CLI command to download the dataset from its manifest
// ABOUTME: Fetches project images and descriptions into per-project folders
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danruili/archlogic/internal/dataset"
)

var (
	downloadManifest   string
	downloadOut        string
	downloadLimit      int
	downloadForce      bool
	downloadDryRun     bool
	downloadThumbnails bool
	downloadScrape     bool
	downloadScale      bool
	downloadMaxDim     int
	downloadDelay      float64
)

// NewDownloadCmd creates the download command
func NewDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download dataset images and descriptions",
		Long: `Download every project named in the manifest: full-size images
resolved from their Wikimedia thumbnails, plus the Wikipedia page summary
as description.txt. Projects that already have a description are skipped.

Examples:
  archlogic download --manifest data/wikiarch.json
  archlogic download --manifest data/wikiarch.json --limit 5 --dry-run
  archlogic download --manifest data/wikiarch.json --scale --max-dim 1024`,
		RunE: runDownload,
	}

	cmd.Flags().StringVar(&downloadManifest, "manifest", "", "Path to the dataset manifest JSON (required)")
	cmd.Flags().StringVar(&downloadOut, "out", "", "Output directory (default <data root>/raw)")
	cmd.Flags().IntVar(&downloadLimit, "limit", 0, "Download at most N projects (0 = all)")
	cmd.Flags().BoolVar(&downloadForce, "force", false, "Re-download projects that already exist")
	cmd.Flags().BoolVar(&downloadDryRun, "dry-run", false, "List what would be downloaded without fetching")
	cmd.Flags().BoolVar(&downloadThumbnails, "thumbnails", false, "Keep thumbnail resolution instead of full size")
	cmd.Flags().BoolVar(&downloadScrape, "scrape", false, "Always resolve image URLs via the Commons page")
	cmd.Flags().BoolVar(&downloadScale, "scale", false, "Downscale images after download")
	cmd.Flags().IntVar(&downloadMaxDim, "max-dim", 1280, "Longest image edge when scaling")
	cmd.Flags().Float64Var(&downloadDelay, "delay", 1.5, "Seconds between requests (Wikimedia robot policy minimum 1.0)")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	outDir := downloadOut
	if outDir == "" {
		outDir = cfg.RawDir()
	}

	d := dataset.NewDownloader(logger)
	stats, err := d.Run(cmd.Context(), downloadManifest, outDir, dataset.Options{
		Limit:          downloadLimit,
		Force:          downloadForce,
		DryRun:         downloadDryRun,
		ThumbnailsOnly: downloadThumbnails,
		ScrapeURLs:     downloadScrape,
		Scale:          downloadScale,
		MaxDim:         downloadMaxDim,
		DelaySeconds:   downloadDelay,
	})
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d project(s) (%d image(s), %d skipped, %d failed image(s))\n",
			stats.Items, stats.Images, stats.Skipped, stats.FailedImages)
	}
	return nil
}
