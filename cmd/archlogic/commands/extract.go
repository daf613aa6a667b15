// ABOUTME: CLI command to extract design-logic tuples from downloaded projects
// ABOUTME: Runs the LLM inquiry per asset and upserts project metadata into SQLite
package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danruili/archlogic/internal/extraction"
	"github.com/danruili/archlogic/internal/llm"
	"github.com/danruili/archlogic/internal/storage/sqlite"
)

var (
	extractData     string
	extractProject  string
	extractLimit    int
	extractForce    bool
	extractWorkers  int
	extractGleaning int
)

// NewExtractCmd creates the extract command
func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract design-logic tuples from project assets",
		Long: `Run the LLM extraction over every downloaded project: image
descriptions, design-logic tuples with gleaning rounds, holistic analysis
and project metadata. Results land as one JSON document per project;
metadata is upserted into the project store.

Examples:
  archlogic extract
  archlogic extract --project "Villa Savoye"
  archlogic extract --limit 3 --workers 8`,
		RunE: runExtract,
	}

	cmd.Flags().StringVar(&extractData, "data", "", "Dataset directory (default from config)")
	cmd.Flags().StringVar(&extractProject, "project", "", "Extract a single project by name")
	cmd.Flags().IntVar(&extractLimit, "limit", 0, "Extract at most N projects (0 = all)")
	cmd.Flags().BoolVar(&extractForce, "force", false, "Re-extract projects that already have output")
	cmd.Flags().IntVar(&extractWorkers, "workers", 4, "Parallel asset extractions per project")
	cmd.Flags().IntVar(&extractGleaning, "gleaning", 2, "Maximum gleaning rounds per asset")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(extractWorkers, "workers"); err != nil {
		return err
	}

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

	dataDir := extractData
	if dataDir == "" {
		dataDir = cfg.DataRoot
	}
	root, projectRoot := extraction.ResolvePaths(dataDir)
	extractionDir := cfg.ExtractionDir()
	if extractData != "" {
		extractionDir = filepath.Join(root, "extraction")
	}

	db, err := sqlite.Open(cfg.ProjectDBPath())
	if err != nil {
		return fmt.Errorf("opening project store: %w", err)
	}
	defer func() { _ = db.Close() }()

	store := sqlite.NewProjectStore(db)
	runner := extraction.NewRunner(client, store, extractGleaning, extractWorkers, logger)

	if extractProject != "" {
		projectDir, name, err := extraction.ResolveProject(projectRoot, extractProject)
		if err != nil {
			return err
		}
		items, err := runner.ExtractProject(cmd.Context(), projectDir, name,
			extraction.OutputPath(extractionDir, name), extractForce)
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d item(s) from %s\n", len(items), name)
			// metadata upsert is best-effort, so report what actually landed
			if project, err := store.Get(cmd.Context(), name); err == nil && project != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Stored metadata: designer %s, year %s, %s\n",
					joinOrDash(project.Metadata.Designer),
					intOrDash(project.Metadata.Year),
					locationOrDash(project.Metadata.City, project.Metadata.Country))
			}
		}
		return nil
	}

	stats, err := runner.ExtractAll(cmd.Context(), projectRoot, extractionDir, extractLimit, extractForce)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d project(s), %d failed\n", stats.Projects, stats.Failed)
	}
	return nil
}
