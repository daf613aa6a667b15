// ABOUTME: CLI command to inspect the project metadata store
// ABOUTME: Lists extracted projects or shows one project's stored metadata
package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danruili/archlogic/internal/storage/sqlite"
)

// NewProjectsCmd creates the projects command
func NewProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects [name]",
		Short: "List extracted projects and their metadata",
		Long: `Show what the extraction pipeline has stored about each project.
Without arguments, lists every project in the metadata store. With a
name, shows that project's full metadata.

Examples:
  archlogic projects
  archlogic projects "Villa Savoye"
  archlogic projects --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runProjects,
	}
}

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := sqlite.Open(cfg.ProjectDBPath())
	if err != nil {
		return fmt.Errorf("opening project store: %w", err)
	}
	defer func() { _ = db.Close() }()
	store := sqlite.NewProjectStore(db)

	if len(args) == 1 {
		return showProject(cmd, store, args[0])
	}
	return listProjects(cmd, store)
}

func showProject(cmd *cobra.Command, store *sqlite.ProjectStore, name string) error {
	project, err := store.Get(cmd.Context(), name)
	if err != nil {
		return err
	}
	if project == nil {
		return fmt.Errorf("project %q is not in the store (run `archlogic extract` first)", name)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(project, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:      %s\n", project.Name)
	fmt.Fprintf(out, "Designer:  %s\n", joinOrDash(project.Metadata.Designer))
	fmt.Fprintf(out, "Year:      %s\n", intOrDash(project.Metadata.Year))
	fmt.Fprintf(out, "Location:  %s\n", locationOrDash(project.Metadata.City, project.Metadata.Country))
	fmt.Fprintf(out, "Function:  %s\n", joinOrDash(project.Metadata.Function))
	fmt.Fprintf(out, "Style:     %s\n", joinOrDash(project.Metadata.Style))
	fmt.Fprintf(out, "Material:  %s\n", joinOrDash(project.Metadata.Material))
	fmt.Fprintf(out, "Items:     %d\n", project.ItemCount)
	fmt.Fprintf(out, "Extracted: %s\n", project.ExtractedAt.Format("2006-01-02 15:04"))
	return nil
}

func listProjects(cmd *cobra.Command, store *sqlite.ProjectStore) error {
	projects, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	count, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(projects, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	if len(projects) == 0 {
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "No projects stored (run `archlogic extract` first)")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tDESIGNER\tYEAR\tCOUNTRY\tITEMS\n")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			truncate(p.Name, 30),
			truncate(joinOrDash(p.Metadata.Designer), 25),
			intOrDash(p.Metadata.Year),
			stringOrDash(p.Metadata.Country),
			p.ItemCount)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d project(s) stored\n", count)
	}
	return nil
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func stringOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func intOrDash(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

func locationOrDash(city, country string) string {
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	case country != "":
		return country
	}
	return "-"
}
