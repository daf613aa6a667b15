// ABOUTME: Tests for the projects command against a real on-disk store
// ABOUTME: Seeds the metadata database directly and checks the rendered output
package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danruili/archlogic/internal/models"
	"github.com/danruili/archlogic/internal/storage/sqlite"
)

func seedProjectStore(t *testing.T) string {
	t.Helper()
	dataRoot := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dataRoot, "projects.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := sqlite.NewProjectStore(db)
	err = store.UpsertProject(context.Background(), "Villa Savoye", models.ProjectMetadata{
		Designer: []string{"Le Corbusier"},
		Year:     1931,
		Country:  "France",
		City:     "Poissy",
		Function: []string{"residential"},
	}, 7)
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	err = store.UpsertProject(context.Background(), "Fallingwater", models.ProjectMetadata{
		Designer: []string{"Frank Lloyd Wright"},
		Year:     1937,
		Country:  "United States",
	}, 5)
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	return dataRoot
}

func runProjectsCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs(append([]string{"projects"}, args...))
	err := cmd.Execute()
	return output.String(), err
}

func TestProjectsCmd_List(t *testing.T) {
	t.Setenv("ARCHLOGIC_DATA_ROOT", seedProjectStore(t))

	out, err := runProjectsCmd(t)
	if err != nil {
		t.Fatalf("projects failed: %v", err)
	}
	if !strings.Contains(out, "Villa Savoye") || !strings.Contains(out, "Fallingwater") {
		t.Errorf("listing missing projects:\n%s", out)
	}
	if !strings.Contains(out, "Le Corbusier") {
		t.Errorf("listing missing designer:\n%s", out)
	}
	if !strings.Contains(out, "2 project(s) stored") {
		t.Errorf("listing missing count:\n%s", out)
	}
	// ordered by name
	if strings.Index(out, "Fallingwater") > strings.Index(out, "Villa Savoye") {
		t.Errorf("listing not ordered by name:\n%s", out)
	}
}

func TestProjectsCmd_Show(t *testing.T) {
	t.Setenv("ARCHLOGIC_DATA_ROOT", seedProjectStore(t))

	out, err := runProjectsCmd(t, "Villa Savoye")
	if err != nil {
		t.Fatalf("projects failed: %v", err)
	}
	for _, want := range []string{"Le Corbusier", "1931", "Poissy, France", "residential", "Items:     7"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProjectsCmd_ShowUnknown(t *testing.T) {
	t.Setenv("ARCHLOGIC_DATA_ROOT", seedProjectStore(t))

	_, err := runProjectsCmd(t, "Nonexistent Tower")
	if err == nil || !strings.Contains(err.Error(), "not in the store") {
		t.Errorf("err = %v, want not-in-store error", err)
	}
}

func TestProjectsCmd_EmptyStore(t *testing.T) {
	t.Setenv("ARCHLOGIC_DATA_ROOT", t.TempDir())

	out, err := runProjectsCmd(t)
	if err != nil {
		t.Fatalf("projects failed: %v", err)
	}
	if !strings.Contains(out, "No projects stored") {
		t.Errorf("output = %q", out)
	}
}
