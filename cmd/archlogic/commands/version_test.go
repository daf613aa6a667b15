// ABOUTME: Tests for the version command output
// ABOUTME: Verifies version, commit and date lines and SetVersion plumbing
package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3", "abc1234", "2026-01-01")
	defer SetVersion("dev", "none", "unknown")

	cmd := NewVersionCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	got := output.String()
	for _, want := range []string{"ArchLogic 1.2.3", "Commit: abc1234", "Built:  2026-01-01"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
