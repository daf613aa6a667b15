// ABOUTME: Tests for shared CLI helper functions
// ABOUTME: Covers string truncation and flag validation
package commands

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"tiny limit", "hello", 3, "hel"},
		{"unicode", "日本語のテキストです", 5, "日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestValidatePositiveInt(t *testing.T) {
	if err := validatePositiveInt(5, "workers"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validatePositiveInt(0, "workers"); err == nil {
		t.Error("expected error for zero")
	}
	if err := validatePositiveInt(-1, "limit"); err == nil {
		t.Error("expected error for negative")
	}
}
