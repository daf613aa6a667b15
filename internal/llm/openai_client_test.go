// ABOUTME: Tests for JSON block parsing of LLM replies
// ABOUTME: Covers fenced blocks, bare JSON, multiple blocks, and list validation
package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONBlock_Fenced(t *testing.T) {
	reply := "Here is the extraction:\n```json\n[{\"strategy\": \"s\", \"goal\": \"g\"}]\n```\nDone."

	raw, err := ExtractJSONBlock(reply, true)
	if err != nil {
		t.Fatalf("ExtractJSONBlock failed: %v", err)
	}

	var items []map[string]string
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(items) != 1 || items[0]["strategy"] != "s" {
		t.Errorf("unexpected items: %v", items)
	}
}

func TestExtractJSONBlock_UsesLastBlock(t *testing.T) {
	reply := "Draft:\n```json\n[\"old\"]\n```\nFinal:\n```json\n[\"new\"]\n```"

	raw, err := ExtractJSONBlock(reply, true)
	if err != nil {
		t.Fatalf("ExtractJSONBlock failed: %v", err)
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(items) != 1 || items[0] != "new" {
		t.Errorf("expected last block, got %v", items)
	}
}

func TestExtractJSONBlock_BareJSON(t *testing.T) {
	raw, err := ExtractJSONBlock(`{"form": ["a sentence"]}`, false)
	if err != nil {
		t.Fatalf("ExtractJSONBlock failed: %v", err)
	}

	var m map[string][]string
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(m["form"]) != 1 {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestExtractJSONBlock_Unfenced_NoBackticks(t *testing.T) {
	reply := "```\n[1, 2, 3]\n```"

	raw, err := ExtractJSONBlock(reply, true)
	if err != nil {
		t.Fatalf("ExtractJSONBlock failed: %v", err)
	}
	var nums []int
	if err := json.Unmarshal(raw, &nums); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(nums) != 3 {
		t.Errorf("expected 3 numbers, got %v", nums)
	}
}

func TestExtractJSONBlock_Errors(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantList bool
	}{
		{"no json at all", "I could not find any design logic.", false},
		{"malformed block", "```json\n[{\"strategy\": }\n```", true},
		{"object when list wanted", "```json\n{\"strategy\": \"s\"}\n```", true},
		{"empty reply", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExtractJSONBlock(tt.reply, tt.wantList); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
