// ABOUTME: Tests for the cluster/summarization transform with fake LLM and embedder
// ABOUTME: Verifies grouping output, summary parsing, and prompt rendering
package cluster

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/danruili/archlogic/internal/llm"
	"github.com/danruili/archlogic/internal/models"
)

type fakeLLM struct {
	calls int
}

func (f *fakeLLM) ChatJSON(context.Context, []llm.Message, bool) (json.RawMessage, string, error) {
	f.calls++
	return json.RawMessage(`{"headline": "Shared daylight strategies", "description": "Buildings use ribbon windows [R0A1] and skylights [R1A3]."}`), "", nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{float64(i), 1}
	}
	return out, nil
}

func strategyNodes(n int) ([]models.LogicNode, [][]float64) {
	nodes := make([]models.LogicNode, n)
	vecs := make([][]float64, n)
	for i := range nodes {
		nodes[i] = models.LogicNode{
			ID:       models.NewNodeID("case", "asset", models.NodeStrategy, i),
			Text:     "strategy text",
			Type:     models.NodeStrategy,
			CaseID:   i % 3,
			AssetID:  i,
			PairText: "goal text",
		}
		// spread the vectors so k-means has separable groups
		vecs[i] = []float64{float64(i % 2 * 10), float64(i)}
	}
	return nodes, vecs
}

func TestSummarize_ProducesSummaryNodes(t *testing.T) {
	client := &fakeLLM{}
	tr := NewTransform(client, fakeEmbedder{}, 1, 4, nil)

	nodes, vecs := strategyNodes(8)
	summaries, sumVecs, err := tr.Summarize(context.Background(), nodes, vecs)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if len(summaries) == 0 {
		t.Fatal("expected at least one summary node")
	}
	if len(summaries) != len(sumVecs) {
		t.Fatalf("summaries and vectors out of sync: %d vs %d", len(summaries), len(sumVecs))
	}
	if client.calls != len(summaries) {
		t.Errorf("LLM calls = %d, want one per summary (%d)", client.calls, len(summaries))
	}

	for _, s := range summaries {
		if s.Type != models.NodeStrategySum {
			t.Errorf("summary type = %v, want strategy_summary", s.Type)
		}
		if s.Headline != "Shared daylight strategies" {
			t.Errorf("headline = %q", s.Headline)
		}
		if !strings.Contains(s.Text, "[R0A1]") {
			t.Errorf("summary text lost reference ids: %q", s.Text)
		}
		if len(s.CaseIDs) == 0 {
			t.Error("summary carries no member case ids")
		}
		for i := 1; i < len(s.CaseIDs); i++ {
			if s.CaseIDs[i] < s.CaseIDs[i-1] {
				t.Errorf("case ids not sorted: %v", s.CaseIDs)
			}
		}
	}
}

func TestSummarize_SmallLevelSkipsClustering(t *testing.T) {
	client := &fakeLLM{}
	tr := NewTransform(client, fakeEmbedder{}, 2, 10, nil)

	nodes, vecs := strategyNodes(5)
	summaries, _, err := tr.Summarize(context.Background(), nodes, vecs)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected no summaries below the minimum level size, got %d", len(summaries))
	}
	if client.calls != 0 {
		t.Errorf("LLM should not be called, got %d calls", client.calls)
	}
}

func TestSummarize_VectorMismatch(t *testing.T) {
	tr := NewTransform(&fakeLLM{}, fakeEmbedder{}, 1, 1, nil)
	nodes, vecs := strategyNodes(4)
	if _, _, err := tr.Summarize(context.Background(), nodes, vecs[:3]); err == nil {
		t.Error("expected error for node/vector count mismatch")
	}
}

func TestStringifyGroup(t *testing.T) {
	members := []models.LogicNode{
		{Text: "Deep overhangs shade the facade", PairText: "reduce solar gain", CaseID: 2, AssetID: 5},
		{Text: "lower level synthesis", Headline: "Shading moves"},
	}

	got := stringifyGroup(members, "strategy")
	if !strings.Contains(got, "Reference ID: [R2A5]") {
		t.Errorf("missing reference id in:\n%s", got)
	}
	if !strings.Contains(got, "(serves for: reduce solar gain)") {
		t.Errorf("missing counterpart in:\n%s", got)
	}
	if !strings.Contains(got, "Headline: Shading moves") {
		t.Errorf("missing group rendering in:\n%s", got)
	}

	goalSide := stringifyGroup(members[:1], "goal")
	if !strings.Contains(goalSide, "(achieved by: reduce solar gain)") {
		t.Errorf("goal rendering wrong:\n%s", goalSide)
	}
}
