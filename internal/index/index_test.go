// ABOUTME: Tests for the index builder using in-memory store and embedder fakes
// ABOUTME: Covers build refusal, document skipping, query ordering, and payload mapping
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/danruili/archlogic/internal/models"
)

type fakeStore struct {
	points    map[string]Point
	dim       int
	created   bool
	forceUsed bool
	hits      []ScoredPoint
}

func newFakeStore() *fakeStore {
	return &fakeStore{points: make(map[string]Point)}
}

func (f *fakeStore) EnsureCollection(_ context.Context, dim int, force bool) error {
	if force {
		f.points = make(map[string]Point)
		f.forceUsed = true
	}
	f.dim = dim
	f.created = true
	return nil
}

func (f *fakeStore) Count(context.Context) (int, error)     { return len(f.points), nil }
func (f *fakeStore) Dimension(context.Context) (int, error) { return f.dim, nil }

func (f *fakeStore) Upsert(_ context.Context, points []Point) error {
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeStore) Search(context.Context, []float64, int, []string) ([]ScoredPoint, error) {
	return f.hits, nil
}

type fakeEmbedder struct {
	dim   int
	calls int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, f.dim)
		out[i][0] = float64(len(texts[i]))
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func writeDoc(t *testing.T, dir, name string, items []models.ExtractionItem) {
	t.Helper()
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestBuilder(t *testing.T) (*Builder, *fakeStore, string) {
	t.Helper()
	root := t.TempDir()
	extractionDir := filepath.Join(root, "extraction")
	if err := os.MkdirAll(extractionDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	store := newFakeStore()
	b := NewBuilder(extractionDir, filepath.Join(root, "reference"), store, &fakeEmbedder{dim: 4}, nil, nil)
	return b, store, root
}

func TestBuild_IndexesAllDocuments(t *testing.T) {
	b, store, root := newTestBuilder(t)

	writeDoc(t, filepath.Join(root, "extraction"), "Case A", []models.ExtractionItem{
		{AssetName: "a.jpg", Strategy: "s", Goal: "g"},
	})
	writeDoc(t, filepath.Join(root, "extraction"), "Case B", []models.ExtractionItem{
		{AssetName: "b.jpg", ImageDescription: "one paragraph"},
	})

	stats, err := b.Build(context.Background(), false)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if stats.Cases != 2 {
		t.Errorf("Cases = %d, want 2", stats.Cases)
	}
	// Case A yields strategy+goal+pair, Case B one description node
	if stats.Nodes != 4 {
		t.Errorf("Nodes = %d, want 4", stats.Nodes)
	}
	if len(store.points) != 4 {
		t.Errorf("stored points = %d, want 4", len(store.points))
	}
	if !store.created {
		t.Error("collection was not created")
	}

	// Reference maps written
	caseMap, err := LoadCaseIDMap(filepath.Join(root, "reference"))
	if err != nil {
		t.Fatalf("LoadCaseIDMap failed: %v", err)
	}
	if caseMap[0] != "Case A" || caseMap[1] != "Case B" {
		t.Errorf("unexpected case map: %v", caseMap)
	}

	assetMap, err := LoadAssetIDMap(filepath.Join(root, "reference"))
	if err != nil {
		t.Fatalf("LoadAssetIDMap failed: %v", err)
	}
	if assetMap[0] != "Case A|||a.jpg" || assetMap[1] != "Case B|||b.jpg" {
		t.Errorf("unexpected asset map: %v", assetMap)
	}
}

func TestBuild_RefusesNonEmptyCollection(t *testing.T) {
	b, store, root := newTestBuilder(t)
	writeDoc(t, filepath.Join(root, "extraction"), "Case A", []models.ExtractionItem{
		{AssetName: "a.jpg", Strategy: "s", Goal: "g"},
	})

	store.points["existing"] = Point{ID: "existing"}

	if _, err := b.Build(context.Background(), false); err == nil {
		t.Fatal("expected refusal for non-empty collection without force")
	}

	stats, err := b.Build(context.Background(), true)
	if err != nil {
		t.Fatalf("forced Build failed: %v", err)
	}
	if !store.forceUsed {
		t.Error("force did not recreate the collection")
	}
	if stats.Nodes != 3 {
		t.Errorf("Nodes = %d, want 3", stats.Nodes)
	}
}

func TestBuild_SkipsBadDocument(t *testing.T) {
	b, _, root := newTestBuilder(t)
	extractionDir := filepath.Join(root, "extraction")

	writeDoc(t, extractionDir, "Case A", []models.ExtractionItem{
		{AssetName: "a.jpg", Strategy: "s", Goal: "g"},
	})
	if err := os.WriteFile(filepath.Join(extractionDir, "Broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	stats, err := b.Build(context.Background(), false)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if stats.Cases != 1 || stats.SkippedCases != 1 {
		t.Errorf("Cases = %d, SkippedCases = %d, want 1 and 1", stats.Cases, stats.SkippedCases)
	}
}

func TestBuild_EmptyExtractionDirFails(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	if _, err := b.Build(context.Background(), false); err == nil {
		t.Error("expected error for empty extraction dir")
	}
}

func TestQuery_SortsAndDeduplicates(t *testing.T) {
	b, store, _ := newTestBuilder(t)

	store.hits = []ScoredPoint{
		{ID: "n1", Score: 0.5, Payload: map[string]any{"text": "low", "type": "strategy"}},
		{ID: "n2", Score: 0.9, Payload: map[string]any{"text": "high", "type": "goal"}},
		{ID: "n1", Score: 0.5, Payload: map[string]any{"text": "low", "type": "strategy"}},
	}

	results, err := b.Query(context.Background(), "query", 5, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 deduplicated results, got %d", len(results))
	}
	if results[0].Node.ID != "n2" {
		t.Errorf("top result = %s, want n2", results[0].Node.ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not sorted by score")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	n := models.LogicNode{
		ID:        "id-1",
		Text:      "ribbon windows",
		Type:      models.NodeStrategy,
		CaseName:  "Villa Savoye",
		CaseID:    3,
		AssetName: "facade.jpg",
		AssetID:   17,
		Round:     2,
		Subject:   "form",
		PairText:  "maximize daylight",
		Headline:  "",
		CaseIDs:   []int{1, 3},
	}

	got := NodeFromPayload(n.ID, PayloadFromNode(n))

	if got.Text != n.Text || got.Type != n.Type || got.CaseName != n.CaseName {
		t.Errorf("basic fields lost: %+v", got)
	}
	if got.CaseID != 3 || got.AssetID != 17 || got.Round != 2 {
		t.Errorf("numeric fields lost: %+v", got)
	}
	if got.Subject != "form" || got.PairText != "maximize daylight" {
		t.Errorf("optional fields lost: %+v", got)
	}
	if len(got.CaseIDs) != 2 || got.CaseIDs[1] != 3 {
		t.Errorf("case ids lost: %v", got.CaseIDs)
	}
}

func TestReferenceMaps_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reference")

	assetMap := map[int]string{0: "Case A|||a.jpg", 1: "Case B|||b.jpg"}
	caseMap := map[int]string{0: "Case A", 1: "Case B"}

	if err := WriteReferenceMaps(dir, assetMap, caseMap); err != nil {
		t.Fatalf("WriteReferenceMaps failed: %v", err)
	}

	gotAssets, err := LoadAssetIDMap(dir)
	if err != nil {
		t.Fatalf("LoadAssetIDMap failed: %v", err)
	}
	gotCases, err := LoadCaseIDMap(dir)
	if err != nil {
		t.Fatalf("LoadCaseIDMap failed: %v", err)
	}

	for id, want := range assetMap {
		if gotAssets[id] != want {
			t.Errorf("asset[%d] = %q, want %q", id, gotAssets[id], want)
		}
	}
	for id, want := range caseMap {
		if gotCases[id] != want {
			t.Errorf("case[%d] = %q, want %q", id, gotCases[id], want)
		}
	}
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, []models.LogicNode, [][]float64) ([]models.LogicNode, [][]float64, error) {
	return nil, nil, fmt.Errorf("cluster blew up")
}

func TestBuild_ClusterFailureKeepsBaseIndex(t *testing.T) {
	b, store, root := newTestBuilder(t)
	b.summarizer = failingSummarizer{}

	writeDoc(t, filepath.Join(root, "extraction"), "Case A", []models.ExtractionItem{
		{AssetName: "a.jpg", Strategy: "s", Goal: "g"},
	})

	stats, err := b.Build(context.Background(), false)
	if err != nil {
		t.Fatalf("Build failed despite best-effort clustering: %v", err)
	}
	if stats.SummaryNodes != 0 {
		t.Errorf("SummaryNodes = %d, want 0", stats.SummaryNodes)
	}
	if len(store.points) != 3 {
		t.Errorf("base index points = %d, want 3", len(store.points))
	}
}
