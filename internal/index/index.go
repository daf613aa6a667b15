// ABOUTME: Builds and queries the text/logic vector index over extraction documents
// ABOUTME: Parses documents into nodes, embeds them, and upserts into Qdrant
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/danruili/archlogic/internal/models"
	"github.com/danruili/archlogic/internal/parser"
)

const (
	embedBatchSize  = 64
	upsertBatchSize = 128
)

// VectorStore is the slice of the Qdrant client the builder needs
type VectorStore interface {
	EnsureCollection(ctx context.Context, dim int, force bool) error
	Count(ctx context.Context) (int, error)
	Dimension(ctx context.Context) (int, error)
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float64, topK int, types []string) ([]ScoredPoint, error)
}

// Embedder produces dense vectors for node texts
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// Summarizer groups nodes and produces synthetic summary nodes with vectors.
// Used for the optional cluster pass over strategy and goal nodes.
type Summarizer interface {
	Summarize(ctx context.Context, nodes []models.LogicNode, vectors [][]float64) ([]models.LogicNode, [][]float64, error)
}

// Builder wires the parser, embedder and vector store into index operations
type Builder struct {
	extractionDir string
	referenceDir  string
	store         VectorStore
	embedder      Embedder
	summarizer    Summarizer // nil disables the cluster pass
	logger        *zap.Logger
}

// NewBuilder creates an index builder. summarizer may be nil.
func NewBuilder(extractionDir, referenceDir string, store VectorStore, embedder Embedder, summarizer Summarizer, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		extractionDir: extractionDir,
		referenceDir:  referenceDir,
		store:         store,
		embedder:      embedder,
		summarizer:    summarizer,
		logger:        logger,
	}
}

// BuildStats summarizes one index build
type BuildStats struct {
	Cases        int `json:"cases"`
	SkippedCases int `json:"skipped_cases"`
	Nodes        int `json:"nodes"`
	SummaryNodes int `json:"summary_nodes"`
}

// Build parses every extraction document, embeds the nodes and upserts them.
// Refuses to touch a non-empty collection unless force is set. A document
// that fails to parse is logged and skipped; the build continues.
func (b *Builder) Build(ctx context.Context, force bool) (BuildStats, error) {
	var stats BuildStats

	count, err := b.store.Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("checking collection: %w", err)
	}
	if count > 0 && !force {
		return stats, fmt.Errorf("collection already holds %d points; rerun with --force to rebuild", count)
	}

	caseNames, err := b.listCases()
	if err != nil {
		return stats, err
	}
	if len(caseNames) == 0 {
		return stats, fmt.Errorf("no extraction documents found in %s", b.extractionDir)
	}

	p := parser.NewParser()
	caseMap := make(map[int]string, len(caseNames))
	var nodes []models.LogicNode

	for caseID, caseName := range caseNames {
		caseMap[caseID] = caseName

		items, err := b.readDocument(caseName)
		if err != nil {
			b.logger.Warn("skipping unreadable extraction document",
				zap.String("case", caseName), zap.Error(err))
			stats.SkippedCases++
			continue
		}

		parsed, err := p.ParseDocument(caseName, caseID, items)
		if err != nil {
			b.logger.Warn("skipping unparseable extraction document",
				zap.String("case", caseName), zap.Error(err))
			stats.SkippedCases++
			continue
		}
		nodes = append(nodes, parsed...)
		stats.Cases++
	}

	if len(nodes) == 0 {
		return stats, fmt.Errorf("no logic nodes parsed from %d documents", len(caseNames))
	}

	if err := WriteReferenceMaps(b.referenceDir, p.AssetIDMap(), caseMap); err != nil {
		return stats, err
	}

	if err := b.store.EnsureCollection(ctx, b.embedder.Dimension(), force); err != nil {
		return stats, fmt.Errorf("creating collection: %w", err)
	}

	vectors, err := b.embedNodes(ctx, nodes)
	if err != nil {
		return stats, err
	}
	if err := b.upsertNodes(ctx, nodes, vectors); err != nil {
		return stats, err
	}
	stats.Nodes = len(nodes)

	// Cluster pass is best effort: a failure leaves the base index usable
	if b.summarizer != nil {
		summaries, sumVectors, err := b.summarizeLogic(ctx, nodes, vectors)
		if err != nil {
			b.logger.Warn("cluster summarization failed, keeping base index", zap.Error(err))
		} else if len(summaries) > 0 {
			if err := b.upsertNodes(ctx, summaries, sumVectors); err != nil {
				b.logger.Warn("upserting summary nodes failed", zap.Error(err))
			} else {
				stats.SummaryNodes = len(summaries)
			}
		}
	}

	return stats, nil
}

// QueryResult is one retrieval hit
type QueryResult struct {
	Node  models.LogicNode `json:"node"`
	Score float64          `json:"score"`
}

// Query embeds the text and searches the collection, optionally filtered by
// node types. Results come back score-descending, deduplicated by node id.
func (b *Builder) Query(ctx context.Context, text string, topK int, types []models.NodeType) ([]QueryResult, error) {
	vector, err := b.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	filters := make([]string, len(types))
	for i, t := range types {
		filters[i] = string(t)
	}

	hits, err := b.store.Search(ctx, vector[0], topK, filters)
	if err != nil {
		return nil, fmt.Errorf("searching collection: %w", err)
	}

	seen := make(map[string]bool, len(hits))
	results := make([]QueryResult, 0, len(hits))
	for _, hit := range hits {
		if seen[hit.ID] {
			continue
		}
		seen[hit.ID] = true
		results = append(results, QueryResult{Node: NodeFromPayload(hit.ID, hit.Payload), Score: hit.Score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// Info describes the current state of the index
type Info struct {
	Points          int `json:"points"`
	Dimension       int `json:"dimension"`
	ExtractionFiles int `json:"extraction_files"`
}

// Info reports point count, vector dimension and extraction file count
func (b *Builder) Info(ctx context.Context) (Info, error) {
	count, err := b.store.Count(ctx)
	if err != nil {
		return Info{}, err
	}
	dim := 0
	if count > 0 {
		if dim, err = b.store.Dimension(ctx); err != nil {
			return Info{}, err
		}
	}
	cases, err := b.listCases()
	if err != nil {
		cases = nil
	}
	return Info{Points: count, Dimension: dim, ExtractionFiles: len(cases)}, nil
}

func (b *Builder) listCases() ([]string, error) {
	entries, err := os.ReadDir(b.extractionDir)
	if err != nil {
		return nil, fmt.Errorf("reading extraction dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (b *Builder) readDocument(caseName string) ([]models.ExtractionItem, error) {
	data, err := os.ReadFile(filepath.Join(b.extractionDir, caseName+".json"))
	if err != nil {
		return nil, err
	}
	var items []models.ExtractionItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return items, nil
}

func (b *Builder) embedNodes(ctx context.Context, nodes []models.LogicNode) ([][]float64, error) {
	vectors := make([][]float64, 0, len(nodes))
	for start := 0; start < len(nodes); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		texts := make([]string, 0, end-start)
		for _, n := range nodes[start:end] {
			texts = append(texts, n.Text)
		}
		batch, err := b.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding nodes %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (b *Builder) upsertNodes(ctx context.Context, nodes []models.LogicNode, vectors [][]float64) error {
	for start := 0; start < len(nodes); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		points := make([]Point, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, Point{
				ID:      nodes[i].ID,
				Vector:  vectors[i],
				Payload: PayloadFromNode(nodes[i]),
			})
		}
		if err := b.store.Upsert(ctx, points); err != nil {
			return fmt.Errorf("upserting points %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (b *Builder) summarizeLogic(ctx context.Context, nodes []models.LogicNode, vectors [][]float64) ([]models.LogicNode, [][]float64, error) {
	var logicNodes []models.LogicNode
	var logicVectors [][]float64
	for i, n := range nodes {
		if n.Type == models.NodeStrategy || n.Type == models.NodeGoal {
			logicNodes = append(logicNodes, n)
			logicVectors = append(logicVectors, vectors[i])
		}
	}
	if len(logicNodes) == 0 {
		return nil, nil, nil
	}
	return b.summarizer.Summarize(ctx, logicNodes, logicVectors)
}

// PayloadFromNode flattens a node into a Qdrant payload
func PayloadFromNode(n models.LogicNode) map[string]any {
	payload := map[string]any{
		"text":      n.Text,
		"type":      string(n.Type),
		"case_name": n.CaseName,
		"case_id":   n.CaseID,
		"asset_id":  n.AssetID,
	}
	if n.AssetName != "" {
		payload["asset_name"] = n.AssetName
	}
	if n.Round != 0 {
		payload["round"] = n.Round
	}
	if n.Subject != "" {
		payload["subject"] = n.Subject
	}
	if n.PairText != "" {
		payload["pair_text"] = n.PairText
	}
	if n.Headline != "" {
		payload["headline"] = n.Headline
	}
	if n.Depth != 0 {
		payload["depth"] = n.Depth
	}
	if len(n.CaseIDs) > 0 {
		ids := make([]any, len(n.CaseIDs))
		for i, id := range n.CaseIDs {
			ids[i] = id
		}
		payload["case_ids"] = ids
	}
	return payload
}

// NodeFromPayload rebuilds a node from a search hit payload
func NodeFromPayload(id string, payload map[string]any) models.LogicNode {
	n := models.LogicNode{
		ID:        id,
		Text:      asString(payload["text"]),
		Type:      models.NodeType(asString(payload["type"])),
		CaseName:  asString(payload["case_name"]),
		CaseID:    asInt(payload["case_id"]),
		AssetName: asString(payload["asset_name"]),
		AssetID:   asInt(payload["asset_id"]),
		Round:     asInt(payload["round"]),
		Subject:   asString(payload["subject"]),
		PairText:  asString(payload["pair_text"]),
		Headline:  asString(payload["headline"]),
		Depth:     asInt(payload["depth"]),
	}
	if raw, ok := payload["case_ids"].([]any); ok {
		for _, v := range raw {
			n.CaseIDs = append(n.CaseIDs, asInt(v))
		}
	}
	return n
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case json.Number:
		i, _ := x.Int64()
		return int(i)
	}
	return 0
}
