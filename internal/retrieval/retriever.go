// ABOUTME: Dense retrieval over the logic index fused with image-similarity rankings
// ABOUTME: Produces reference-tagged context blocks for grounded answer generation
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danruili/archlogic/internal/imgindex"
	"github.com/danruili/archlogic/internal/index"
	"github.com/danruili/archlogic/internal/models"
)

// Mode selects which node types a dense search covers
type Mode string

const (
	ModeDefault  Mode = "default"
	ModeArchseek Mode = "archseek"
	ModeRawText  Mode = "raw_text"
	ModeLogic    Mode = "logic"
	ModeSummary  Mode = "summary"
)

// ModeTypes maps each search mode to the node types it covers
var ModeTypes = map[Mode][]models.NodeType{
	ModeDefault:  {models.NodeImageDesc, models.NodeRawText},
	ModeArchseek: {models.NodeArchseek},
	ModeRawText:  {models.NodeRawText},
	ModeLogic:    {models.NodeStrategy, models.NodeGoal},
	ModeSummary:  {models.NodeStrategySum, models.NodeGoalSum},
}

// TextIndex is the slice of the index builder retrieval needs
type TextIndex interface {
	Query(ctx context.Context, text string, topK int, types []models.NodeType) ([]index.QueryResult, error)
}

// ImageIndex ranks assets by text-to-image similarity
type ImageIndex interface {
	QueryText(ctx context.Context, text string, topK int) ([]imgindex.Result, error)
}

// Hit is one retrieval result, either a node hit or a cluster summary
type Hit struct {
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	AssetID  int     `json:"asset_id"`
	CaseName string  `json:"case_name"`
	CaseID   int     `json:"case_id"`
	Type     string  `json:"type"`
}

// IsSummary reports whether the hit is a cluster summary
func (h Hit) IsSummary() bool { return h.Type == "summary" }

// Retriever fuses dense text search with image-similarity rankings
type Retriever struct {
	textIndex    TextIndex
	imageIndex   ImageIndex // nil disables the image ranking
	caseIDByName map[string]int
	topK         int
	logger       *zap.Logger
}

// NewRetriever creates a retriever. imageIndex may be nil when no image index
// is built; caseIDByName maps case names to their reference ids.
func NewRetriever(textIndex TextIndex, imageIndex ImageIndex, caseMap map[int]string, topK int, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]int, len(caseMap))
	for id, name := range caseMap {
		byName[name] = id
	}
	return &Retriever{
		textIndex:    textIndex,
		imageIndex:   imageIndex,
		caseIDByName: byName,
		topK:         topK,
		logger:       logger,
	}
}

// Search runs one dense search in the given mode
func (r *Retriever) Search(ctx context.Context, query string, mode Mode, topK int) ([]Hit, error) {
	types, ok := ModeTypes[mode]
	if !ok {
		return nil, fmt.Errorf("unknown retrieval mode %q", mode)
	}
	results, err := r.textIndex.Query(ctx, query, topK, types)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		hits = append(hits, hitFromNode(res))
	}
	return hits, nil
}

// QARetrieve gathers grounding context for answer generation: cluster
// summaries plus an RRF fusion of archseek, image and default rankings.
// Returns the rendered context block and the structured hits behind it.
func (r *Retriever) QARetrieve(ctx context.Context, query string, topK, retrieveTopK int) (string, []Hit, error) {
	if topK <= 0 {
		topK = r.topK
	}

	summaries, err := r.Search(ctx, query, ModeSummary, 5)
	if err != nil {
		return "", nil, fmt.Errorf("summary search: %w", err)
	}
	for i := range summaries {
		summaries[i].Type = "summary"
	}

	archseek, err := r.Search(ctx, query, ModeArchseek, retrieveTopK)
	if err != nil {
		return "", nil, fmt.Errorf("archseek search: %w", err)
	}
	general, err := r.Search(ctx, query, ModeDefault, retrieveTopK)
	if err != nil {
		return "", nil, fmt.Errorf("default search: %w", err)
	}
	images := r.imageRanking(ctx, query, retrieveTopK)

	archseekIDs := assetRanking(archseek)
	generalIDs := assetRanking(general)
	r.logger.Info("fusing rankings",
		zap.Int("archseek", len(archseekIDs)),
		zap.Int("image", len(images)),
		zap.Int("default", len(generalIDs)))

	// Fusion needs all three signals at equal length; otherwise fall back to
	// whichever text ranking is populated.
	var fusedIDs []int
	minLen := min(len(archseekIDs), min(len(images), len(generalIDs)))
	if minLen > 0 {
		fusedIDs = RRFFusion(0, archseekIDs[:minLen], images[:minLen], generalIDs[:minLen])
	} else if len(archseekIDs) > 0 {
		fusedIDs = archseekIDs
	} else {
		fusedIDs = generalIDs
	}

	archseekByAsset := hitsByAsset(archseek)
	generalByAsset := hitsByAsset(general)
	archseekRank := rankByAsset(archseekIDs)
	generalRank := rankByAsset(generalIDs)

	var fused []Hit
	for _, assetID := range fusedIDs {
		a, inArchseek := archseekByAsset[assetID]
		g, inGeneral := generalByAsset[assetID]
		switch {
		case inArchseek && !inGeneral:
			fused = append(fused, a)
		case inGeneral && !inArchseek:
			fused = append(fused, g)
		case inArchseek && inGeneral:
			if archseekRank[assetID] <= generalRank[assetID] {
				fused = append(fused, a)
			} else {
				fused = append(fused, g)
			}
		}
	}
	if len(fused) > topK {
		fused = fused[:topK]
	}

	all := append(summaries, fused...)
	return StringifyHits(all), all, nil
}

// CaseSearch retrieves hits deduplicated by case, one per case study
func (r *Retriever) CaseSearch(ctx context.Context, query string, mode Mode) ([]Hit, error) {
	hits, err := r.Search(ctx, query, mode, 500)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var unique []Hit
	for _, h := range hits {
		if seen[h.CaseName] {
			continue
		}
		seen[h.CaseName] = true
		unique = append(unique, h)
		if len(unique) == r.topK {
			break
		}
	}
	return unique, nil
}

// imageRanking is best effort: a missing or failing image index only drops
// one fusion signal
func (r *Retriever) imageRanking(ctx context.Context, query string, topK int) []int {
	if r.imageIndex == nil {
		return nil
	}
	results, err := r.imageIndex.QueryText(ctx, query, topK)
	if err != nil {
		r.logger.Warn("image ranking unavailable", zap.Error(err))
		return nil
	}
	ids := make([]int, 0, len(results))
	for _, res := range results {
		if _, ok := r.caseIDByName[res.Record.CaseName]; !ok {
			continue
		}
		ids = append(ids, res.Record.AssetID)
	}
	return ids
}

// StringifyHits renders hits into the reference-tagged context block fed to
// the answer generator
func StringifyHits(hits []Hit) string {
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.IsSummary() {
			blocks = append(blocks, fmt.Sprintf("\nSummary: %s\nScore: %.2f\n", h.Content, h.Score))
			continue
		}
		blocks = append(blocks, fmt.Sprintf("\nCase Name: %s\nRef ID: R%dA%d\nScore: %.2f\n%s\n",
			h.CaseName, h.CaseID, h.AssetID, h.Score, h.Content))
	}
	return strings.Join(blocks, "\n")
}

func hitFromNode(res index.QueryResult) Hit {
	return Hit{
		Content:  res.Node.Text,
		Score:    res.Score,
		AssetID:  res.Node.AssetID,
		CaseName: res.Node.CaseName,
		CaseID:   res.Node.CaseID,
		Type:     string(res.Node.Type),
	}
}

// assetRanking extracts asset ids in rank order, first occurrence only
func assetRanking(hits []Hit) []int {
	seen := map[int]bool{}
	var ids []int
	for _, h := range hits {
		if seen[h.AssetID] {
			continue
		}
		seen[h.AssetID] = true
		ids = append(ids, h.AssetID)
	}
	return ids
}

// hitsByAsset keeps the best-ranked hit per asset
func hitsByAsset(hits []Hit) map[int]Hit {
	byAsset := make(map[int]Hit, len(hits))
	for _, h := range hits {
		if _, ok := byAsset[h.AssetID]; !ok {
			byAsset[h.AssetID] = h
		}
	}
	return byAsset
}

func rankByAsset(ids []int) map[int]int {
	ranks := make(map[int]int, len(ids))
	for rank, id := range ids {
		ranks[id] = rank
	}
	return ranks
}
