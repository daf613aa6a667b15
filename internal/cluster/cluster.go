// ABOUTME: Groups strategy/goal nodes in embedding space and summarizes each group with an LLM
// ABOUTME: Produces synthetic *_summary nodes layered up to a configured depth
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danruili/archlogic/internal/llm"
	"github.com/danruili/archlogic/internal/models"
)

const (
	summaryWorkers = 8
	maxClusters    = 60
	nodesPerGroup  = 10
)

const summaryPrompt = `You are an architecture designer critic. Summarize the provided design %s references.
Return one JSON object inside a ` + "```json" + ` block with fields:
{
  "headline": "one-line summary",
  "description": "detailed structured synthesis that keeps reference ids in [R..A..] form"
}

Inputs:
%s`

// LLM is the completion surface the summarizer needs
type LLM interface {
	ChatJSON(ctx context.Context, msgs []llm.Message, wantList bool) (json.RawMessage, string, error)
}

// Embedder embeds the generated summaries for indexing
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// Transform clusters logic nodes and produces summary nodes. It satisfies the
// index builder's Summarizer interface.
type Transform struct {
	llm      LLM
	embedder Embedder
	maxDepth int
	minNodes int
	logger   *zap.Logger
}

// NewTransform builds a cluster transform. The pass only runs while a level
// holds more than minNodes nodes, up to maxDepth rounds.
func NewTransform(client LLM, embedder Embedder, maxDepth, minNodes int, logger *zap.Logger) *Transform {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transform{llm: client, embedder: embedder, maxDepth: maxDepth, minNodes: minNodes, logger: logger}
}

// Summarize groups the given strategy/goal nodes and returns summary nodes with
// their embeddings. Cluster membership depends on k-means initialization, so
// summary node ids are only stable within one build.
func (t *Transform) Summarize(ctx context.Context, nodes []models.LogicNode, vectors [][]float64) ([]models.LogicNode, [][]float64, error) {
	if len(nodes) != len(vectors) {
		return nil, nil, fmt.Errorf("got %d nodes but %d vectors", len(nodes), len(vectors))
	}

	byType := map[models.NodeType][]int{}
	for i, n := range nodes {
		byType[n.Type] = append(byType[n.Type], i)
	}

	var summaries []models.LogicNode
	var summaryVecs [][]float64
	ordinal := 0

	for _, pair := range []struct {
		base    models.NodeType
		summary models.NodeType
	}{
		{models.NodeStrategy, models.NodeStrategySum},
		{models.NodeGoal, models.NodeGoalSum},
	} {
		current := make([]models.LogicNode, 0, len(byType[pair.base]))
		currentVecs := make([][]float64, 0, len(byType[pair.base]))
		for _, i := range byType[pair.base] {
			current = append(current, nodes[i])
			currentVecs = append(currentVecs, vectors[i])
		}

		for depth := 0; depth < t.maxDepth; depth++ {
			if len(current) <= t.minNodes {
				break
			}

			level, err := t.summarizeLevel(ctx, current, currentVecs, pair.summary, depth, &ordinal)
			if err != nil {
				return nil, nil, fmt.Errorf("summarizing %s depth %d: %w", pair.base, depth, err)
			}

			texts := make([]string, len(level))
			for i, s := range level {
				texts[i] = fmt.Sprintf("#%s\n%s", s.Headline, s.Text)
			}
			levelVecs, err := t.embedder.EmbedTexts(ctx, texts)
			if err != nil {
				return nil, nil, fmt.Errorf("embedding summaries: %w", err)
			}

			summaries = append(summaries, level...)
			summaryVecs = append(summaryVecs, levelVecs...)
			current, currentVecs = level, levelVecs
		}
	}

	return summaries, summaryVecs, nil
}

func (t *Transform) summarizeLevel(ctx context.Context, nodes []models.LogicNode, vectors [][]float64, summaryType models.NodeType, depth int, ordinal *int) ([]models.LogicNode, error) {
	groups, err := partition(nodes, vectors)
	if err != nil {
		return nil, err
	}
	t.logger.Info("clustering level",
		zap.String("type", string(summaryType)),
		zap.Int("depth", depth),
		zap.Int("nodes", len(nodes)),
		zap.Int("groups", len(groups)))

	out := make([]models.LogicNode, len(groups))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryWorkers)

	for gi, members := range groups {
		g.Go(func() error {
			headline, description, err := t.summarizeGroup(gctx, members, summaryType)
			if err != nil {
				return err
			}

			caseSet := map[int]bool{}
			for _, m := range members {
				if len(m.CaseIDs) > 0 {
					for _, id := range m.CaseIDs {
						caseSet[id] = true
					}
				} else {
					caseSet[m.CaseID] = true
				}
			}
			caseIDs := make([]int, 0, len(caseSet))
			for id := range caseSet {
				caseIDs = append(caseIDs, id)
			}
			sort.Ints(caseIDs)

			mu.Lock()
			ord := *ordinal
			*ordinal++
			mu.Unlock()

			out[gi] = models.LogicNode{
				ID:       models.NewNodeID("__summary__", fmt.Sprintf("depth%d", depth), summaryType, ord),
				Text:     description,
				Type:     summaryType,
				Headline: headline,
				Depth:    depth,
				CaseIDs:  caseIDs,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Transform) summarizeGroup(ctx context.Context, members []models.LogicNode, summaryType models.NodeType) (string, string, error) {
	nodeType := "strategy"
	if summaryType == models.NodeGoalSum {
		nodeType = "goal"
	}

	prompt := fmt.Sprintf(summaryPrompt, nodeType, stringifyGroup(members, nodeType))
	raw, _, err := t.llm.ChatJSON(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, false)
	if err != nil {
		return "", "", err
	}

	var parsed struct {
		Headline    string `json:"headline"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", "", fmt.Errorf("parsing summary: %w", err)
	}
	if parsed.Headline == "" || parsed.Description == "" {
		return "", "", fmt.Errorf("summary reply missing headline or description")
	}
	return parsed.Headline, parsed.Description, nil
}

// stringifyGroup renders the members for the summary prompt. Base nodes carry
// their reference id and counterpart; summary nodes from a lower level are
// rendered by headline.
func stringifyGroup(members []models.LogicNode, nodeType string) string {
	var sb strings.Builder
	for _, m := range members {
		switch {
		case m.Headline != "":
			fmt.Fprintf(&sb, "-----\nHeadline: %s\nContent: %s\n", m.Headline, m.Text)
		case nodeType == "strategy":
			fmt.Fprintf(&sb, "-----\nReference ID: [%s]\n%s (serves for: %s)\n", m.RefID(), m.Text, m.PairText)
		default:
			fmt.Fprintf(&sb, "-----\nReference ID: [%s]\n%s (achieved by: %s)\n", m.RefID(), m.Text, m.PairText)
		}
	}
	return sb.String()
}

// observation carries the node index through the clustering library
type observation struct {
	idx    int
	coords clusters.Coordinates
}

func (o observation) Coordinates() clusters.Coordinates { return o.coords }
func (o observation) Distance(p clusters.Coordinates) float64 {
	return o.coords.Distance(p)
}

// partition runs k-means over the vectors with a corpus-sized k
func partition(nodes []models.LogicNode, vectors [][]float64) ([][]models.LogicNode, error) {
	k := len(nodes) / nodesPerGroup
	if k < 2 {
		k = 2
	}
	if k > maxClusters {
		k = maxClusters
	}

	obs := make(clusters.Observations, len(nodes))
	for i, v := range vectors {
		obs[i] = observation{idx: i, coords: clusters.Coordinates(v)}
	}

	km := kmeans.New()
	partitioned, err := km.Partition(obs, k)
	if err != nil {
		return nil, fmt.Errorf("k-means failed: %w", err)
	}

	var groups [][]models.LogicNode
	for _, c := range partitioned {
		var members []models.LogicNode
		for _, o := range c.Observations {
			members = append(members, nodes[o.(observation).idx])
		}
		if len(members) > 0 {
			groups = append(groups, members)
		}
	}
	return groups, nil
}
