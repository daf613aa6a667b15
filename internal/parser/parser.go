// ABOUTME: Parser turns extraction documents into indexable logic nodes
// ABOUTME: Assigns corpus-wide asset ids in first-seen order and deterministic node ids
package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danruili/archlogic/internal/models"
)

// raw_text chunking bounds
const (
	rawChunkSize = 280
	rawStride    = 200
	rawMinTail   = 80
)

// Parser converts extraction items into logic nodes. Asset ids are assigned
// across every document parsed by the same Parser, keyed by
// "case|||asset" in first-seen order, so one Parser must be used per corpus.
type Parser struct {
	assetIDs  map[string]int
	assetKeys []string
}

// NewParser creates a parser with an empty asset-id map
func NewParser() *Parser {
	return &Parser{assetIDs: make(map[string]int)}
}

// ParseDocument converts one project's extraction items into logic nodes.
// A strategy/goal item yields a strategy, a goal and a combined pair node;
// description fields split on blank lines; archseek maps explode one node per
// aspect sentence; raw text is chunked with overlap.
func (p *Parser) ParseDocument(caseName string, caseID int, items []models.ExtractionItem) ([]models.LogicNode, error) {
	if strings.TrimSpace(caseName) == "" {
		return nil, fmt.Errorf("case name is empty")
	}

	var nodes []models.LogicNode
	// ordinal counters per node type, so ids stay stable per document
	ordinals := make(map[models.NodeType]int)

	next := func(typ models.NodeType) int {
		n := ordinals[typ]
		ordinals[typ]++
		return n
	}

	for i, item := range items {
		if item.IsEmpty() {
			continue
		}

		assetName := item.AssetName
		if assetName == "" {
			assetName = "unknown_asset"
		}
		assetID := p.assetID(caseName, assetName)

		base := models.LogicNode{
			CaseName:  caseName,
			CaseID:    caseID,
			AssetName: assetName,
			AssetID:   assetID,
		}

		switch {
		case item.Strategy != "" || item.Goal != "":
			if item.Strategy == "" || item.Goal == "" {
				return nil, fmt.Errorf("item %d of %s: strategy and goal must both be set", i, caseName)
			}
			round := item.Round
			if round == 0 {
				round = 1
			}
			nodes = append(nodes, logicTriple(base, item.Strategy, item.Goal, round, next)...)

		case item.ImageDescription != "":
			nodes = append(nodes, paragraphNodes(base, item.ImageDescription, models.NodeImageDesc, next)...)

		case item.AugmentedImageDescription != "":
			nodes = append(nodes, paragraphNodes(base, item.AugmentedImageDescription, models.NodeAugmentedDesc, next)...)

		case len(item.Archseek) > 0:
			nodes = append(nodes, archseekNodes(base, item.Archseek, next)...)

		case item.RawText != "":
			nodes = append(nodes, rawTextNodes(base, item.RawText, next)...)
		}
	}

	return nodes, nil
}

// AssetIDMap returns the reverse map asset id -> "case|||asset",
// covering every document parsed so far
func (p *Parser) AssetIDMap() map[int]string {
	out := make(map[int]string, len(p.assetKeys))
	for _, key := range p.assetKeys {
		out[p.assetIDs[key]] = key
	}
	return out
}

func (p *Parser) assetID(caseName, assetName string) int {
	key := caseName + "|||" + assetName
	if id, ok := p.assetIDs[key]; ok {
		return id
	}
	id := len(p.assetIDs)
	p.assetIDs[key] = id
	p.assetKeys = append(p.assetKeys, key)
	return id
}

func logicTriple(base models.LogicNode, strategy, goal string, round int, next func(models.NodeType) int) []models.LogicNode {
	s := base
	s.Type = models.NodeStrategy
	s.Text = strategy
	s.Round = round
	s.PairText = goal
	s.ID = models.NewNodeID(base.CaseName, base.AssetName, s.Type, next(s.Type))

	g := base
	g.Type = models.NodeGoal
	g.Text = goal
	g.Round = round
	g.PairText = strategy
	g.ID = models.NewNodeID(base.CaseName, base.AssetName, g.Type, next(g.Type))

	pair := base
	pair.Type = models.NodePair
	pair.Text = fmt.Sprintf("%s, so as to %s", strings.TrimRight(strategy, ",."), goal)
	pair.Round = round
	pair.ID = models.NewNodeID(base.CaseName, base.AssetName, pair.Type, next(pair.Type))

	return []models.LogicNode{s, g, pair}
}

func paragraphNodes(base models.LogicNode, text string, typ models.NodeType, next func(models.NodeType) int) []models.LogicNode {
	var out []models.LogicNode
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		n := base
		n.Type = typ
		n.Text = paragraph
		n.ID = models.NewNodeID(base.CaseName, base.AssetName, typ, next(typ))
		out = append(out, n)
	}
	return out
}

func archseekNodes(base models.LogicNode, aspects map[string][]string, next func(models.NodeType) int) []models.LogicNode {
	var out []models.LogicNode
	for _, subject := range sortedKeys(aspects) {
		for _, sentence := range aspects[subject] {
			if strings.TrimSpace(sentence) == "" {
				continue
			}
			n := base
			n.Type = models.NodeArchseek
			n.Text = sentence
			n.Subject = subject
			n.ID = models.NewNodeID(base.CaseName, base.AssetName, n.Type, next(n.Type))
			out = append(out, n)
		}
	}
	return out
}

func rawTextNodes(base models.LogicNode, text string, next func(models.NodeType) int) []models.LogicNode {
	runes := []rune(text)

	var chunks []string
	for i := 0; i < len(runes); i += rawStride {
		end := i + rawChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	// Merge a short tail into the previous chunk
	if len(chunks) > 1 && len([]rune(chunks[len(chunks)-1])) < rawMinTail {
		chunks[len(chunks)-2] += chunks[len(chunks)-1]
		chunks = chunks[:len(chunks)-1]
	}

	var out []models.LogicNode
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		n := base
		n.Type = models.NodeRawText
		n.Text = chunk
		n.ID = models.NewNodeID(base.CaseName, base.AssetName, n.Type, next(n.Type))
		out = append(out, n)
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
