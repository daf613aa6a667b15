// ABOUTME: LogicNode is the unit of retrieval: one design-logic statement tied to a case asset
// ABOUTME: Node ids are deterministic SHA1 UUIDs so rebuilds upsert instead of duplicating
package models

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeType classifies what kind of design-logic statement a node carries
type NodeType string

const (
	NodeStrategy      NodeType = "strategy"
	NodeGoal          NodeType = "goal"
	NodePair          NodeType = "pair"
	NodeImageDesc     NodeType = "image_description"
	NodeAugmentedDesc NodeType = "augmented_image_description"
	NodeArchseek      NodeType = "archseek"
	NodeRawText       NodeType = "raw_text"
	NodeStrategySum   NodeType = "strategy_summary"
	NodeGoalSum       NodeType = "goal_summary"
)

// LogicNode is one indexable statement about a case study
type LogicNode struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Type     NodeType `json:"type"`
	CaseName string   `json:"case_name"`
	CaseID   int      `json:"case_id"`
	AssetName string  `json:"asset_name,omitempty"`
	AssetID   int     `json:"asset_id"`
	Round     int     `json:"round,omitempty"`

	// Subject is the archseek aspect ("form", "material", ...) for archseek nodes
	Subject string `json:"subject,omitempty"`

	// PairText holds the counterpart statement for strategy/goal nodes
	// (a strategy node's goal and vice versa)
	PairText string `json:"pair_text,omitempty"`

	// Summary-node fields
	Headline string `json:"headline,omitempty"`
	Depth    int    `json:"depth,omitempty"`
	CaseIDs  []int  `json:"case_ids,omitempty"`
}

// RefID renders the bracketed reference id used in grounded answers
func (n LogicNode) RefID() string {
	return fmt.Sprintf("R%dA%d", n.CaseID, n.AssetID)
}

// nodeNamespace pins NewNodeID to a stable UUID namespace
var nodeNamespace = uuid.MustParse("8f1c9d1e-7a44-4c39-9a0e-5b2d6f3a1c70")

// NewNodeID derives a deterministic node id from the node's position in the corpus.
// The same case/asset/type/ordinal always maps to the same id, so index rebuilds
// overwrite records in place.
func NewNodeID(caseName, assetName string, typ NodeType, ordinal int) string {
	key := fmt.Sprintf("%s|||%s|||%s|||%d", caseName, assetName, typ, ordinal)
	return uuid.NewSHA1(nodeNamespace, []byte(key)).String()
}
