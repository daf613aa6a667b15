// ABOUTME: Conversation turn model shared by the terminal and web front ends
// ABOUTME: Tracks the per-turn lifecycle the agent walks through while answering
package models

import "time"

// TurnStatus is the lifecycle state of one assistant turn
type TurnStatus string

const (
	TurnReceived   TurnStatus = "received"
	TurnRetrieving TurnStatus = "retrieving"
	TurnGrounding  TurnStatus = "grounding"
	TurnGenerating TurnStatus = "generating"
	TurnDone       TurnStatus = "done"
	TurnFailed     TurnStatus = "failed"
	TurnAborted    TurnStatus = "aborted"
)

// AbortedMarker is appended to an assistant turn cut short by cancellation
const AbortedMarker = "[aborted]"

// Turn is one message in a conversation
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnResult is what the agent returns for one completed cycle
type TurnResult struct {
	Content      string        `json:"content"`
	Status       TurnStatus    `json:"status"`
	ProgressLogs []string      `json:"progress_logs"`
	Elapsed      time.Duration `json:"-"`
}
