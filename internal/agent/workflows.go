// ABOUTME: Case-search and general-QA workflows dispatched by the router
// ABOUTME: General QA plans an outline, grounds each bulletpoint, then reorganizes
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danruili/archlogic/internal/llm"
	"github.com/danruili/archlogic/internal/models"
	"github.com/danruili/archlogic/internal/retrieval"
	"github.com/danruili/archlogic/internal/util"
)

const (
	workflowRetries    = 2
	workflowRetryDelay = 2 * time.Second
	summaryWorkers     = 4
)

// outline is the machine-readable answer plan the QA workflow iterates over
type outline struct {
	Answer []outlineSection `json:"answer"`
}

type outlineSection struct {
	Section      string   `json:"section"`
	Bulletpoints []string `json:"bulletpoint"`
}

func (o outline) valid() bool {
	if len(o.Answer) == 0 {
		return false
	}
	for _, s := range o.Answer {
		if s.Section == "" || len(s.Bulletpoints) == 0 {
			return false
		}
	}
	return true
}

func (o outline) markdown() string {
	var b strings.Builder
	for _, s := range o.Answer {
		fmt.Fprintf(&b, "## %s\n", s.Section)
		for _, bullet := range s.Bulletpoints {
			b.WriteString(bullet)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// caseSearch retrieves grounding context and synthesizes a natural-language
// answer that keeps the bracketed reference ids
func (b *Chatbot) caseSearch(ctx context.Context, query string, progress *Progress) (string, error) {
	progress.SetStatus(models.TurnRetrieving)
	progress.Log("Retrieving cases for: %s", query)
	rendered, hits, err := b.retriever.QARetrieve(ctx, query, 0, retrieveDepth)
	if err != nil {
		return "", fmt.Errorf("retrieving cases: %w", err)
	}
	progress.SetStatus(models.TurnGenerating)
	progress.Log("Retrieved %d results, synthesizing...", len(hits))

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: PromptCaseSearch},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Query: %s\nAPI Response: ```text\n%s```", query, rendered)},
	}

	return b.chatForBlock(ctx, msgs, responseBlockRe)
}

// generalQA answers a design question in four stages: draft an outline,
// refine it with cluster summaries, ground every bulletpoint in retrieved
// cases, and reorganize the composite answer.
func (b *Chatbot) generalQA(ctx context.Context, question string, progress *Progress) (string, error) {
	progress.SetStatus(models.TurnRetrieving)
	progress.Log("Planning the answer for: %s", question)
	plan, err := b.planOutline(ctx, question)
	if err != nil {
		return "", fmt.Errorf("planning outline: %w", err)
	}

	progress.SetStatus(models.TurnGrounding)
	progress.Log("Grounding %d sections in retrieved cases...", len(plan.Answer))
	if err := b.groundOutline(ctx, question, plan, progress); err != nil {
		return "", fmt.Errorf("grounding outline: %w", err)
	}

	progress.SetStatus(models.TurnGenerating)
	progress.Log("Reorganizing the final answer...")
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: PromptQAReorganizer},
		{Role: llm.RoleUser, Content: fmt.Sprintf("User question: %s\n\nDraft answer: %s", question, plan.markdown())},
	}
	final, err := b.client.Chat(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("reorganizing answer: %w", err)
	}
	return strings.TrimSpace(final), nil
}

// planOutline drafts a naive answer, reformats it into an outline, refines it
// with cluster summaries and reorganizes the result
func (b *Chatbot) planOutline(ctx context.Context, question string) (*outline, error) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: PromptQANaive},
		{Role: llm.RoleUser, Content: question},
	}
	naive, err := b.client.Chat(ctx, msgs)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs,
		llm.Message{Role: llm.RoleAssistant, Content: naive},
		llm.Message{Role: llm.RoleSystem, Content: PromptQAPlanReformat})

	plan, reply, err := b.chatOutline(ctx, msgs)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: reply})

	// Cluster summaries broaden the outline before per-bullet grounding
	summaries, err := b.retriever.Search(ctx, question, retrieval.ModeSummary, 5)
	if err == nil && len(summaries) > 0 {
		for i := range summaries {
			summaries[i].Type = "summary"
		}
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf(PromptQAPlanImprove, retrieval.StringifyHits(summaries)),
		})
		if refined, _, err := b.chatOutline(ctx, msgs); err == nil {
			plan = refined
		}
	}

	outlineJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, err
	}
	reorgMsgs := []llm.Message{{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf(PromptOutlineReorganizer, question, outlineJSON),
	}}
	if reorganized, _, err := b.chatOutline(ctx, reorgMsgs); err == nil {
		plan = reorganized
	}
	return plan, nil
}

// groundOutline replaces every bulletpoint with a reference-backed summary.
// Bulletpoints are processed in parallel; retrieval runs per bulletpoint.
func (b *Chatbot) groundOutline(ctx context.Context, question string, plan *outline, progress *Progress) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryWorkers)

	for si := range plan.Answer {
		section := &plan.Answer[si]
		for bi := range section.Bulletpoints {
			g.Go(func() error {
				bullet := section.Bulletpoints[bi]
				rendered, _, err := b.retriever.QARetrieve(gctx, bullet, 0, retrieveDepth)
				if err != nil {
					return err
				}
				grounded, err := b.summarizeBullet(gctx, question, bullet, rendered)
				if err != nil {
					return err
				}
				section.Bulletpoints[bi] = grounded
				progress.Log("Grounded: %s", section.Section)
				return nil
			})
		}
	}
	return g.Wait()
}

// summarizeBullet grounds one draft bulletpoint in the retrieved references
func (b *Chatbot) summarizeBullet(ctx context.Context, question, bullet, retrieved string) (string, error) {
	content := fmt.Sprintf("User question: %s\n\nDraft answer: %s\n\nRetrieved documents: %s",
		question, bullet, retrieved)
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: PromptQAUnitSummarizer},
		{Role: llm.RoleUser, Content: content},
	}

	var lastErr error
	for attempt := 0; attempt <= workflowRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(util.CalculateBackoff(b.retryDelay, attempt)):
			}
		}

		reply, err := b.client.Chat(ctx, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		var summary struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		block := lastBlock(jsonBlockRe, reply)
		if block == "" {
			lastErr = fmt.Errorf("summarizer reply has no json block")
			continue
		}
		if err := json.Unmarshal([]byte(block), &summary); err != nil || summary.Title == "" || summary.Content == "" {
			lastErr = fmt.Errorf("summarizer reply malformed")
			continue
		}
		return fmt.Sprintf("- **%s**: %s", summary.Title, summary.Content), nil
	}
	return "", fmt.Errorf("summarizing bulletpoint: %w", lastErr)
}

// chatOutline asks for a completion and parses its last json block as an outline
func (b *Chatbot) chatOutline(ctx context.Context, msgs []llm.Message) (*outline, string, error) {
	var lastErr error
	for attempt := 0; attempt <= workflowRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(util.CalculateBackoff(b.retryDelay, attempt)):
			}
		}

		reply, err := b.client.Chat(ctx, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			lastErr = err
			continue
		}

		block := lastBlock(jsonBlockRe, reply)
		if block == "" {
			lastErr = fmt.Errorf("reply has no json block")
			continue
		}
		var plan outline
		if err := json.Unmarshal([]byte(block), &plan); err != nil || !plan.valid() {
			lastErr = fmt.Errorf("reply is not a valid outline")
			continue
		}
		return &plan, reply, nil
	}
	return nil, "", fmt.Errorf("no valid outline after %d attempts: %w", workflowRetries+1, lastErr)
}

// chatForBlock retries a completion until the wanted fenced block appears
func (b *Chatbot) chatForBlock(ctx context.Context, msgs []llm.Message, re *regexp.Regexp) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= workflowRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(util.CalculateBackoff(b.retryDelay, attempt)):
			}
		}

		reply, err := b.client.Chat(ctx, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}
		if block := lastBlock(re, reply); block != "" {
			return block, nil
		}
		lastErr = fmt.Errorf("reply missing expected block")
	}
	return "", fmt.Errorf("no usable completion after %d attempts: %w", workflowRetries+1, lastErr)
}
