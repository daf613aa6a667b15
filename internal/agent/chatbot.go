// ABOUTME: Router-based conversation agent over the design-logic retriever
// ABOUTME: Each turn walks received, retrieving, grounding, generating, then done or failed
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danruili/archlogic/internal/llm"
	"github.com/danruili/archlogic/internal/models"
	"github.com/danruili/archlogic/internal/retrieval"
	"github.com/danruili/archlogic/internal/util"
)

// retrieveDepth is how many candidates each dense search contributes to fusion
const retrieveDepth = 100

// failedReply is shown when a turn errors out; details go to the log only
const failedReply = "I ran into a problem while answering that. Please try again."

// LLM is the chat surface the agent needs
type LLM interface {
	Chat(ctx context.Context, msgs []llm.Message) (string, error)
}

// Retriever is the slice of the retrieval layer the workflows use
type Retriever interface {
	QARetrieve(ctx context.Context, query string, topK, retrieveTopK int) (string, []retrieval.Hit, error)
	Search(ctx context.Context, query string, mode retrieval.Mode, topK int) ([]retrieval.Hit, error)
}

// Chatbot is a stateful conversation agent. One Cycle runs at a time; the
// mutex serializes concurrent callers.
type Chatbot struct {
	client     LLM
	retriever  Retriever
	logger     *zap.Logger
	retryDelay time.Duration

	mu      sync.Mutex
	history []llm.Message
}

// NewChatbot creates an agent with an empty conversation
func NewChatbot(client LLM, retriever Retriever, logger *zap.Logger) *Chatbot {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Chatbot{
		client:     client,
		retriever:  retriever,
		logger:     logger,
		retryDelay: workflowRetryDelay,
	}
	b.Reset(nil)
	return b
}

// Reset clears the conversation, optionally seeding it with prior turns
func (b *Chatbot) Reset(history []models.Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset(history)
}

func (b *Chatbot) reset(history []models.Turn) {
	b.history = []llm.Message{{Role: llm.RoleSystem, Content: PromptRouter}}
	for _, turn := range history {
		b.history = append(b.history, llm.Message{Role: turn.Role, Content: turn.Content})
	}
}

// Converse replays a prior history and answers one message under a single
// lock, so concurrent conversations sharing the chatbot cannot interleave
// each other's state between the replay and the turn.
func (b *Chatbot) Converse(ctx context.Context, history []models.Turn, userMessage string, progress *Progress) models.TurnResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset(history)
	return b.cycle(ctx, userMessage, progress)
}

// Cycle answers one user message. Cancellation aborts the turn and marks the
// assistant reply with the aborted marker; other failures produce an apology
// and keep the conversation usable.
func (b *Chatbot) Cycle(ctx context.Context, userMessage string, progress *Progress) models.TurnResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cycle(ctx, userMessage, progress)
}

func (b *Chatbot) cycle(ctx context.Context, userMessage string, progress *Progress) models.TurnResult {
	defer progress.Finish()

	start := time.Now()
	progress.SetStatus(models.TurnReceived)
	progress.Log("Message received")
	b.history = append(b.history, llm.Message{Role: llm.RoleUser, Content: userMessage})

	content, err := b.answer(ctx, progress)
	if err != nil {
		if ctx.Err() != nil {
			b.logger.Info("turn aborted", zap.String("message", userMessage))
			b.history = append(b.history, llm.Message{Role: llm.RoleAssistant, Content: models.AbortedMarker})
			progress.SetStatus(models.TurnAborted)
			return b.result(models.AbortedMarker, models.TurnAborted, progress, start)
		}
		b.logger.Error("turn failed", zap.String("message", userMessage), zap.Error(err))
		b.history = append(b.history, llm.Message{Role: llm.RoleAssistant, Content: failedReply})
		progress.SetStatus(models.TurnFailed)
		return b.result(failedReply, models.TurnFailed, progress, start)
	}

	progress.SetStatus(models.TurnDone)
	return b.result(content, models.TurnDone, progress, start)
}

func (b *Chatbot) result(content string, status models.TurnStatus, progress *Progress, start time.Time) models.TurnResult {
	return models.TurnResult{
		Content:      content,
		Status:       status,
		ProgressLogs: progress.Lines(),
		Elapsed:      time.Since(start),
	}
}

func (b *Chatbot) answer(ctx context.Context, progress *Progress) (string, error) {
	response, call, err := b.route(ctx)
	if err != nil {
		return "", err
	}
	if call == nil {
		return response, nil
	}

	b.logger.Info("dispatching workflow", zap.String("function", call.Function))
	var output string
	switch call.Function {
	case FuncSearch:
		var args SearchArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return "", fmt.Errorf("decoding search args: %w", err)
		}
		output, err = b.caseSearch(ctx, args.UserQuery, progress)
	case FuncGetAnswer:
		var args AnswerArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return "", fmt.Errorf("decoding get_answer args: %w", err)
		}
		output, err = b.generalQA(ctx, args.Question, progress)
	}
	if err != nil {
		return "", err
	}

	// Workflow output re-enters the conversation so followups can refer to it
	b.history = append(b.history, llm.Message{Role: llm.RoleUser, Content: output})
	return output, nil
}

// route asks the router model what to do with the latest message, retrying
// when the reply fits neither format
func (b *Chatbot) route(ctx context.Context) (string, *FunctionCall, error) {
	var lastErr error
	for attempt := 0; attempt <= workflowRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", nil, ctx.Err()
			case <-time.After(util.CalculateBackoff(b.retryDelay, attempt)):
			}
		}

		reply, err := b.client.Chat(ctx, b.history)
		if err != nil {
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		response, call, err := ParseRouterReply(reply)
		if err != nil {
			lastErr = err
			continue
		}
		b.history = append(b.history, llm.Message{Role: llm.RoleAssistant, Content: reply})
		return response, call, nil
	}
	return "", nil, fmt.Errorf("router produced no usable reply after %d attempts: %w", workflowRetries+1, lastErr)
}

// History returns a copy of the conversation so far
func (b *Chatbot) History() []models.Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	turns := make([]models.Turn, 0, len(b.history))
	for _, m := range b.history {
		turns = append(turns, models.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}
