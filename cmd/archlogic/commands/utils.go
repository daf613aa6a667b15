// ABOUTME: Shared helpers for CLI commands
// ABOUTME: Logger setup, config loading and the retriever/chatbot wiring used by chat and serve
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danruili/archlogic/internal/agent"
	"github.com/danruili/archlogic/internal/config"
	"github.com/danruili/archlogic/internal/imgindex"
	"github.com/danruili/archlogic/internal/index"
	"github.com/danruili/archlogic/internal/llm"
	"github.com/danruili/archlogic/internal/retrieval"
)

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return string(runes[:maxLen-3]) + "..."
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// newLogger builds a console logger honoring --verbose and --quiet
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	switch {
	case verbose:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case quiet:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

// loadConfig reads .env then the environment
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load()
}

// newBuilder wires the Qdrant store and the OpenAI embedder into an index
// builder. The summarizer is left out; retrieval never triggers a cluster pass.
func newBuilder(cfg *config.Config, client *llm.Client, logger *zap.Logger) *index.Builder {
	store := index.NewQdrant(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.Collection)
	return index.NewBuilder(cfg.ExtractionDir(), cfg.ReferenceDir(), store, client, nil, logger)
}

// newRetriever wires the text index, optional image index and case map. The
// image index is skipped when absent or when no Replicate token is configured.
func newRetriever(cfg *config.Config, client *llm.Client, logger *zap.Logger) (*retrieval.Retriever, error) {
	caseMap, err := index.LoadCaseIDMap(cfg.ReferenceDir())
	if err != nil {
		return nil, fmt.Errorf("loading case map (run `archlogic index build` first): %w", err)
	}

	var imageIndex retrieval.ImageIndex
	if cfg.ReplicateToken != "" {
		rep, err := imgindex.NewReplicate(cfg.ReplicateToken, cfg.ReplicateModel, cfg.MaxRetries, cfg.RetryDelay)
		if err != nil {
			return nil, err
		}
		ix := imgindex.New(cfg.ImgIndexDir(), cfg.ReplicateModel, rep, cfg.ImageWorkers, logger)
		if ix.Exists() {
			imageIndex = ix
		} else {
			logger.Info("image index not built, retrieval runs text-only")
		}
	}

	return retrieval.NewRetriever(newBuilder(cfg, client, logger), imageIndex, caseMap, cfg.TopK, logger), nil
}

// newChatbot builds the full agent stack: LLM client, retriever, chatbot
func newChatbot(cfg *config.Config, logger *zap.Logger) (*agent.Chatbot, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	retriever, err := newRetriever(cfg, client, logger)
	if err != nil {
		return nil, err
	}
	return agent.NewChatbot(client, retriever, logger), nil
}
