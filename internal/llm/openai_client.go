// ABOUTME: OpenAI client for chat, vision and embeddings with retry logic
// ABOUTME: Parses fenced JSON blocks out of completions for the extraction pipeline
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/danruili/archlogic/internal/config"
	"github.com/danruili/archlogic/internal/util"
)

// Message is one chat message, optionally carrying local image attachments
type Message struct {
	Role       string
	Content    string
	ImagePaths []string
}

// Client wraps the OpenAI API client with retry logic and model selection
type Client struct {
	api            *openai.Client
	textModel      string
	visionModel    string
	embeddingModel openai.EmbeddingModel
	embeddingDim   int
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
}

// NewClient creates an OpenAI client from the pipeline configuration
func NewClient(cfg *config.Config) (*Client, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}

	return &Client{
		api:            openai.NewClient(cfg.OpenAIKey),
		textModel:      cfg.TextModel,
		visionModel:    cfg.VisionModel,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		embeddingDim:   cfg.EmbeddingDim,
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

// Chat runs a chat completion. The vision model is used whenever any message
// carries an image attachment, the text model otherwise.
func (c *Client) Chat(ctx context.Context, msgs []Message) (string, error) {
	req, err := c.buildRequest(msgs)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(util.CalculateBackoff(c.retryDelay, attempt)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(attemptCtx, req)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("chat completion failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// ChatJSON runs a chat completion and parses the last fenced JSON block of the
// reply. Parse failures count as retryable attempts, since models routinely
// produce malformed JSON on the first try. Returns the raw JSON and the full
// reply text.
func (c *Client) ChatJSON(ctx context.Context, msgs []Message, wantList bool) (json.RawMessage, string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(util.CalculateBackoff(c.retryDelay, attempt)):
			}
		}

		reply, err := c.Chat(ctx, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", err
			}
			lastErr = err
			continue
		}

		raw, err := ExtractJSONBlock(reply, wantList)
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		return raw, reply, nil
	}

	return nil, "", fmt.Errorf("no parseable JSON after %d attempts: %w", c.maxRetries+1, lastErr)
}

// EmbedTexts embeds a batch of texts at the configured dimension
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(util.CalculateBackoff(c.retryDelay, attempt)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateEmbeddings(attemptCtx, openai.EmbeddingRequestStrings{
			Input:      texts,
			Model:      c.embeddingModel,
			Dimensions: c.embeddingDim,
		})
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Data) != len(texts) {
			lastErr = fmt.Errorf("attempt %d: got %d embeddings for %d inputs", attempt+1, len(resp.Data), len(texts))
			continue
		}

		vectors := make([][]float64, len(resp.Data))
		for i, d := range resp.Data {
			v := make([]float64, len(d.Embedding))
			for j, f := range d.Embedding {
				v[j] = float64(f)
			}
			vectors[i] = v
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// EmbedText embeds a single text
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the configured embedding dimension
func (c *Client) Dimension() int {
	return c.embeddingDim
}

func (c *Client) buildRequest(msgs []Message) (openai.ChatCompletionRequest, error) {
	model := c.textModel
	messages := make([]openai.ChatCompletionMessage, 0, len(msgs))

	for _, m := range msgs {
		if len(m.ImagePaths) == 0 {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    m.Role,
				Content: m.Content,
			})
			continue
		}

		model = c.visionModel
		parts := []openai.ChatMessagePart{{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Content,
		}}
		for _, path := range m.ImagePaths {
			uri, err := encodeImage(path)
			if err != nil {
				return openai.ChatCompletionRequest{}, fmt.Errorf("encoding image %s: %w", path, err)
			}
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: uri},
			})
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:         m.Role,
			MultiContent: parts,
		})
	}

	return openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}, nil
}

var jsonBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSONBlock pulls the last fenced JSON block out of a model reply and
// validates it. When no fence is present the whole reply is tried as JSON.
// With wantList the block must be a JSON array.
func ExtractJSONBlock(reply string, wantList bool) (json.RawMessage, error) {
	candidate := strings.TrimSpace(reply)
	if matches := jsonBlockRe.FindAllStringSubmatch(reply, -1); len(matches) > 0 {
		candidate = strings.TrimSpace(matches[len(matches)-1][1])
	}

	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("reply contains no valid JSON")
	}
	if wantList && !strings.HasPrefix(candidate, "[") {
		return nil, fmt.Errorf("expected a JSON list, got %.20q", candidate)
	}
	return json.RawMessage(candidate), nil
}

// encodeImage reads an image file into a base64 data URI
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	mime := "image/jpeg"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mime = "image/png"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}
