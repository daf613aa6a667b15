// ABOUTME: Replicate HTTP client for CLIP-style image/text embeddings
// ABOUTME: Uses sync predictions (Prefer: wait) with bounded retries
package imgindex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danruili/archlogic/internal/util"
)

const replicateAPI = "https://api.replicate.com/v1/predictions"

// Replicate is a minimal client for one embedding model version
type Replicate struct {
	token      string
	version    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewReplicate creates a client. version is the pinned "owner/model:hash" id.
func NewReplicate(token, version string, maxRetries int, retryDelay time.Duration) (*Replicate, error) {
	if token == "" {
		return nil, fmt.Errorf("replicate token is required")
	}
	return &Replicate{
		token:      token,
		version:    version,
		client:     &http.Client{Timeout: 120 * time.Second},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}, nil
}

// EmbedImage embeds a local image file
func (r *Replicate) EmbedImage(ctx context.Context, path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	mime := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		mime = "image/png"
	}
	uri := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))

	return r.predict(ctx, map[string]any{"image": uri})
}

// EmbedText embeds a text query into the same space as the images
func (r *Replicate) EmbedText(ctx context.Context, text string) ([]float64, error) {
	return r.predict(ctx, map[string]any{"text": text})
}

func (r *Replicate) predict(ctx context.Context, input map[string]any) ([]float64, error) {
	modelVersion := r.version
	if i := strings.LastIndex(modelVersion, ":"); i >= 0 {
		modelVersion = modelVersion[i+1:]
	}

	body, err := json.Marshal(map[string]any{
		"version": modelVersion,
		"input":   input,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling prediction request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(util.CalculateBackoff(r.retryDelay, attempt)):
			}
		}

		vector, err := r.once(ctx, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		return vector, nil
	}
	return nil, fmt.Errorf("prediction failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *Replicate) once(ctx context.Context, body []byte) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")
	// Hold the connection until the prediction resolves instead of polling
	req.Header.Set("Prefer", "wait")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("replicate returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var out struct {
		Status string `json:"status"`
		Error  string `json:"error"`
		Output struct {
			Embedding []float64 `json:"embedding"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding prediction: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("prediction error: %s", out.Error)
	}
	if out.Status != "succeeded" {
		return nil, fmt.Errorf("prediction ended with status %q", out.Status)
	}
	if len(out.Output.Embedding) == 0 {
		return nil, fmt.Errorf("prediction returned no embedding")
	}
	return out.Output.Embedding, nil
}

// endpoint is overridable in tests
var testEndpoint string

func (r *Replicate) endpoint() string {
	if testEndpoint != "" {
		return testEndpoint
	}
	return replicateAPI
}
