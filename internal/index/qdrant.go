// ABOUTME: Minimal Qdrant REST client: collection lifecycle, upsert, filtered search
// ABOUTME: Talks plain HTTP so the module carries no gRPC surface
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Point is one record upserted into the collection
type Point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is one search hit with its payload
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Qdrant is a REST client bound to one collection
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrant creates a client for the given collection
func NewQdrant(baseURL, apiKey, collection string) *Qdrant {
	return &Qdrant{
		baseURL:    baseURL,
		apiKey:     apiKey,
		collection: collection,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Collection returns the collection name this client is bound to
func (q *Qdrant) Collection() string {
	return q.collection
}

// EnsureCollection creates the collection with cosine distance. With force the
// existing collection is dropped first.
func (q *Qdrant) EnsureCollection(ctx context.Context, dim int, force bool) error {
	if force {
		// Ignore failures here: the collection may simply not exist yet
		_ = q.do(ctx, http.MethodDelete, fmt.Sprintf("/collections/%s", q.collection), nil, nil)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil)
}

// Count returns the number of points in the collection, zero when the
// collection does not exist
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", q.collection),
		map[string]any{"exact": true}, &out)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return out.Result.Count, nil
}

// Dimension returns the collection's configured vector size
func (q *Qdrant) Dimension(ctx context.Context) (int, error) {
	var out struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", q.collection), nil, &out); err != nil {
		return 0, err
	}
	return out.Result.Config.Params.Vectors.Size, nil
}

// Upsert writes points into the collection, overwriting by id
func (q *Qdrant) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", q.collection), body, nil)
}

// Search runs a dense search, optionally filtered to the given payload types
func (q *Qdrant) Search(ctx context.Context, vector []float64, topK int, types []string) ([]ScoredPoint, error) {
	dim, err := q.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim != len(vector) {
		return nil, fmt.Errorf("query dimension %d does not match collection dimension %d", len(vector), dim)
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if len(types) > 0 {
		body["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "type", "match": map[string]any{"any": types}},
			},
		}
	}

	var out struct {
		Result []ScoredPoint `json:"result"`
	}
	err = q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collection), body, &out)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// statusError carries the HTTP status of a failed Qdrant call
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant returned status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func (q *Qdrant) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{status: resp.StatusCode, body: string(bytes.TrimSpace(data))}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
