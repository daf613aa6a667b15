// ABOUTME: Flat-file image-embedding index: embeddings.bin + records.json + meta.json
// ABOUTME: Builds atomically via a staging directory so failures never corrupt the index
package imgindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	embeddingsFile = "embeddings.bin"
	recordsFile    = "records.json"
	metaFile       = "meta.json"
	cacheFile      = "embedding_cache.json"
)

// Embedder produces image and text embeddings in a shared space
type Embedder interface {
	EmbedImage(ctx context.Context, path string) ([]float64, error)
	EmbedText(ctx context.Context, text string) ([]float64, error)
}

// ImageRecord describes one indexed image, aligned row-by-row with embeddings.bin
type ImageRecord struct {
	AssetID   int    `json:"asset_id"`
	CaseName  string `json:"case_name"`
	ImageName string `json:"image_name"`
	ImagePath string `json:"image_path"`
}

// Meta describes the stored index
type Meta struct {
	Dimension int    `json:"dimension"`
	Count     int    `json:"count"`
	Model     string `json:"model"`
}

// Result is one text-to-image query hit
type Result struct {
	Record ImageRecord `json:"record"`
	Score  float64     `json:"score"`
}

// Index builds and queries the image-embedding index under one directory
type Index struct {
	dir      string
	model    string
	embedder Embedder
	workers  int
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string][]float64
}

// New creates an image index handle rooted at dir
func New(dir, model string, embedder Embedder, workers int, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Index{dir: dir, model: model, embedder: embedder, workers: workers, logger: logger}
}

// Exists reports whether a complete index is present
func (ix *Index) Exists() bool {
	_, err := os.Stat(filepath.Join(ix.dir, metaFile))
	return err == nil
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// Build embeds every image asset from the asset map and writes the index.
// assetMap is asset id -> "case|||file" as written by the text index build;
// rawDir holds the per-project folders. Images that fail to embed are logged
// and skipped. The three files land atomically: everything is staged in a
// temp directory and renamed into place only on success.
func (ix *Index) Build(ctx context.Context, assetMap map[int]string, rawDir string, force bool) (Meta, error) {
	if ix.Exists() && !force {
		return Meta{}, fmt.Errorf("image index already exists at %s; rerun with --force to rebuild", ix.dir)
	}

	type job struct {
		record ImageRecord
	}

	var jobs []job
	ids := make([]int, 0, len(assetMap))
	for id := range assetMap {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		caseName, imageName, ok := strings.Cut(assetMap[id], "|||")
		if !ok {
			continue
		}
		if !imageExts[strings.ToLower(filepath.Ext(imageName))] {
			continue
		}
		path := filepath.Join(rawDir, caseName, imageName)
		if _, err := os.Stat(path); err != nil {
			ix.logger.Warn("image asset missing on disk", zap.String("path", path))
			continue
		}
		jobs = append(jobs, job{record: ImageRecord{
			AssetID:   id,
			CaseName:  caseName,
			ImageName: imageName,
			ImagePath: path,
		}})
	}
	if len(jobs) == 0 {
		return Meta{}, fmt.Errorf("no image assets found in the asset map")
	}

	vectors := make([][]float64, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, j := range jobs {
		g.Go(func() error {
			vec, err := ix.embedder.EmbedImage(gctx, j.record.ImagePath)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				ix.logger.Warn("skipping image that failed to embed",
					zap.String("path", j.record.ImagePath), zap.Error(err))
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Meta{}, err
	}

	var records []ImageRecord
	var rows [][]float64
	for i, j := range jobs {
		if vectors[i] == nil {
			continue
		}
		records = append(records, j.record)
		rows = append(rows, vectors[i])
	}
	if len(rows) == 0 {
		return Meta{}, fmt.Errorf("every image failed to embed")
	}

	meta := Meta{Dimension: len(rows[0]), Count: len(rows), Model: ix.model}
	if err := ix.writeAtomically(rows, records, meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// QueryText embeds the text, scores every indexed image by cosine similarity
// and returns the best hit per asset id, top-k. Query embeddings are cached
// on disk keyed by the text.
func (ix *Index) QueryText(ctx context.Context, text string, topK int) ([]Result, error) {
	rows, records, meta, err := ix.load()
	if err != nil {
		return nil, err
	}

	query, err := ix.queryEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(query) != meta.Dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), meta.Dimension)
	}

	scored := make([]Result, len(records))
	for i := range records {
		scored[i] = Result{Record: records[i], Score: cosineSimilarity(query, rows[i])}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	seen := make(map[int]bool)
	var out []Result
	for _, r := range scored {
		if seen[r.Record.AssetID] {
			continue
		}
		seen[r.Record.AssetID] = true
		out = append(out, r)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// Info reads the stored meta.json
func (ix *Index) Info() (Meta, error) {
	data, err := os.ReadFile(filepath.Join(ix.dir, metaFile))
	if err != nil {
		return Meta{}, fmt.Errorf("reading index meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parsing index meta: %w", err)
	}
	return meta, nil
}

func (ix *Index) queryEmbedding(ctx context.Context, text string) ([]float64, error) {
	ix.mu.Lock()
	if ix.cache == nil {
		ix.cache = map[string][]float64{}
		if data, err := os.ReadFile(filepath.Join(ix.dir, cacheFile)); err == nil {
			_ = json.Unmarshal(data, &ix.cache)
		}
	}
	cached, ok := ix.cache[text]
	ix.mu.Unlock()
	if ok {
		return cached, nil
	}

	vec, err := ix.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ix.mu.Lock()
	ix.cache[text] = vec
	data, marshalErr := json.Marshal(ix.cache)
	ix.mu.Unlock()
	if marshalErr == nil {
		// Cache persistence is best effort
		_ = os.WriteFile(filepath.Join(ix.dir, cacheFile), data, 0644)
	}
	return vec, nil
}

func (ix *Index) load() ([][]float64, []ImageRecord, Meta, error) {
	meta, err := ix.Info()
	if err != nil {
		return nil, nil, Meta{}, err
	}

	data, err := os.ReadFile(filepath.Join(ix.dir, recordsFile))
	if err != nil {
		return nil, nil, Meta{}, fmt.Errorf("reading records: %w", err)
	}
	var records []ImageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, Meta{}, fmt.Errorf("parsing records: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(ix.dir, embeddingsFile))
	if err != nil {
		return nil, nil, Meta{}, fmt.Errorf("reading embeddings: %w", err)
	}
	if len(raw) != meta.Count*meta.Dimension*4 {
		return nil, nil, Meta{}, fmt.Errorf("embeddings file is %d bytes, expected %d", len(raw), meta.Count*meta.Dimension*4)
	}
	if len(records) != meta.Count {
		return nil, nil, Meta{}, fmt.Errorf("records count %d does not match meta count %d", len(records), meta.Count)
	}

	rows := make([][]float64, meta.Count)
	for i := 0; i < meta.Count; i++ {
		row := make([]float64, meta.Dimension)
		for j := 0; j < meta.Dimension; j++ {
			bits := binary.LittleEndian.Uint32(raw[(i*meta.Dimension+j)*4:])
			row[j] = float64(math.Float32frombits(bits))
		}
		rows[i] = row
	}
	return rows, records, meta, nil
}

func (ix *Index) writeAtomically(rows [][]float64, records []ImageRecord, meta Meta) error {
	parent := filepath.Dir(ix.dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("creating index parent dir: %w", err)
	}

	staging, err := os.MkdirTemp(parent, ".img_index-*")
	if err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	buf := make([]byte, len(rows)*meta.Dimension*4)
	for i, row := range rows {
		for j, v := range row {
			binary.LittleEndian.PutUint32(buf[(i*meta.Dimension+j)*4:], math.Float32bits(float32(v)))
		}
	}
	if err := os.WriteFile(filepath.Join(staging, embeddingsFile), buf, 0644); err != nil {
		return fmt.Errorf("writing embeddings: %w", err)
	}

	recData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, recordsFile), recData, 0644); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, metaFile), metaData, 0644); err != nil {
		return fmt.Errorf("writing meta: %w", err)
	}

	// Swap the staged index into place; the old index survives any failure above
	if err := os.RemoveAll(ix.dir); err != nil {
		return fmt.Errorf("removing old index: %w", err)
	}
	if err := os.Rename(staging, ix.dir); err != nil {
		return fmt.Errorf("activating new index: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
