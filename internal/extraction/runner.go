// ABOUTME: Walks raw project folders and runs design-logic extraction per project
// ABOUTME: Images and text assets are processed in parallel and merged into one document
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danruili/archlogic/internal/models"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true,
}

// MetadataSink receives project metadata as extraction discovers it
type MetadataSink interface {
	UpsertProject(ctx context.Context, name string, meta models.ProjectMetadata, itemCount int) error
}

// Runner drives extraction over project folders
type Runner struct {
	inquiry *Inquiry
	sink    MetadataSink // optional
	logger  *zap.Logger
	workers int
}

// NewRunner creates a runner. sink may be nil when no project store is wired.
func NewRunner(client LLM, sink MetadataSink, maxGleaning, workers int, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		inquiry: NewInquiry(client, maxGleaning),
		sink:    sink,
		logger:  logger,
		workers: workers,
	}
}

// ResolvePaths accepts the dataset root, its raw/ folder, or a bare
// project-folder root, and returns (root, projectRoot)
func ResolvePaths(path string) (string, string) {
	if info, err := os.Stat(filepath.Join(path, "raw")); err == nil && info.IsDir() {
		return path, filepath.Join(path, "raw")
	}
	if strings.EqualFold(filepath.Base(path), "raw") {
		return filepath.Dir(path), path
	}
	return path, path
}

// ListProjects returns the project folder names under projectRoot, sorted
func ListProjects(projectRoot string) ([]string, error) {
	entries, err := os.ReadDir(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("reading project root: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ResolveProject finds one project folder by exact name, then by
// case-insensitive match
func ResolveProject(projectRoot, project string) (string, string, error) {
	direct := filepath.Join(projectRoot, project)
	if info, err := os.Stat(direct); err == nil && info.IsDir() {
		return direct, filepath.Base(direct), nil
	}

	names, err := ListProjects(projectRoot)
	if err != nil {
		return "", "", err
	}
	needle := strings.ToLower(strings.TrimSpace(project))
	for _, name := range names {
		if strings.ToLower(name) == needle {
			return filepath.Join(projectRoot, name), name, nil
		}
	}
	return "", "", fmt.Errorf("project not found under %s: %s", projectRoot, project)
}

// OutputPath is where one project's extraction document lands
func OutputPath(extractionDir, projectName string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(projectName)
	return filepath.Join(extractionDir, safe+".json")
}

// ExtractProject runs extraction for one project folder. An existing output
// document short-circuits the run unless forced.
func (r *Runner) ExtractProject(ctx context.Context, projectDir, projectName, outPath string, force bool) ([]models.ExtractionItem, error) {
	if !force {
		if data, err := os.ReadFile(outPath); err == nil {
			var existing []models.ExtractionItem
			if err := json.Unmarshal(data, &existing); err == nil {
				r.logger.Info("extraction exists, skipping", zap.String("project", projectName))
				return existing, nil
			}
		}
	}

	imageFiles, textFiles, err := listAssets(projectDir)
	if err != nil {
		return nil, err
	}

	var refText strings.Builder
	for _, path := range textFiles {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		refText.Write(content)
		refText.WriteString("\n")
	}

	var items []models.ExtractionItem
	descriptionPath := filepath.Join(projectDir, "description.txt")
	if content, err := os.ReadFile(descriptionPath); err == nil {
		items = append(items, models.ExtractionItem{
			RawText:   string(content),
			AssetName: "description.txt",
			Source:    projectName,
		})
	}

	r.logger.Info("extracting project",
		zap.String("project", projectName),
		zap.Int("images", len(imageFiles)),
		zap.Int("texts", len(textFiles)))

	// one result slot per asset keeps the output order deterministic
	results := make([][]models.ExtractionItem, len(imageFiles)+len(textFiles))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, path := range imageFiles {
		g.Go(func() error {
			extracted, err := r.inquiry.ExtractImage(gctx, path, refText.String())
			if err != nil {
				return fmt.Errorf("image %s: %w", filepath.Base(path), err)
			}
			name := filepath.Base(path)
			for j := range extracted {
				extracted[j].AssetName = name
			}
			mu.Lock()
			results[i] = extracted
			mu.Unlock()
			return nil
		})
	}
	for i, path := range textFiles {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			extracted, err := r.inquiry.ExtractText(gctx, string(content))
			if err != nil {
				return fmt.Errorf("text %s: %w", filepath.Base(path), err)
			}
			name := filepath.Base(path)
			for j := range extracted {
				extracted[j].AssetName = name
			}
			mu.Lock()
			results[len(imageFiles)+i] = extracted
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, extracted := range results {
		items = append(items, extracted...)
	}

	if r.sink != nil {
		for _, item := range items {
			if item.Metadata != nil {
				if err := r.sink.UpsertProject(ctx, projectName, *item.Metadata, len(items)); err != nil {
					r.logger.Warn("project store update failed", zap.String("project", projectName), zap.Error(err))
				}
				break
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, fmt.Errorf("creating extraction dir: %w", err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return nil, fmt.Errorf("writing extraction document: %w", err)
	}
	return items, nil
}

// RunStats summarizes a dataset-wide extraction run
type RunStats struct {
	Projects int
	Failed   int
}

// ExtractAll runs extraction for every project folder. A failing project is
// logged and skipped so one bad asset does not sink the batch.
func (r *Runner) ExtractAll(ctx context.Context, projectRoot, extractionDir string, limit int, force bool) (RunStats, error) {
	var stats RunStats

	names, err := ListProjects(projectRoot)
	if err != nil {
		return stats, err
	}
	if limit > 0 && limit < len(names) {
		names = names[:limit]
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		projectDir := filepath.Join(projectRoot, name)
		outPath := OutputPath(extractionDir, name)
		if _, err := r.ExtractProject(ctx, projectDir, name, outPath, force); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			r.logger.Warn("project extraction failed", zap.String("project", name), zap.Error(err))
			stats.Failed++
			continue
		}
		stats.Projects++
	}
	return stats, nil
}

// listAssets returns the sorted image and text files directly under dir.
// link.txt files are navigation artifacts, not content.
func listAssets(dir string) (images, texts []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading project dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case imageExtensions[ext]:
			images = append(images, filepath.Join(dir, name))
		case textExtensions[ext] && !strings.Contains(name, "link.txt"):
			texts = append(texts, filepath.Join(dir, name))
		}
	}
	sort.Strings(images)
	sort.Strings(texts)
	return images, texts, nil
}
