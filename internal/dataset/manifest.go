// ABOUTME: Manifest types for the case-study dataset plus Commons URL helpers
// ABOUTME: The manifest lists items with their Commons image pages and thumbnails
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ManifestItem is one case study in the dataset manifest
type ManifestItem struct {
	ItemName string          `json:"item_name"`
	ItemID   string          `json:"item_id"`
	Images   []ManifestImage `json:"images"`
}

// ManifestImage points at one Commons-hosted image
type ManifestImage struct {
	PageURL   string `json:"page_url"`
	ImageID   string `json:"image_id"`
	Thumbnail string `json:"thumbnail"`
}

// LoadManifest reads and validates the manifest JSON
func LoadManifest(path string) ([]ManifestItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var items []ManifestItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("manifest must be a JSON list of items: %w", err)
	}
	return items, nil
}

// ThumbnailToFullURL converts a Commons thumbnail URL to the full-size image
// URL. Returns "" when the URL is not a recognizable Commons thumbnail.
//
//	.../thumb/a/a1/File.jpg/640px-File.jpg -> .../a/a1/File.jpg
func ThumbnailToFullURL(thumbnail string) string {
	if !strings.Contains(thumbnail, "/thumb/") || !strings.Contains(thumbnail, "upload.wikimedia.org") {
		return ""
	}
	base, rest, ok := strings.Cut(thumbnail, "/thumb/")
	if !ok {
		return ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 4 {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/%s", base, parts[0], parts[1], parts[2])
}

var unsafeDirChars = regexp.MustCompile(`[/\\:*?"<>|]`)

// SanitizeDirName makes a safe directory name out of an item name
func SanitizeDirName(name string) string {
	cleaned := unsafeDirChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if cleaned == "" {
		return "unnamed"
	}
	return cleaned
}
