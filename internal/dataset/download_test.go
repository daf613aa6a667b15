// ABOUTME: Tests for manifest parsing, Commons URL derivation, and the download flow
// ABOUTME: HTTP behavior is exercised against httptest stubs
package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestThumbnailToFullURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "standard thumbnail",
			in:   "https://upload.wikimedia.org/wikipedia/commons/thumb/a/a1/Villa.jpg/640px-Villa.jpg",
			want: "https://upload.wikimedia.org/wikipedia/commons/a/a1/Villa.jpg",
		},
		{
			name: "not a thumbnail",
			in:   "https://upload.wikimedia.org/wikipedia/commons/a/a1/Villa.jpg",
			want: "",
		},
		{
			name: "wrong host",
			in:   "https://example.com/thumb/a/a1/Villa.jpg/640px-Villa.jpg",
			want: "",
		},
		{
			name: "too few path parts",
			in:   "https://upload.wikimedia.org/wikipedia/commons/thumb/a/a1",
			want: "",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThumbnailToFullURL(tt.in); got != tt.want {
				t.Errorf("ThumbnailToFullURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeDirName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Villa Savoye", "Villa Savoye"},
		{"A/B\\C:D", "A_B_C_D"},
		{`He said "no"?`, "He said _no__"},
		{"   ", "unnamed"},
		{"", "unnamed"},
	}

	for _, tt := range tests {
		if got := SanitizeDirName(tt.in); got != tt.want {
			t.Errorf("SanitizeDirName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wikiarch.json")
	content := `[
		{"item_name": "Villa Savoye", "item_id": "Q1", "images": [
			{"page_url": "https://commons.wikimedia.org/wiki/File:Villa.jpg", "image_id": "img1",
			 "thumbnail": "https://upload.wikimedia.org/wikipedia/commons/thumb/a/a1/Villa.jpg/640px-Villa.jpg"}
		]}
	]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	items, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(items) != 1 || items[0].ItemName != "Villa Savoye" || len(items[0].Images) != 1 {
		t.Errorf("unexpected manifest: %+v", items)
	}
	if items[0].Images[0].ImageID != "img1" {
		t.Errorf("image id = %q", items[0].Images[0].ImageID)
	}
}

func TestLoadManifest_NotAList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"item_name": "x"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Error("expected error for non-list manifest")
	}
}

func TestExtFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://upload.wikimedia.org/a/a1/Villa.jpg", "jpg"},
		{"https://upload.wikimedia.org/a/a1/Plan.PNG", "png"},
		{"https://upload.wikimedia.org/a/a1/Img.webp?download", "webp"},
		{"https://upload.wikimedia.org/a/a1/Drawing.tiff", "jpg"},
		{"https://upload.wikimedia.org/a/a1/noext", "jpg"},
	}

	for _, tt := range tests {
		if got := extFromURL(tt.in); got != tt.want {
			t.Errorf("extFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScrapeImageURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("request carries no User-Agent")
		}
		w.Write([]byte(`<html><body><div id="mw-content-text"><div class="fullMedia"><p>
			<a href="//upload.wikimedia.org/wikipedia/commons/a/a1/Villa.jpg">Original file</a>
		</p></div></div></body></html>`))
	}))
	defer srv.Close()

	d := NewDownloader(nil)
	d.sleep = func(time.Duration) {}

	got, err := d.scrapeImageURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("scrapeImageURL failed: %v", err)
	}
	want := "https://upload.wikimedia.org/wikipedia/commons/a/a1/Villa.jpg"
	if got != want {
		t.Errorf("url = %q, want %q", got, want)
	}
}

func TestScrapeImageURL_NoLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>nothing here</p></body></html>`))
	}))
	defer srv.Close()

	d := NewDownloader(nil)
	d.sleep = func(time.Duration) {}

	if _, err := d.scrapeImageURL(context.Background(), srv.URL); err == nil {
		t.Error("expected error when the page has no fullMedia link")
	}
}

func TestRun_RejectsPolicyViolatingDelay(t *testing.T) {
	d := NewDownloader(nil)
	_, err := d.Run(context.Background(), "unused.json", t.TempDir(), Options{DelaySeconds: 0.2})
	if err == nil {
		t.Error("expected error for sub-second delay")
	}
}

func TestRun_SkipsExistingItems(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "wikiarch.json")
	if err := os.WriteFile(manifest, []byte(`[{"item_name": "Villa Savoye", "images": []}]`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	outDir := filepath.Join(dir, "raw")
	itemDir := filepath.Join(outDir, "Villa Savoye")
	if err := os.MkdirAll(itemDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(itemDir, "description.txt"), []byte("existing"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d := NewDownloader(nil)
	d.sleep = func(time.Duration) {}

	stats, err := d.Run(context.Background(), manifest, outDir, Options{DelaySeconds: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Skipped != 1 || stats.Items != 0 {
		t.Errorf("stats = %+v, want 1 skipped and 0 downloaded", stats)
	}
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "wikiarch.json")
	if err := os.WriteFile(manifest, []byte(`[{"item_name": "Villa Savoye", "images": []}]`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	outDir := filepath.Join(dir, "raw")
	d := NewDownloader(nil)
	d.sleep = func(time.Duration) {}

	stats, err := d.Run(context.Background(), manifest, outDir, Options{DelaySeconds: 1, DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Items != 1 {
		t.Errorf("Items = %d, want 1", stats.Items)
	}
	if _, err := os.Stat(filepath.Join(outDir, "Villa Savoye")); !os.IsNotExist(err) {
		t.Error("dry run created the item directory")
	}
}

func TestRun_DownloadsImagesAndDescription(t *testing.T) {
	imageBytes := []byte("not really a jpeg")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/w/api.php":
			w.Write([]byte(`{"query": {"pages": {"123": {"extract": "The Villa Savoye is a modernist villa."}}}}`))
		case r.URL.Path == "/image.jpg":
			w.Write(imageBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "wikiarch.json")
	manifestBody := `[{"item_name": "Villa Savoye", "images": [
		{"page_url": "` + srv.URL + `/page", "image_id": "img1", "thumbnail": "` + srv.URL + `/image.jpg"}
	]}]`
	if err := os.WriteFile(manifest, []byte(manifestBody), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d := NewDownloader(nil)
	d.sleep = func(time.Duration) {}
	d.wikipediaAPI = srv.URL + "/w/api.php"

	outDir := filepath.Join(dir, "raw")
	// ThumbnailsOnly so the stub thumbnail URL is used directly
	stats, err := d.Run(context.Background(), manifest, outDir, Options{DelaySeconds: 1, ThumbnailsOnly: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Items != 1 || stats.Images != 1 || stats.FailedImages != 0 {
		t.Errorf("stats = %+v", stats)
	}

	img, err := os.ReadFile(filepath.Join(outDir, "Villa Savoye", "img1.jpg"))
	if err != nil {
		t.Fatalf("image not written: %v", err)
	}
	if string(img) != string(imageBytes) {
		t.Error("image content mismatch")
	}

	desc, err := os.ReadFile(filepath.Join(outDir, "Villa Savoye", "description.txt"))
	if err != nil {
		t.Fatalf("description not written: %v", err)
	}
	if string(desc) != "The Villa Savoye is a modernist villa." {
		t.Errorf("description = %q", desc)
	}
}

func TestRun_ImageFailureDoesNotAbortItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/w/api.php" {
			w.Write([]byte(`{"query": {"pages": {"1": {"extract": "Text."}}}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "wikiarch.json")
	manifestBody := `[{"item_name": "Villa Savoye", "images": [
		{"page_url": "` + srv.URL + `/page", "image_id": "img1", "thumbnail": "` + srv.URL + `/missing.jpg"}
	]}]`
	if err := os.WriteFile(manifest, []byte(manifestBody), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d := NewDownloader(nil)
	d.sleep = func(time.Duration) {}
	d.wikipediaAPI = srv.URL + "/w/api.php"

	stats, err := d.Run(context.Background(), manifest, filepath.Join(dir, "raw"), Options{DelaySeconds: 1, ThumbnailsOnly: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.FailedImages != 1 || stats.Items != 1 {
		t.Errorf("stats = %+v, want failed image but completed item", stats)
	}
}
