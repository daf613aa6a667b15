// ABOUTME: Downloads case-study images and Wikipedia descriptions per the dataset manifest
// ABOUTME: Follows the Wikimedia robot policy: UA, gzip for HTML, 429 Retry-After, 5xx pause, >=1s delay
package dataset

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/danruili/archlogic/internal/util"
)

// Robot policy: https://wikitech.wikimedia.org/wiki/Robot_policy
const (
	userAgent       = "archlogic/1.0 (https://github.com/danruili/archlogic; research dataset)"
	pause5xx        = 15 * time.Minute
	MinDelaySeconds = 1.0
	scrapeRetries   = 4
)

// Options tune one download run
type Options struct {
	Limit          int  // 0 means all items
	Force          bool // re-download existing items
	DryRun         bool
	ThumbnailsOnly bool // download the thumbnail URL as-is
	ScrapeURLs     bool // always resolve via the Commons page, skip derivation
	Scale          bool
	MaxDim         int
	DelaySeconds   float64
}

// Downloader fetches dataset assets into per-item folders
type Downloader struct {
	client *http.Client
	logger *zap.Logger

	// sleep is swappable in tests so the policy delays don't run
	sleep func(time.Duration)

	wikipediaAPI string
}

// NewDownloader creates a downloader with policy-conformant defaults
func NewDownloader(logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
		sleep:        time.Sleep,
		wikipediaAPI: "https://en.wikipedia.org/w/api.php",
	}
}

// Stats summarizes one download run
type Stats struct {
	Items        int
	Skipped      int
	Images       int
	FailedImages int
}

// Run downloads every manifest item into outDir/<item>/. Items whose
// description.txt already exists are skipped unless forced. Per-image
// failures are logged and skipped; the run continues.
func (d *Downloader) Run(ctx context.Context, manifestPath, outDir string, opts Options) (Stats, error) {
	var stats Stats

	if opts.DelaySeconds < MinDelaySeconds {
		return stats, fmt.Errorf("delay must be at least %.1fs per Wikimedia robot policy, got %.1f", MinDelaySeconds, opts.DelaySeconds)
	}

	items, err := LoadManifest(manifestPath)
	if err != nil {
		return stats, err
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return stats, fmt.Errorf("creating output dir: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		itemDir := filepath.Join(outDir, SanitizeDirName(item.ItemName))
		descriptionFile := filepath.Join(itemDir, "description.txt")

		if !opts.Force {
			if _, err := os.Stat(descriptionFile); err == nil {
				stats.Skipped++
				continue
			}
		}

		if opts.DryRun {
			d.logger.Info("dry run", zap.String("item", item.ItemName))
			stats.Items++
			continue
		}

		if err := os.MkdirAll(itemDir, 0755); err != nil {
			return stats, fmt.Errorf("creating item dir: %w", err)
		}
		d.logger.Info("downloading item", zap.String("item", item.ItemName), zap.Int("images", len(item.Images)))

		for _, img := range item.Images {
			ok, err := d.downloadImage(ctx, img, itemDir, opts)
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				d.logger.Warn("skipping image",
					zap.String("item", item.ItemName),
					zap.String("image", img.ImageID),
					zap.Error(err))
				stats.FailedImages++
				continue
			}
			if ok {
				stats.Images++
			}
		}

		description, err := d.fetchDescription(ctx, item.ItemName)
		if err != nil {
			d.logger.Warn("description fetch failed", zap.String("item", item.ItemName), zap.Error(err))
			description = fmt.Sprintf("(No Wikipedia page for %q)\n", item.ItemName)
		}
		if err := os.WriteFile(descriptionFile, []byte(description), 0644); err != nil {
			return stats, fmt.Errorf("writing description: %w", err)
		}
		stats.Items++
	}

	return stats, nil
}

// downloadImage fetches one image; returns (false, nil) when it already exists
func (d *Downloader) downloadImage(ctx context.Context, img ManifestImage, itemDir string, opts Options) (bool, error) {
	imageURL, err := d.resolveImageURL(ctx, img, opts)
	if err != nil {
		return false, err
	}

	savePath := filepath.Join(itemDir, img.ImageID+"."+extFromURL(imageURL))
	if !opts.Force {
		if _, err := os.Stat(savePath); err == nil {
			return false, nil
		}
	}

	d.sleep(time.Duration(opts.DelaySeconds * float64(time.Second)))

	// Media requests carry no gzip header per the robot policy
	data, err := d.get(ctx, imageURL, false)
	if err != nil {
		return false, err
	}

	if opts.Scale {
		if scaled, err := scaleImage(data, opts.MaxDim); err == nil {
			data = scaled
		} else {
			d.logger.Warn("scaling failed, keeping original", zap.String("path", savePath), zap.Error(err))
		}
	}

	if err := os.WriteFile(savePath, data, 0644); err != nil {
		return false, fmt.Errorf("writing image: %w", err)
	}
	return true, nil
}

func (d *Downloader) resolveImageURL(ctx context.Context, img ManifestImage, opts Options) (string, error) {
	if opts.ThumbnailsOnly && img.Thumbnail != "" {
		return img.Thumbnail, nil
	}
	if !opts.ScrapeURLs && img.Thumbnail != "" {
		if full := ThumbnailToFullURL(img.Thumbnail); full != "" {
			return full, nil
		}
	}
	return d.scrapeImageURL(ctx, img.PageURL)
}

// scrapeImageURL resolves a Commons file page to its direct image URL
func (d *Downloader) scrapeImageURL(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= scrapeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(util.CalculateBackoff(2*time.Second, attempt)):
			}
		}

		body, err := d.get(ctx, pageURL, true)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("parsing page: %w", err)
			continue
		}

		href, ok := doc.Find("#mw-content-text div.fullMedia p a, .fullMedia p a").First().Attr("href")
		if !ok || href == "" {
			return "", fmt.Errorf("no image link found on %s", pageURL)
		}
		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		}
		return href, nil
	}
	return "", fmt.Errorf("resolving %s: %w", pageURL, lastErr)
}

// fetchDescription pulls the article plain text from the Wikipedia API
func (d *Downloader) fetchDescription(ctx context.Context, itemName string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("explaintext", "1")
	q.Set("format", "json")
	q.Set("redirects", "1")
	q.Set("titles", itemName)

	body, err := d.get(ctx, d.wikipediaAPI+"?"+q.Encode(), true)
	if err != nil {
		return "", err
	}

	var out struct {
		Query struct {
			Pages map[string]struct {
				Extract string `json:"extract"`
				Missing *struct{} `json:"missing"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parsing wikipedia response: %w", err)
	}
	for _, page := range out.Query.Pages {
		if page.Missing == nil && page.Extract != "" {
			return page.Extract, nil
		}
	}
	return "", fmt.Errorf("no wikipedia page for %q", itemName)
}

// get runs one policy-conformant GET: UA always, gzip only for HTML/API,
// 429 Retry-After honored, 5xx pauses for fifteen minutes before failing.
func (d *Downloader) get(ctx context.Context, rawURL string, html bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if html {
		req.Header.Set("Accept-Encoding", "gzip")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		delay := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				delay = time.Duration(secs) * time.Second
			}
		}
		d.logger.Warn("429 received, waiting per Retry-After", zap.Duration("delay", delay))
		d.sleep(delay)
		return nil, fmt.Errorf("rate limited on %s", rawURL)
	case resp.StatusCode >= 500:
		d.logger.Warn("server error, pausing per robot policy",
			zap.Int("status", resp.StatusCode), zap.Duration("pause", pause5xx))
		d.sleep(pause5xx)
		return nil, fmt.Errorf("server error %d on %s", resp.StatusCode, rawURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d on %s", resp.StatusCode, rawURL)
	}

	var reader io.Reader = resp.Body
	// We request gzip explicitly, so the transport does not decompress for us
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

// extFromURL picks a safe file extension for the downloaded image
func extFromURL(imageURL string) string {
	last := imageURL
	if i := strings.LastIndex(last, "/"); i >= 0 {
		last = last[i+1:]
	}
	if i := strings.Index(last, "?"); i >= 0 {
		last = last[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(last), "."))
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp":
		return ext
	}
	return "jpg"
}

// scaleImage bounds the larger side at maxDim, preserving aspect ratio
func scaleImage(data []byte, maxDim int) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return data, nil
	}

	var newW, newH int
	if w >= h {
		newW = maxDim
		newH = int(float64(h)*float64(maxDim)/float64(w) + 0.5)
	} else {
		newH = maxDim
		newW = int(float64(w)*float64(maxDim)/float64(h) + 0.5)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
