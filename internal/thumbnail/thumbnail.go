// Package thumbnail generates letterboxed JPEG previews for PDF and video
// resources, cached on disk under a filename-derived slug.
package thumbnail

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

const (
	canvasWidth  = 640
	canvasHeight = 360
	jpegQuality  = 85

	publicPrefix = "/thumbs"

	downloadTimeout = 30 * time.Second
	maxDownloadSize = 200 << 20 // 200 MB source cap for remote downloads
)

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

// Renderer produces a single preview frame for one resource kind.
type Renderer interface {
	Render(ctx context.Context, src string, preferredSeconds float64) (image.Image, error)
}

// Generator caches thumbnails under thumbsDir, keyed by slug. Generation is
// strictly best-effort: any failure logs a warning and yields no thumbnail.
type Generator struct {
	thumbsDir    string
	resourcesDir string
	renderers    map[string]Renderer
	client       *http.Client
	logger       *slog.Logger
}

// NewGenerator creates a thumbnail generator with the default PDF and video
// renderers registered.
func NewGenerator(thumbsDir, resourcesDir string, logger *slog.Logger) *Generator {
	return &Generator{
		thumbsDir:    thumbsDir,
		resourcesDir: resourcesDir,
		renderers: map[string]Renderer{
			models.KindPDF:   pdfRenderer{},
			models.KindVideo: videoRenderer{},
		},
		client: &http.Client{Timeout: downloadTimeout},
		logger: logger,
	}
}

// Ensure returns the public URL of the resource's thumbnail, generating it
// if absent. Only pdf and video resources are eligible. Never returns an
// error: every failure logs a warning and returns "".
func (g *Generator) Ensure(ctx context.Context, res models.Resource, preferredSeconds float64) string {
	renderer, ok := g.renderers[res.Kind]
	if !ok {
		return ""
	}

	slug := Slug(baseName(res))
	if slug == "" {
		return ""
	}
	dst := filepath.Join(g.thumbsDir, slug+".jpg")
	publicURL := publicPrefix + "/" + slug + ".jpg"

	// Cached by slug, not content hash: a regenerated file with the same
	// name reuses the old thumbnail, a renamed file orphans it.
	if _, err := os.Stat(dst); err == nil {
		return publicURL
	}

	src, cleanup, err := g.resolveSource(ctx, res)
	if err != nil {
		g.logger.Warn("thumbnail: no source", slog.String("resource", res.Title), slog.String("error", err.Error()))
		return ""
	}
	defer cleanup()

	frame, err := renderer.Render(ctx, src, preferredSeconds)
	if err != nil {
		g.logger.Warn("thumbnail: render failed", slog.String("resource", res.Title), slog.String("error", err.Error()))
		return ""
	}

	if err := os.MkdirAll(g.thumbsDir, 0o755); err != nil {
		g.logger.Warn("thumbnail: mkdir failed", slog.String("error", err.Error()))
		return ""
	}
	if err := imaging.Save(Letterbox(frame), dst, imaging.JPEGQuality(jpegQuality)); err != nil {
		g.logger.Warn("thumbnail: save failed", slog.String("path", dst), slog.String("error", err.Error()))
		return ""
	}

	return publicURL
}

// resolveSource locates the bytes to render: a local file named after the
// URL, then after the filename, then a temporary download for remote URLs.
// cleanup removes any temporary file and is always safe to call.
func (g *Generator) resolveSource(ctx context.Context, res models.Resource) (string, func(), error) {
	noop := func() {}

	if res.URL != "" {
		local := filepath.Join(g.resourcesDir, path.Base(res.URL))
		if _, err := os.Stat(local); err == nil {
			return local, noop, nil
		}
	}
	if res.Filename != "" {
		local := filepath.Join(g.resourcesDir, res.Filename)
		if _, err := os.Stat(local); err == nil {
			return local, noop, nil
		}
	}

	if u, err := url.Parse(res.URL); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return g.download(ctx, res)
	}

	return "", noop, fmt.Errorf("no local file for %q", res.Title)
}

func (g *Generator) download(ctx context.Context, res models.Resource) (string, func(), error) {
	noop := func() {}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return "", noop, fmt.Errorf("build request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", noop, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", noop, fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}

	ext := strings.ToLower(path.Ext(res.URL))
	if ext == "" {
		ext = "." + res.Ext
	}
	tmp, err := os.CreateTemp("", "thumb-src-*"+ext)
	if err != nil {
		return "", noop, fmt.Errorf("create temp: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	_, err = io.Copy(tmp, io.LimitReader(resp.Body, maxDownloadSize))
	closeErr := tmp.Close()
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("download body: %w", err)
	}
	if closeErr != nil {
		cleanup()
		return "", noop, fmt.Errorf("close temp: %w", closeErr)
	}
	return tmp.Name(), cleanup, nil
}

// Letterbox fits img inside the fixed canvas, padding with black bars.
func Letterbox(img image.Image) image.Image {
	fitted := imaging.Fit(img, canvasWidth, canvasHeight, imaging.Lanczos)
	canvas := imaging.New(canvasWidth, canvasHeight, color.NRGBA{A: 255})
	return imaging.PasteCenter(canvas, fitted)
}

// Slug derives the cache key from a base filename: extension stripped,
// lowercased, runs of unsafe characters collapsed to a hyphen.
func Slug(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ToLower(name)
	name = slugRe.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}

func baseName(res models.Resource) string {
	if res.Filename != "" {
		return filepath.Base(res.Filename)
	}
	return path.Base(res.URL)
}
