// Package catalog assembles the downloadable-resource listing from the
// metadata sidecar merged with a scan of the resources directory.
package catalog

import (
	"context"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

// defaultSeekSeconds is where video thumbnails are taken from when the
// caller has no preference.
const defaultSeekSeconds = 2.0

// Thumbnailer lazily produces a preview image for a resource. An empty
// return value means no thumbnail could be generated.
type Thumbnailer interface {
	Ensure(ctx context.Context, res models.Resource, preferredSeconds float64) string
}

// Catalog merges sidecar metadata with the on-disk resource directory.
type Catalog struct {
	sidecar *Sidecar
	dir     string
	thumbs  Thumbnailer
	logger  *slog.Logger
}

// New creates a catalog over the given sidecar and resources directory.
// thumbs may be nil to disable lazy thumbnail generation.
func New(sidecar *Sidecar, dir string, thumbs Thumbnailer, logger *slog.Logger) *Catalog {
	return &Catalog{sidecar: sidecar, dir: dir, thumbs: thumbs, logger: logger}
}

// Sidecar exposes the underlying sidecar store.
func (c *Catalog) Sidecar() *Sidecar { return c.sidecar }

// List returns all resources: sidecar entries first (normalized), then
// directory files not referenced by any entry, newest first. Resources of
// kind pdf/video missing a thumbnail get one generated lazily; the
// thumbnail URL is set on the response only, not written back.
func (c *Catalog) List(ctx context.Context, tag string) []models.Resource {
	now := time.Now().UTC()
	resources := c.sidecar.Load()

	seenNames := make(map[string]struct{}, len(resources))
	seenURLs := make(map[string]struct{}, len(resources))
	for i := range resources {
		resources[i].Normalize(now)
		if resources[i].Filename != "" {
			seenNames[resources[i].Filename] = struct{}{}
		}
		if resources[i].URL != "" {
			seenURLs[resources[i].URL] = struct{}{}
		}
	}

	resources = append(resources, c.scanUnreferenced(seenNames, seenURLs)...)

	filtered := resources[:0]
	for _, r := range resources {
		if r.HasTag(tag) {
			filtered = append(filtered, r)
		}
	}
	resources = filtered

	sort.SliceStable(resources, func(i, j int) bool {
		return resources[i].UploadedAt.After(resources[j].UploadedAt)
	})

	if c.thumbs != nil {
		for i := range resources {
			r := &resources[i]
			if r.ThumbnailURL != "" {
				continue
			}
			if r.Kind != models.KindPDF && r.Kind != models.KindVideo {
				continue
			}
			if url := c.thumbs.Ensure(ctx, *r, defaultSeekSeconds); url != "" {
				r.ThumbnailURL = url
			}
		}
	}

	return resources
}

// scanUnreferenced lists directory files absent from the sidecar and
// synthesizes resource records for them. Stat failures skip the entry.
func (c *Catalog) scanUnreferenced(seenNames, seenURLs map[string]struct{}) []models.Resource {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("catalog: scan failed", slog.String("dir", c.dir), slog.String("error", err.Error()))
		}
		return nil
	}

	var out []models.Resource
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || name == "metadata.json" {
			continue
		}
		url := path.Join("/resources", name)
		if _, ok := seenNames[name]; ok {
			continue
		}
		if _, ok := seenURLs[url]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		r := models.Resource{
			Title:      name,
			Filename:   name,
			URL:        url,
			UploadedAt: info.ModTime().UTC(),
		}
		r.Normalize(info.ModTime().UTC())
		out = append(out, r)
	}
	return out
}

// SampleResources are the demo records seeded when the sidecar is empty.
func SampleResources() []models.Resource {
	return []models.Resource{
		{
			Title:       "Spike-Protein-Toxicity.pdf",
			Filename:    "Spike-Protein-Toxicity.pdf",
			Ext:         "pdf",
			URL:         "https://arxiv.org/pdf/1706.03762.pdf",
			Kind:        models.KindPDF,
			Tags:        []string{"spike protein", "mechanisms"},
			Description: "Reference PDF preview for demo.",
		},
		{
			Title:       "Bifidobacterium-Decline-clip.mp4",
			Filename:    "bifidobacterium-decrease.mp4",
			Ext:         "mp4",
			URL:         "https://samplelib.com/lib/preview/mp4/sample-5s.mp4",
			Kind:        models.KindVideo,
			Tags:        []string{"gut", "bifidobacterium", "dysbiosis"},
			Description: "Short sample video clip for demo.",
		},
		{
			Title:       "Lecture-excerpt.m4a",
			Filename:    "lecture-excerpt.m4a",
			Ext:         "m4a",
			URL:         "https://samplelib.com/lib/preview/mp3/sample-3s.mp3",
			Kind:        models.KindAudio,
			Tags:        []string{"podcast", "lecture"},
			Description: "Short sample audio for demo.",
		},
	}
}
