// Package feed refreshes the news feed from an external RSS source, with a
// bundled sample file as offline fallback.
package feed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
	"github.com/timottowitz/covidvaccinedetox/internal/store"
)

const (
	fetchTimeout = 30 * time.Second
	maxBodySize  = 10 << 20
	maxItems     = 50
)

// rss mirrors the subset of RSS 2.0 the fetcher reads.
type rss struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Categories  []string `xml:"category"`
}

// Fetcher pulls feed items from an RSS URL and merges them into the store.
type Fetcher struct {
	url        string
	samplePath string
	client     *http.Client
	db         *store.DB
	logger     *slog.Logger
}

// NewFetcher creates a fetcher. url may be empty, in which case only the
// sample file is used.
func NewFetcher(url, samplePath string, db *store.DB, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		url:        url,
		samplePath: samplePath,
		client:     &http.Client{Timeout: fetchTimeout},
		db:         db,
		logger:     logger,
	}
}

// Refresh fetches the configured source and upserts every item by URL.
// Returns how many items were newly inserted. When the remote fetch fails
// (or no URL is configured) the bundled sample file is merged instead, so
// refresh always leaves the feed populated.
func (f *Fetcher) Refresh(ctx context.Context) (int, error) {
	items, err := f.fetchRemote(ctx)
	if err != nil {
		f.logger.Warn("feed: remote fetch failed, using sample file", slog.String("error", err.Error()))
		items, err = f.loadSample()
		if err != nil {
			return 0, err
		}
	}

	inserted := 0
	for _, it := range items {
		it.ID = uuid.NewString()
		isNew, err := f.db.UpsertFeedItemByURL(ctx, it)
		if err != nil {
			return inserted, fmt.Errorf("feed: upsert %q: %w", it.URL, err)
		}
		if isNew {
			inserted++
		}
	}
	f.logger.Info("feed: refreshed", slog.Int("fetched", len(items)), slog.Int("new", inserted))
	return inserted, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context) ([]models.FeedItem, error) {
	if f.url == "" {
		return nil, fmt.Errorf("feed: no source url configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: source returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	return parseRSS(data)
}

// parseRSS converts an RSS payload into feed items, stripping HTML from
// descriptions.
func parseRSS(data []byte) ([]models.FeedItem, error) {
	var doc rss
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("feed: parse rss: %w", err)
	}

	items := make([]models.FeedItem, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		if len(items) >= maxItems {
			break
		}
		if strings.TrimSpace(it.Link) == "" {
			continue
		}
		tags := make([]string, 0, len(it.Categories))
		for _, c := range it.Categories {
			if c = strings.TrimSpace(c); c != "" {
				tags = append(tags, c)
			}
		}
		items = append(items, models.FeedItem{
			Type:        "article",
			Title:       strings.TrimSpace(it.Title),
			Summary:     stripHTML(it.Description),
			URL:         strings.TrimSpace(it.Link),
			Tags:        tags,
			PublishedAt: parsePubDate(it.PubDate),
		})
	}
	return items, nil
}

func parsePubDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// stripHTML renders an HTML fragment down to its text content with
// collapsed whitespace.
func stripHTML(fragment string) string {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.Join(strings.Fields(b.String()), " ")
}

// loadSample reads feed items from the bundled JSON sample file.
func (f *Fetcher) loadSample() ([]models.FeedItem, error) {
	if f.samplePath == "" {
		return nil, fmt.Errorf("feed: no sample file configured")
	}
	data, err := os.ReadFile(f.samplePath)
	if err != nil {
		return nil, fmt.Errorf("feed: read sample: %w", err)
	}
	var items []models.FeedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("feed: parse sample: %w", err)
	}
	return items, nil
}
