package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

const listCap = 100

// jsonList encodes a string slice as the JSON stored in list columns.
func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func parseList(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// InsertFeedItem stores one feed entry.
func (db *DB) InsertFeedItem(ctx context.Context, it models.FeedItem) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO feed_items (id, type, title, summary, url, tags, published_at, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.Type, it.Title, it.Summary, it.URL, jsonList(it.Tags), it.PublishedAt, it.Source)
	if err != nil {
		return fmt.Errorf("store: insert feed item: %w", err)
	}
	return nil
}

// UpsertFeedItemByURL inserts a feed entry unless one with the same URL
// already exists. Used by the feed refresh merge.
func (db *DB) UpsertFeedItemByURL(ctx context.Context, it models.FeedItem) (bool, error) {
	var existing string
	err := db.conn.QueryRowContext(ctx, `SELECT id FROM feed_items WHERE url = ?`, it.URL).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("store: feed lookup: %w", err)
	}
	if err := db.InsertFeedItem(ctx, it); err != nil {
		return false, err
	}
	return true, nil
}

// ListFeed returns feed entries newest first, filtered by tag substring.
func (db *DB) ListFeed(ctx context.Context, tag string) ([]models.FeedItem, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, type, title, summary, url, tags, published_at, source
		FROM feed_items ORDER BY published_at DESC LIMIT ?
	`, listCap)
	if err != nil {
		return nil, fmt.Errorf("store: list feed: %w", err)
	}
	defer rows.Close()

	out := []models.FeedItem{}
	for rows.Next() {
		var it models.FeedItem
		var tags string
		if err := rows.Scan(&it.ID, &it.Type, &it.Title, &it.Summary, &it.URL, &tags, &it.PublishedAt, &it.Source); err != nil {
			return nil, err
		}
		it.Tags = parseList(tags)
		if models.TagsMatch(it.Tags, tag) {
			out = append(out, it)
		}
	}
	return out, rows.Err()
}

// InsertArticle stores one research article.
func (db *DB) InsertArticle(ctx context.Context, a models.ResearchArticle) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO articles (id, title, authors, published_date, doi, link, abstract, keywords, tags, citation_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Title, jsonList(a.Authors), a.PublishedDate, a.DOI, a.Link, a.Abstract,
		jsonList(a.Keywords), jsonList(a.Tags), a.CitationCount)
	if err != nil {
		return fmt.Errorf("store: insert article: %w", err)
	}
	return nil
}

// ListArticles returns research articles filtered by tag substring.
// sortBy accepts "date" (default) or "citations".
func (db *DB) ListArticles(ctx context.Context, tag, sortBy string) ([]models.ResearchArticle, error) {
	order := "published_date DESC"
	if sortBy == "citations" || sortBy == "citation_count" {
		order = "citation_count DESC"
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, authors, published_date, doi, link, abstract, keywords, tags, citation_count
		FROM articles ORDER BY `+order+` LIMIT ?
	`, listCap)
	if err != nil {
		return nil, fmt.Errorf("store: list articles: %w", err)
	}
	defer rows.Close()

	out := []models.ResearchArticle{}
	for rows.Next() {
		var a models.ResearchArticle
		var authors, keywords, tags string
		if err := rows.Scan(&a.ID, &a.Title, &authors, &a.PublishedDate, &a.DOI, &a.Link,
			&a.Abstract, &keywords, &tags, &a.CitationCount); err != nil {
			return nil, err
		}
		a.Authors = parseList(authors)
		a.Keywords = parseList(keywords)
		a.Tags = parseList(tags)
		if models.TagsMatch(a.Tags, tag) {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}

// InsertTreatment stores one treatment protocol.
func (db *DB) InsertTreatment(ctx context.Context, t models.Treatment) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO treatments (id, name, category, protocol, evidence, refs, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, t.Category, t.Protocol, t.Evidence, jsonList(t.References), jsonList(t.Tags), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert treatment: %w", err)
	}
	return nil
}

// ListTreatments returns treatment protocols filtered by tag substring.
func (db *DB) ListTreatments(ctx context.Context, tag string) ([]models.Treatment, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, category, protocol, evidence, refs, tags, created_at
		FROM treatments ORDER BY created_at DESC LIMIT ?
	`, listCap)
	if err != nil {
		return nil, fmt.Errorf("store: list treatments: %w", err)
	}
	defer rows.Close()

	out := []models.Treatment{}
	for rows.Next() {
		var t models.Treatment
		var refs, tags string
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.Protocol, &t.Evidence, &refs, &tags, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.References = parseList(refs)
		t.Tags = parseList(tags)
		if models.TagsMatch(t.Tags, tag) {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

// InsertMediaItem stores one media entry.
func (db *DB) InsertMediaItem(ctx context.Context, m models.MediaItem) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO media_items (id, title, kind, url, thumbnail_url, tags, published_at, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Title, m.Kind, m.URL, m.ThumbnailURL, jsonList(m.Tags), m.PublishedAt, m.Source)
	if err != nil {
		return fmt.Errorf("store: insert media item: %w", err)
	}
	return nil
}

// ListMedia returns media entries newest first, filtered by tag substring.
func (db *DB) ListMedia(ctx context.Context, tag string) ([]models.MediaItem, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, kind, url, thumbnail_url, tags, published_at, source
		FROM media_items ORDER BY published_at DESC LIMIT ?
	`, listCap)
	if err != nil {
		return nil, fmt.Errorf("store: list media: %w", err)
	}
	defer rows.Close()

	out := []models.MediaItem{}
	for rows.Next() {
		var m models.MediaItem
		var tags string
		if err := rows.Scan(&m.ID, &m.Title, &m.Kind, &m.URL, &m.ThumbnailURL, &tags, &m.PublishedAt, &m.Source); err != nil {
			return nil, err
		}
		m.Tags = parseList(tags)
		if models.TagsMatch(m.Tags, tag) {
			out = append(out, m)
		}
	}
	return out, rows.Err()
}

// InsertStatusCheck stores one status ping.
func (db *DB) InsertStatusCheck(ctx context.Context, s models.StatusCheck) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO status_checks (id, client_name, timestamp) VALUES (?, ?, ?)
	`, s.ID, s.ClientName, s.Timestamp)
	if err != nil {
		return fmt.Errorf("store: insert status check: %w", err)
	}
	return nil
}

// ListStatusChecks returns recorded status pings, newest first.
func (db *DB) ListStatusChecks(ctx context.Context) ([]models.StatusCheck, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, client_name, timestamp FROM status_checks ORDER BY timestamp DESC LIMIT ?
	`, listCap)
	if err != nil {
		return nil, fmt.Errorf("store: list status checks: %w", err)
	}
	defer rows.Close()

	out := []models.StatusCheck{}
	for rows.Next() {
		var s models.StatusCheck
		if err := rows.Scan(&s.ID, &s.ClientName, &s.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", table, err)
	}
	return n, nil
}
