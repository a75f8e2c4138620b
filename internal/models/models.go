// Package models defines the domain types for the knowledge-base API.
package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Resource kinds.
const (
	KindPDF     = "pdf"
	KindVideo   = "video"
	KindAudio   = "audio"
	KindJSON    = "json"
	KindUnknown = "unknown"
)

// KindForExt infers a resource kind from a file extension (with or without
// the leading dot). Unknown extensions map to KindUnknown.
func KindForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return KindPDF
	case "mp4", "mov", "webm", "mkv", "avi":
		return KindVideo
	case "mp3", "m4a", "wav", "ogg", "flac":
		return KindAudio
	case "json":
		return KindJSON
	default:
		return KindUnknown
	}
}

// Resource is a downloadable library item. The persisted form lives in the
// metadata sidecar; entries found only on disk are synthesized at read time.
type Resource struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Filename      string    `json:"filename,omitempty"`
	Ext           string    `json:"ext,omitempty"`
	URL           string    `json:"url"`
	Kind          string    `json:"kind"`
	Tags          []string  `json:"tags"`
	Description   string    `json:"description,omitempty"`
	UploadedAt    time.Time `json:"uploaded_at"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	KnowledgeURL  string    `json:"knowledge_url,omitempty"`
	KnowledgeJob  string    `json:"knowledge_job_id,omitempty"`
	KnowledgeType string    `json:"knowledge_job_type,omitempty"`
	KnowledgeHash string    `json:"knowledge_hash,omitempty"`
}

// Normalize fills derivable fields: ext from filename, kind from ext, and a
// current timestamp when uploaded_at is missing.
func (r *Resource) Normalize(now time.Time) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Ext == "" && r.Filename != "" {
		r.Ext = strings.TrimPrefix(strings.ToLower(filepath.Ext(r.Filename)), ".")
	}
	if r.Ext == "" && r.URL != "" {
		r.Ext = strings.TrimPrefix(strings.ToLower(filepath.Ext(r.URL)), ".")
	}
	if r.Kind == "" {
		r.Kind = KindForExt(r.Ext)
	}
	if r.UploadedAt.IsZero() {
		r.UploadedAt = now
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
}

// HasTag reports whether any tag case-insensitively contains filter as a
// substring. An empty filter matches everything.
func (r *Resource) HasTag(filter string) bool {
	return TagsMatch(r.Tags, filter)
}

// TagsMatch reports whether any tag case-insensitively contains filter as a
// substring. An empty filter matches everything.
func TagsMatch(tags []string, filter string) bool {
	if filter == "" {
		return true
	}
	needle := strings.ToLower(filter)
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// FeedItem is one entry of the news feed.
type FeedItem struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // article | video | resource
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source,omitempty"`
}

// ResearchArticle is a catalogued publication.
type ResearchArticle struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Authors       []string  `json:"authors"`
	PublishedDate time.Time `json:"published_date"`
	DOI           string    `json:"doi,omitempty"`
	Link          string    `json:"link,omitempty"`
	Abstract      string    `json:"abstract,omitempty"`
	Keywords      []string  `json:"keywords"`
	Tags          []string  `json:"tags"`
	CitationCount int       `json:"citation_count"`
}

// Treatment is a protocol entry (supplement, drug, or intervention).
type Treatment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Protocol   string    `json:"protocol"`
	Evidence   string    `json:"evidence,omitempty"`
	References []string  `json:"references"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
}

// MediaItem is a curated video or audio link.
type MediaItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Kind         string    `json:"kind"` // video | audio
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Tags         []string  `json:"tags"`
	PublishedAt  time.Time `json:"published_at"`
	Source       string    `json:"source,omitempty"`
}

// StatusCheck records a client ping.
type StatusCheck struct {
	ID         string    `json:"id"`
	ClientName string    `json:"client_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// KnowledgeFile describes one generated markdown document on disk.
type KnowledgeFile struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ReconcileReport summarizes one reconciliation pass. The four lists carry
// human-readable outcome lines, one per knowledge document processed.
type ReconcileReport struct {
	Linked    []string `json:"linked"`
	Updated   []string `json:"updated"`
	Skipped   []string `json:"skipped"`
	Conflicts []string `json:"conflicts"`
}

// NewReconcileReport returns a report with non-nil lists so that empty
// passes serialize as [] rather than null.
func NewReconcileReport() *ReconcileReport {
	return &ReconcileReport{
		Linked:    []string{},
		Updated:   []string{},
		Skipped:   []string{},
		Conflicts: []string{},
	}
}
