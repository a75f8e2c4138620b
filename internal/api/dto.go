package api

import (
	"github.com/timottowitz/covidvaccinedetox/internal/models"
	"github.com/timottowitz/covidvaccinedetox/internal/summarize"
	"github.com/timottowitz/covidvaccinedetox/internal/upload"
)

// RootResponse is the API banner.
type RootResponse struct {
	Message string `json:"message" example:"Hello World" validate:"required"`
}

// HealthResponse reports service and store health.
type HealthResponse struct {
	Status string `json:"status" example:"ok" validate:"required"`
	Store  string `json:"store" example:"ok" validate:"required"`
}

// StatusCheckRequest is the request body for recording a client ping.
type StatusCheckRequest struct {
	ClientName string `json:"client_name" example:"web" validate:"required"`
}

// FeedCreateRequest is the request body for adding a feed item.
type FeedCreateRequest struct {
	Type    string   `json:"type" example:"article"`
	Title   string   `json:"title" example:"Spike protein clearance study" validate:"required"`
	Summary string   `json:"summary" example:"A short abstract."`
	URL     string   `json:"url" example:"https://example.org/study" validate:"required"`
	Tags    []string `json:"tags" example:"spike,research"`
	Source  string   `json:"source" example:"example.org"`
}

// FeedRefreshResponse reports a feed refresh outcome.
type FeedRefreshResponse struct {
	Inserted int `json:"inserted" example:"5" validate:"required"`
}

// ResearchCreateRequest is the request body for cataloguing an article.
type ResearchCreateRequest struct {
	Title         string   `json:"title" validate:"required"`
	Authors       []string `json:"authors"`
	PublishedDate string   `json:"published_date" example:"2024-03-01"`
	DOI           string   `json:"doi,omitempty"`
	Link          string   `json:"link,omitempty"`
	Abstract      string   `json:"abstract,omitempty"`
	Keywords      []string `json:"keywords"`
	Tags          []string `json:"tags"`
	CitationCount int      `json:"citation_count"`
}

// TreatmentCreateRequest is the request body for adding a treatment entry.
type TreatmentCreateRequest struct {
	Name       string   `json:"name" validate:"required"`
	Category   string   `json:"category" validate:"required"`
	Protocol   string   `json:"protocol" validate:"required"`
	Evidence   string   `json:"evidence,omitempty"`
	References []string `json:"references"`
	Tags       []string `json:"tags"`
}

// MediaCreateRequest is the request body for adding a media link.
type MediaCreateRequest struct {
	Title        string   `json:"title" validate:"required"`
	Kind         string   `json:"kind" example:"video" validate:"required"`
	URL          string   `json:"url" validate:"required"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Tags         []string `json:"tags"`
	Source       string   `json:"source,omitempty"`
}

// UploadAcceptedResponse is returned when an upload task is registered (or
// replayed via idempotency key).
type UploadAcceptedResponse struct {
	TaskID         string `json:"task_id" validate:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Status         string `json:"status" example:"pending" validate:"required"`
	Message        string `json:"message" validate:"required"`
}

// TaskStatusResponse is the tracked state of an upload task.
type TaskStatusResponse = upload.Task

// KnowledgeStatusResponse lists generated knowledge documents.
type KnowledgeStatusResponse struct {
	Files []models.KnowledgeFile `json:"files" validate:"required"`
	Count int                    `json:"count" validate:"required"`
}

// SummarizeRequest is the request body for local summarization.
type SummarizeRequest struct {
	Text         string `json:"text" validate:"required"`
	MaxSentences int    `json:"max_sentences" example:"3"`
}

// SummarizeResponse carries the extractive summary and key points.
type SummarizeResponse struct {
	Summary   string   `json:"summary" validate:"required"`
	KeyPoints []string `json:"key_points" validate:"required"`
}

// AnswerRequest is the request body for local question answering. Scope
// restricts which collections feed the answer corpus
// (knowledge/research/resources/treatments/feed); empty means all.
type AnswerRequest struct {
	Question string   `json:"question" validate:"required"`
	Scope    []string `json:"scope" example:"research,treatments"`
}

// AnswerResponse carries the answer and its source references.
type AnswerResponse struct {
	Answer     string                `json:"answer" validate:"required"`
	References []summarize.Reference `json:"references" validate:"required"`
}
