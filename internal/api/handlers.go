package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timottowitz/covidvaccinedetox/internal/apperr"
	"github.com/timottowitz/covidvaccinedetox/internal/catalog"
	"github.com/timottowitz/covidvaccinedetox/internal/feed"
	"github.com/timottowitz/covidvaccinedetox/internal/frontmatter"
	"github.com/timottowitz/covidvaccinedetox/internal/knowledge"
	"github.com/timottowitz/covidvaccinedetox/internal/models"
	"github.com/timottowitz/covidvaccinedetox/internal/store"
	"github.com/timottowitz/covidvaccinedetox/internal/summarize"
	"github.com/timottowitz/covidvaccinedetox/internal/upload"
)

const maxJSONBody = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	db           *store.DB
	catalog      *catalog.Catalog
	processor    *upload.Processor
	reconciler   *knowledge.Reconciler
	fetcher      *feed.Fetcher
	knowledgeDir string
}

// NewHandler creates a new Handler.
func NewHandler(db *store.DB, cat *catalog.Catalog, processor *upload.Processor,
	reconciler *knowledge.Reconciler, fetcher *feed.Fetcher, knowledgeDir string) *Handler {
	return &Handler{
		db:           db,
		catalog:      cat,
		processor:    processor,
		reconciler:   reconciler,
		fetcher:      fetcher,
		knowledgeDir: knowledgeDir,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// Root handles GET /api/.
//
//	@Summary		API banner
//	@Tags			meta
//	@Produce		json
//	@Success		200	{object}	RootResponse
//	@Router			/ [get]
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Message: "Hello World"})
}

// Health handles GET /api/health.
//
//	@Summary		Service and store health
//	@Tags			meta
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: "ok"}
	if err := h.db.Ping(r.Context()); err != nil {
		slog.Error("health: store ping failed", slog.String("error", err.Error()))
		resp.Status = "degraded"
		resp.Store = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateStatusCheck handles POST /api/status.
//
//	@Summary		Record a client status ping
//	@Tags			status
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StatusCheckRequest	true	"Client identity"
//	@Success		201		{object}	models.StatusCheck
//	@Failure		400		{object}	errResponse
//	@Router			/status [post]
func (h *Handler) CreateStatusCheck(w http.ResponseWriter, r *http.Request) {
	var req StatusCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ClientName) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("client_name is required"))
		return
	}

	check := models.StatusCheck{
		ID:         uuid.NewString(),
		ClientName: strings.TrimSpace(req.ClientName),
		Timestamp:  time.Now().UTC(),
	}
	if err := h.db.InsertStatusCheck(r.Context(), check); err != nil {
		slog.Error("create status check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, check)
}

// ListStatusChecks handles GET /api/status.
//
//	@Summary		List recorded status pings
//	@Tags			status
//	@Produce		json
//	@Success		200	{array}	models.StatusCheck
//	@Router			/status [get]
func (h *Handler) ListStatusChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := h.db.ListStatusChecks(r.Context())
	if err != nil {
		slog.Error("list status checks failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

// ListFeed handles GET /api/feed.
//
//	@Summary		List feed items, optionally filtered by tag
//	@Tags			feed
//	@Produce		json
//	@Param			tag	query	string	false	"Tag substring filter"
//	@Success		200	{array}	models.FeedItem
//	@Router			/feed [get]
func (h *Handler) ListFeed(w http.ResponseWriter, r *http.Request) {
	items, err := h.db.ListFeed(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		slog.Error("list feed failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateFeedItem handles POST /api/feed.
//
//	@Summary		Add a feed item
//	@Tags			feed
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FeedCreateRequest	true	"Feed item"
//	@Success		201		{object}	models.FeedItem
//	@Failure		400		{object}	errResponse
//	@Router			/feed [post]
func (h *Handler) CreateFeedItem(w http.ResponseWriter, r *http.Request) {
	var req FeedCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title and url are required"))
		return
	}

	item := models.FeedItem{
		ID:          uuid.NewString(),
		Type:        req.Type,
		Title:       req.Title,
		Summary:     req.Summary,
		URL:         req.URL,
		Tags:        req.Tags,
		Source:      req.Source,
		PublishedAt: time.Now().UTC(),
	}
	if item.Type == "" {
		item.Type = "article"
	}
	if err := h.db.InsertFeedItem(r.Context(), item); err != nil {
		slog.Error("create feed item failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// RefreshFeed handles POST /api/feed/refresh.
//
//	@Summary		Refresh the feed from the configured source
//	@Tags			feed
//	@Produce		json
//	@Success		200	{object}	FeedRefreshResponse
//	@Router			/feed/refresh [post]
func (h *Handler) RefreshFeed(w http.ResponseWriter, r *http.Request) {
	inserted, err := h.fetcher.Refresh(r.Context())
	if err != nil {
		slog.Error("refresh feed failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("feed source unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, FeedRefreshResponse{Inserted: inserted})
}

// ListResearch handles GET /api/research.
//
//	@Summary		List research articles
//	@Tags			research
//	@Produce		json
//	@Param			tag		query	string	false	"Tag substring filter"
//	@Param			sort_by	query	string	false	"Sort field"	Enums(published_date, citation_count)
//	@Success		200		{array}	models.ResearchArticle
//	@Router			/research [get]
func (h *Handler) ListResearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	articles, err := h.db.ListArticles(r.Context(), q.Get("tag"), q.Get("sort_by"))
	if err != nil {
		slog.Error("list research failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

// CreateResearch handles POST /api/research.
//
//	@Summary		Catalogue a research article
//	@Tags			research
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ResearchCreateRequest	true	"Article"
//	@Success		201		{object}	models.ResearchArticle
//	@Failure		400		{object}	errResponse
//	@Router			/research [post]
func (h *Handler) CreateResearch(w http.ResponseWriter, r *http.Request) {
	var req ResearchCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}

	published := time.Now().UTC()
	if req.PublishedDate != "" {
		t, err := time.Parse("2006-01-02", req.PublishedDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("published_date must be YYYY-MM-DD"))
			return
		}
		published = t
	}

	article := models.ResearchArticle{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Authors:       req.Authors,
		PublishedDate: published,
		DOI:           req.DOI,
		Link:          req.Link,
		Abstract:      req.Abstract,
		Keywords:      req.Keywords,
		Tags:          req.Tags,
		CitationCount: req.CitationCount,
	}
	if err := h.db.InsertArticle(r.Context(), article); err != nil {
		slog.Error("create research failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

// ListTreatments handles GET /api/treatments.
//
//	@Summary		List treatment protocols
//	@Tags			treatments
//	@Produce		json
//	@Param			tag	query	string	false	"Tag substring filter"
//	@Success		200	{array}	models.Treatment
//	@Router			/treatments [get]
func (h *Handler) ListTreatments(w http.ResponseWriter, r *http.Request) {
	treatments, err := h.db.ListTreatments(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		slog.Error("list treatments failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, treatments)
}

// CreateTreatment handles POST /api/treatments.
//
//	@Summary		Add a treatment protocol
//	@Tags			treatments
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TreatmentCreateRequest	true	"Treatment"
//	@Success		201		{object}	models.Treatment
//	@Failure		400		{object}	errResponse
//	@Router			/treatments [post]
func (h *Handler) CreateTreatment(w http.ResponseWriter, r *http.Request) {
	var req TreatmentCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Category == "" || req.Protocol == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name, category, and protocol are required"))
		return
	}

	treatment := models.Treatment{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Category:   req.Category,
		Protocol:   req.Protocol,
		Evidence:   req.Evidence,
		References: req.References,
		Tags:       req.Tags,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.db.InsertTreatment(r.Context(), treatment); err != nil {
		slog.Error("create treatment failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, treatment)
}

// ListMedia handles GET /api/media.
//
//	@Summary		List curated media links
//	@Tags			media
//	@Produce		json
//	@Param			tag	query	string	false	"Tag substring filter"
//	@Success		200	{array}	models.MediaItem
//	@Router			/media [get]
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	media, err := h.db.ListMedia(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		slog.Error("list media failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, media)
}

// CreateMedia handles POST /api/media.
//
//	@Summary		Add a curated media link
//	@Tags			media
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MediaCreateRequest	true	"Media item"
//	@Success		201		{object}	models.MediaItem
//	@Failure		400		{object}	errResponse
//	@Router			/media [post]
func (h *Handler) CreateMedia(w http.ResponseWriter, r *http.Request) {
	var req MediaCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Kind == "" || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title, kind, and url are required"))
		return
	}

	item := models.MediaItem{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Kind:         req.Kind,
		URL:          req.URL,
		ThumbnailURL: req.ThumbnailURL,
		Tags:         req.Tags,
		Source:       req.Source,
		PublishedAt:  time.Now().UTC(),
	}
	if err := h.db.InsertMediaItem(r.Context(), item); err != nil {
		slog.Error("create media failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// ListResources handles GET /api/resources.
//
//	@Summary		List library resources merged from sidecar and disk
//	@Tags			resources
//	@Produce		json
//	@Param			tag	query	string	false	"Tag substring filter"
//	@Success		200	{array}	models.Resource
//	@Router			/resources [get]
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List(r.Context(), r.URL.Query().Get("tag")))
}

// TaskStatus handles GET /api/knowledge/task_status.
//
//	@Summary		Poll an upload task
//	@Tags			knowledge
//	@Produce		json
//	@Param			task_id	query		string	true	"Task id"
//	@Success		200		{object}	TaskStatusResponse
//	@Failure		404		{object}	errResponse
//	@Router			/knowledge/task_status [get]
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'task_id' is required"))
		return
	}
	task, ok := h.processor.Tracker().Get(taskID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown task"))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Reconcile handles POST /api/knowledge/reconcile.
//
//	@Summary		Reconcile knowledge documents against resources
//	@Tags			knowledge
//	@Produce		json
//	@Success		200	{object}	models.ReconcileReport
//	@Router			/knowledge/reconcile [post]
func (h *Handler) Reconcile(w http.ResponseWriter, _ *http.Request) {
	report, err := h.reconciler.Reconcile()
	if err != nil {
		slog.Error("reconcile failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// KnowledgeStatus handles GET /api/knowledge/status.
//
//	@Summary		List generated knowledge documents
//	@Tags			knowledge
//	@Produce		json
//	@Success		200	{object}	KnowledgeStatusResponse
//	@Router			/knowledge/status [get]
func (h *Handler) KnowledgeStatus(w http.ResponseWriter, _ *http.Request) {
	files, err := knowledge.Status(h.knowledgeDir)
	if err != nil {
		slog.Error("knowledge status failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, KnowledgeStatusResponse{Files: files, Count: len(files)})
}

// SummarizeLocal handles POST /api/ai/summarize_local.
//
//	@Summary		Extractive summary of submitted text
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SummarizeRequest	true	"Text to summarize"
//	@Success		200		{object}	SummarizeResponse
//	@Failure		400		{object}	errResponse
//	@Router			/ai/summarize_local [post]
func (h *Handler) SummarizeLocal(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}

	summary, points := summarize.Summarize(req.Text, req.MaxSentences)
	writeJSON(w, http.StatusOK, SummarizeResponse{Summary: summary, KeyPoints: points})
}

// AnswerLocal handles POST /api/ai/answer_local.
//
//	@Summary		Answer a question from the local knowledge base
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AnswerRequest	true	"Question"
//	@Success		200		{object}	AnswerResponse
//	@Failure		400		{object}	errResponse
//	@Router			/ai/answer_local [post]
func (h *Handler) AnswerLocal(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("question is required"))
		return
	}

	docs := h.answerCorpus(r, req.Scope)
	answer, refs := summarize.Answer(req.Question, docs)
	writeJSON(w, http.StatusOK, AnswerResponse{Answer: answer, References: refs})
}

// answerScope reports whether a collection participates in the corpus. An
// empty scope list includes everything.
func answerScope(scope []string, name string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, s := range scope {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// answerCorpus flattens the scoped collections (knowledge documents,
// research articles, catalog resources, treatments, feed items) into
// answerable "title. body" units. Store errors shrink the corpus rather
// than failing the request.
func (h *Handler) answerCorpus(r *http.Request, scope []string) []summarize.Document {
	var docs []summarize.Document

	if answerScope(scope, "knowledge") {
		files, err := knowledge.Status(h.knowledgeDir)
		if err == nil {
			for _, f := range files {
				data, err := os.ReadFile(filepath.Join(h.knowledgeDir, f.Name))
				if err != nil {
					continue
				}
				doc := frontmatter.Parse(data)
				title := doc.Title()
				if title == "" {
					title = strings.TrimSuffix(f.Name, ".md")
				}
				docs = append(docs, summarize.Document{
					Title: title,
					Text:  doc.Body,
					Link:  path.Join("/knowledge", f.Name),
					Type:  "knowledge",
				})
			}
		}
	}

	if answerScope(scope, "research") {
		if articles, err := h.db.ListArticles(r.Context(), "", ""); err == nil {
			for _, a := range articles {
				docs = append(docs, summarize.Document{
					Title: a.Title,
					Text:  a.Title + ". " + a.Abstract,
					Link:  a.Link,
					Type:  "research",
				})
			}
		}
	}

	if answerScope(scope, "resources") {
		for _, res := range h.catalog.List(r.Context(), "") {
			docs = append(docs, summarize.Document{
				Title: res.Title,
				Text:  res.Title + ". " + res.Description,
				Link:  res.URL,
				Type:  "resource",
			})
		}
	}

	if answerScope(scope, "treatments") {
		if treatments, err := h.db.ListTreatments(r.Context(), ""); err == nil {
			for _, t := range treatments {
				docs = append(docs, summarize.Document{
					Title: t.Name,
					Text:  t.Name + ". " + t.Protocol + " " + t.Evidence,
					Type:  "treatment",
				})
			}
		}
	}

	if answerScope(scope, "feed") {
		if items, err := h.db.ListFeed(r.Context(), ""); err == nil {
			for _, it := range items {
				docs = append(docs, summarize.Document{
					Title: it.Title,
					Text:  it.Title + ". " + it.Summary,
					Link:  it.URL,
					Type:  "feed",
				})
			}
		}
	}

	return docs
}

// Upload handles POST /api/resources/upload.
//
//	@Summary		Upload a resource for background processing
//	@Tags			resources
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file				formData	file	true	"PDF or video file"
//	@Param			title				formData	string	false	"Display title"
//	@Param			tags				formData	string	false	"Comma-separated tags"
//	@Param			description			formData	string	false	"Description"
//	@Param			X-Idempotency-Key	header		string	false	"Idempotency key for safe retries"
//	@Success		202					{object}	UploadAcceptedResponse
//	@Failure		400					{object}	errResponse
//	@Failure		413					{object}	errResponse
//	@Failure		415					{object}	errResponse
//	@Router			/resources/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.DefaultMaxUploadBytes+maxJSONBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("form field 'file' is required"))
		return
	}

	task, err := h.processor.Submit(upload.Request{
		File:           file,
		Filename:       header.Filename,
		Size:           header.Size,
		DeclaredType:   header.Header.Get("Content-Type"),
		Title:          r.FormValue("title"),
		Tags:           splitTags(r.FormValue("tags")),
		Description:    r.FormValue("description"),
		IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
	})
	if err != nil {
		file.Close()
		switch {
		case errors.Is(err, apperr.ErrTooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file exceeds the upload size limit"))
		case errors.Is(err, apperr.ErrUnsupportedType):
			writeJSON(w, http.StatusUnsupportedMediaType, errorBody("only PDF and common video types are accepted"))
		default:
			slog.Error("upload submit failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	writeJSON(w, http.StatusAccepted, UploadAcceptedResponse{
		TaskID:         task.TaskID,
		IdempotencyKey: task.IdempotencyKey,
		Status:         task.Status,
		Message:        "upload accepted; poll /api/knowledge/task_status",
	})
}

func splitTags(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
