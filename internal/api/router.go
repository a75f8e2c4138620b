package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced on mutating
// endpoints; reads stay open. sseHandler, if non-nil, is mounted at
// GET /events.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Status pings.
	r.Get("/status", h.ListStatusChecks)
	r.Post("/status", h.CreateStatusCheck)

	// News feed.
	r.Get("/feed", h.ListFeed)

	// Research catalogue.
	r.Get("/research", h.ListResearch)

	// Treatment protocols.
	r.Get("/treatments", h.ListTreatments)

	// Curated media.
	r.Get("/media", h.ListMedia)

	// Resource library.
	r.Get("/resources", h.ListResources)

	// Knowledge base.
	r.Get("/knowledge/task_status", h.TaskStatus)
	r.Get("/knowledge/status", h.KnowledgeStatus)

	// Local AI.
	r.Post("/ai/summarize_local", h.SummarizeLocal)
	r.Post("/ai/answer_local", h.AnswerLocal)

	// SSE endpoint.
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	// Mutations sit behind Bearer auth when enabled.
	r.Group(func(g chi.Router) {
		g.Use(AuthMiddleware(authEnabled, token))
		g.Post("/feed", h.CreateFeedItem)
		g.Post("/feed/refresh", h.RefreshFeed)
		g.Post("/research", h.CreateResearch)
		g.Post("/treatments", h.CreateTreatment)
		g.Post("/media", h.CreateMedia)
		g.Post("/resources/upload", h.Upload)
		g.Post("/knowledge/reconcile", h.Reconcile)
	})

	return r
}
