package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/prefcenter/internal/session"
)

// RouterConfig holds the collaborators mounted by NewRouter.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /sessions/{sid}/events and
	// GET /events inside the auth group.
	Events http.Handler
	// Intents, if non-nil, is mounted at GET /sessions/{sid}/ws.
	Intents http.Handler
	// Assets handles file uploads for file-typed items. Optional.
	Assets *AssetHandler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(sessions *session.Manager, cfg RouterConfig) chi.Router {
	h := NewHandler(sessions)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Get("/catalog", h.Catalog)

	r.Get("/sessions", h.ListSessions)
	r.Post("/sessions", h.CreateSession)

	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Get("/", h.GetState)
		r.Get("/render", h.Render)

		// Items.
		r.Post("/items", h.DropItem)
		r.Post("/items/reorder", h.ReorderItems)
		r.Delete("/items/{id}", h.DeleteItem)
		if cfg.Assets != nil {
			r.Post("/items/{id}/file", cfg.Assets.Upload)
		}
		r.Put("/values/{id}", h.SetValue)

		// Styles and preference flags.
		r.Put("/styles/{key}", h.SetStyle)
		r.Post("/preferences/{flag}/toggle", h.TogglePreference)
		r.Post("/preview/toggle", h.TogglePreview)

		// Lifecycle.
		r.Post("/validate", h.Validate)
		r.Post("/save", h.Save)
		r.Post("/reset", h.Reset)
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)

		if cfg.Events != nil {
			r.Get("/events", cfg.Events.ServeHTTP)
		}
		if cfg.Intents != nil {
			r.Get("/ws", cfg.Intents.ServeHTTP)
		}
	})

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
