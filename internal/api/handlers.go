package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/catalog"
	"github.com/starford/prefcenter/internal/checksum"
	"github.com/starford/prefcenter/internal/session"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	sessions *session.Manager
}

// NewHandler creates a new Handler.
func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

// controller resolves the {sid} route parameter. It writes the error
// response itself and reports false when the session cannot be opened.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		writeOpenError(w, err)
		return nil, false
	}
	return ctrl, true
}

// writeOpenError answers a failed session open. A bad id is 404; a store
// outage or an aborted load is 503 and the next request retries.
func writeOpenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("unknown session"))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("session load aborted"))
	default:
		writeError(w, "open session", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// Catalog handles GET /api/catalog.
//
//	@Summary		List control and preference templates
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	CatalogResponse
//	@Router			/catalog [get]
func (h *Handler) Catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CatalogResponse{
		Controls:         catalog.Controls(),
		Preferences:      catalog.Registry{}.Preferences(),
		FormWidthOptions: append([]string(nil), catalog.FormWidthOptions...),
	})
}

// ListSessions handles GET /api/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: h.sessions.IDs()})
}

// CreateSession handles POST /api/sessions.
//
//	@Summary		Start a new session with a generated id
//	@Tags			sessions
//	@Produce		json
//	@Success		201	{object}	session.View
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.sessions.Create(r.Context())
	if err != nil {
		writeError(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, ctrl.View())
}

// GetState handles GET /api/sessions/{sid}.
//
//	@Summary		Get the full state of a session
//	@Tags			sessions
//	@Produce		json
//	@Param			sid				path		string	true	"Session id"
//	@Param			If-None-Match	header		string	false	"ETag of a cached state"
//	@Success		200				{object}	session.View
//	@Success		304				"Not modified"
//	@Security		BearerAuth
//	@Router			/sessions/{sid} [get]
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	body, err := json.Marshal(ctrl.View())
	if err != nil {
		writeError(w, "get state", err)
		return
	}
	etag := checksum.ETag(body)
	w.Header().Set("ETag", etag)
	if checksum.Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Render handles GET /api/sessions/{sid}/render.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	view := ctrl.View()
	writeJSON(w, http.StatusOK, RenderResponse{
		Title:  view.Title,
		Items:  ctrl.RenderOrder(),
		Values: view.Values,
		Styles: view.Styles,
	})
}

// DropItem handles POST /api/sessions/{sid}/items.
//
//	@Summary		Place a new item from a template
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string		true	"Session id"
//	@Param			body	body		DropRequest	true	"Template to place"
//	@Success		201		{object}	models.PlacedItem
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/items [post]
func (h *Handler) DropItem(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req DropRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := ctrl.Drop(session.Intent{TemplateKind: req.TemplateKind, PreferenceKind: req.PreferenceKind})
	if err != nil {
		writeError(w, "drop item", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// DeleteItem handles DELETE /api/sessions/{sid}/items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderItems handles POST /api/sessions/{sid}/items/reorder.
func (h *Handler) ReorderItems(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req ReorderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ctrl.Reorder(req.From, req.To); err != nil {
		writeError(w, "reorder items", err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

// SetValue handles PUT /api/sessions/{sid}/values/{id}.
func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req ValueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := ctrl.Edit(chi.URLParam(r, "id"), req.Value); err != nil {
		writeError(w, "set value", err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

// SetStyle handles PUT /api/sessions/{sid}/styles/{key}.
func (h *Handler) SetStyle(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req ValueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	value, isString := req.Value.(string)
	if !isString {
		writeJSON(w, http.StatusBadRequest, errorBody("style value must be a string"))
		return
	}
	if err := ctrl.SetStyle(chi.URLParam(r, "key"), value); err != nil {
		writeError(w, "set style", err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

// TogglePreference handles POST /api/sessions/{sid}/preferences/{flag}/toggle.
func (h *Handler) TogglePreference(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	on, err := ctrl.TogglePreference(chi.URLParam(r, "flag"))
	if err != nil {
		writeError(w, "toggle preference", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{On: on})
}

// TogglePreview handles POST /api/sessions/{sid}/preview/toggle.
func (h *Handler) TogglePreview(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{On: ctrl.TogglePreview()})
}

// Validate handles POST /api/sessions/{sid}/validate.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	res := ctrl.Validate()
	writeJSON(w, http.StatusOK, ValidationResponse{OK: res.OK(), Errors: res.Errors})
}

// Save handles POST /api/sessions/{sid}/save.
//
//	@Summary		Validate and persist the form configuration
//	@Tags			sessions
//	@Produce		json
//	@Param			sid	path		string	true	"Session id"
//	@Success		200	{object}	NoticeResponse
//	@Failure		422	{object}	ValidationResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	notice, err := ctrl.Save(r.Context())
	var verr *session.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Errors: verr.Errors, Notice: &notice})
		return
	}
	if err != nil {
		writeError(w, "save", err)
		return
	}
	writeJSON(w, http.StatusOK, NoticeResponse{Notice: notice, State: ctrl.View()})
}

// Reset handles POST /api/sessions/{sid}/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	notice, err := ctrl.Reset(r.Context())
	if err != nil {
		writeError(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, NoticeResponse{Notice: notice, State: ctrl.View()})
}

// Export handles GET /api/sessions/{sid}/export.
//
//	@Summary		Download the configuration as a JSON document
//	@Tags			sessions
//	@Produce		json
//	@Param			sid	path	string	true	"Session id"
//	@Success		200	"Export document"
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	data, filename, err := ctrl.Export()
	if err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("ETag", checksum.ETag(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import handles POST /api/sessions/{sid}/import. The document is either the
// raw request body or the "file" field of a multipart form.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes+64<<10)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
			return
		}
		defer file.Close()
		src = file
	}

	notice, err := ctrl.Import(r.Context(), src)
	if err != nil {
		if notice.Message != "" {
			slog.Warn("import rejected", slog.String("session", ctrl.ID()), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, NoticeResponse{Notice: notice, State: ctrl.View()})
			return
		}
		writeError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, NoticeResponse{Notice: notice, State: ctrl.View()})
}
