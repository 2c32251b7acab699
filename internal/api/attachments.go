package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/prefcenter/internal/models"
	"github.com/starford/prefcenter/internal/session"
)

const maxUploadBytes = 10 << 20 // 10 MB

// AssetHandler accepts and serves files chosen for file-typed items, such
// as the logo image. Files live under <root>/<session id>/.
type AssetHandler struct {
	root     string
	sessions *session.Manager
}

// NewAssetHandler creates a handler rooted at the assets directory.
func NewAssetHandler(root string, sessions *session.Manager) *AssetHandler {
	return &AssetHandler{root: root, sessions: sessions}
}

// safeName validates that sid and name are plain names (no path separators,
// no traversal) and returns the absolute path of the file.
func (h *AssetHandler) safeName(sid, name string) (string, error) {
	if !session.ValidID(sid) {
		return "", fmt.Errorf("invalid session: %s", sid)
	}
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsRune(cleaned, '\\') {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	dir := filepath.Join(h.root, sid)
	abs := filepath.Join(dir, cleaned)
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes assets directory")
	}
	return abs, nil
}

// ServeFile handles GET /assets/{sid}/{filename}.
func (h *AssetHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.safeName(chi.URLParam(r, "sid"), chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/sessions/{sid}/items/{id}/file (multipart/form-data,
// field "file"). The stored file's base name becomes the item's value.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	ctrl, err := h.sessions.Get(r.Context(), sid)
	if err != nil {
		writeOpenError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if !isFileItem(ctrl.View().Items, id) {
		writeJSON(w, http.StatusNotFound, errorBody("no file item with that id"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	abs, err := h.safeName(sid, header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create assets dir"))
		return
	}

	dst, err := os.Create(abs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create file"))
		return
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	name := filepath.Base(abs)
	if err := ctrl.Edit(id, name); err != nil {
		writeError(w, "upload", err)
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Filename: name,
		Size:     written,
		URL:      "/assets/" + sid + "/" + name,
	})
}

func isFileItem(items []models.PlacedItem, id string) bool {
	for _, it := range items {
		if it.InstanceID == id {
			return it.ValueType == models.ValueFile
		}
	}
	return false
}
