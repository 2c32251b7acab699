package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/prefcenter/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a controller error to a status code and body.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrUnknownTemplate):
		writeJSON(w, http.StatusBadRequest, errorBody("unknown template"))
	case errors.Is(err, apperr.ErrIndexOutOfRange):
		writeJSON(w, http.StatusBadRequest, errorBody("index out of range"))
	case errors.Is(err, apperr.ErrInvalidDocument):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid document"))
	case errors.Is(err, apperr.ErrPreviewMode):
		writeJSON(w, http.StatusConflict, errorBody("not allowed in preview mode"))
	case errors.Is(err, apperr.ErrStorageUnavailable):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorBody("storage unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
