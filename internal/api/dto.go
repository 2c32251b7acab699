package api

import (
	"github.com/starford/prefcenter/internal/models"
	"github.com/starford/prefcenter/internal/session"
)

// DropRequest is the request body for placing an item.
type DropRequest struct {
	TemplateKind   string                `json:"templateKind,omitempty" example:"heading"`
	PreferenceKind models.PreferenceKind `json:"preferenceKind,omitempty" example:"email"`
}

// ReorderRequest is the request body for moving an item.
type ReorderRequest struct {
	From int `json:"from" example:"0"`
	To   int `json:"to" example:"2"`
}

// ValueRequest is the request body for setting an item value or a style.
type ValueRequest struct {
	Value any `json:"value" example:"#ffffff"`
}

// CatalogResponse lists the placeable templates.
type CatalogResponse struct {
	Controls         []models.ItemTemplate `json:"controls" validate:"required"`
	Preferences      []models.ItemTemplate `json:"preferences" validate:"required"`
	FormWidthOptions []string              `json:"formWidthOptions" validate:"required"`
}

// SessionListResponse lists the open sessions.
type SessionListResponse struct {
	Sessions []string `json:"sessions" validate:"required"`
}

// RenderResponse is what a renderer needs to draw the form.
type RenderResponse struct {
	Title  string              `json:"title"`
	Items  []models.PlacedItem `json:"formItems" validate:"required"`
	Values map[string]any      `json:"formValues" validate:"required"`
	Styles map[string]string   `json:"formStyles" validate:"required"`
}

// NoticeResponse wraps a controller notice with the resulting state.
type NoticeResponse struct {
	Notice session.Notice `json:"notice"`
	State  session.View   `json:"state"`
}

// ValidationResponse reports validation failures.
type ValidationResponse struct {
	OK     bool              `json:"ok"`
	Errors map[string]string `json:"errors"`
	Notice *session.Notice   `json:"notice,omitempty"`
}

// ToggleResponse reports the new state of a toggled flag.
type ToggleResponse struct {
	On bool `json:"on"`
}

// UploadResponse is returned after a successful logo upload.
type UploadResponse struct {
	Filename string `json:"filename" example:"logo.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/assets/default/logo.png" validate:"required"`
}
