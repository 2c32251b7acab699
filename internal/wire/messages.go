// Package wire defines the WebSocket protocol for editing a session live.
package wire

import (
	"encoding/json"

	"github.com/starford/prefcenter/internal/models"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "drop", "delete", "reorder", "edit", "set_style", "toggle_preview", "toggle_preference", "validate", "save", "reset", "state", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// DropData is the payload for "drop" messages.
type DropData struct {
	TemplateKind   string                `json:"templateKind,omitempty"`
	PreferenceKind models.PreferenceKind `json:"preferenceKind,omitempty"`
}

// ItemData names an item, for "delete".
type ItemData struct {
	ID string `json:"id"`
}

// ReorderData is the payload for "reorder" messages.
type ReorderData struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// EditData is the payload for "edit" messages.
type EditData struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

// StyleData is the payload for "set_style" messages.
type StyleData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PreferenceData is the payload for "toggle_preference" messages.
type PreferenceData struct {
	Flag string `json:"flag"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "state", "item", "validation", "notice", "event", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// ErrorData describes a failed request.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
