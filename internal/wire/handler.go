package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/session"
)

// outboxSize bounds the relayed events queued per connection.
const outboxSize = 64

type conn struct {
	session string
	outbox  chan ServerMessage
}

// Handler manages WebSocket connections that edit a session.
type Handler struct {
	sessions *session.Manager
	logger   *slog.Logger

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHandler creates a WebSocket handler over sessions.
func NewHandler(sessions *session.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		logger:   logger,
		conns:    make(map[*conn]struct{}),
	}
}

// Publish relays a session event to every connection on that session.
// Slow connections drop events rather than block the publisher.
func (h *Handler) Publish(e session.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if c.session != e.SessionID {
			continue
		}
		select {
		case c.outbox <- ServerMessage{Type: "event", Data: e}:
		default:
		}
	}
}

// ConnCount returns the number of open connections.
func (h *Handler) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Handler) register(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) unregister(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// ServeHTTP upgrades to WebSocket and runs the message loop for the session
// named by the {sid} route parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	if sid == "" {
		sid = session.DefaultSessionID
	}
	ctrl, err := h.sessions.Get(r.Context(), sid)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, apperr.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("wire: websocket accept", slog.String("error", err.Error()))
		return
	}
	defer ws.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{session: sid, outbox: make(chan ServerMessage, outboxSize)}
	h.register(c)
	defer h.unregister(c)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-c.outbox:
				h.send(ctx, ws, msg)
			}
		}
	}()

	h.send(ctx, ws, ServerMessage{Type: "session", Data: ctrl.View()})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				h.logger.Debug("wire: connection closed", slog.String("session", sid), slog.Int("status", int(status)))
			}
			return
		}
		h.dispatch(ctx, ws, ctrl, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, ws *websocket.Conn, ctrl *session.Controller, msg ClientMessage) {
	switch msg.Type {
	case "ping":
		h.send(ctx, ws, ServerMessage{Type: "pong", RequestID: msg.ID})

	case "state":
		h.sendState(ctx, ws, ctrl, msg.ID)

	case "drop":
		var data DropData
		if !h.decode(ctx, ws, msg, &data) {
			return
		}
		item, err := ctrl.Drop(session.Intent{TemplateKind: data.TemplateKind, PreferenceKind: data.PreferenceKind})
		if err != nil {
			h.sendErr(ctx, ws, msg.ID, err)
			return
		}
		h.send(ctx, ws, ServerMessage{Type: "item", RequestID: msg.ID, Data: item})

	case "delete":
		var data ItemData
		if !h.decode(ctx, ws, msg, &data) {
			return
		}
		h.reply(ctx, ws, ctrl, msg.ID, ctrl.Delete(data.ID))

	case "reorder":
		var data ReorderData
		if !h.decode(ctx, ws, msg, &data) {
			return
		}
		h.reply(ctx, ws, ctrl, msg.ID, ctrl.Reorder(data.From, data.To))

	case "edit":
		var data EditData
		if !h.decode(ctx, ws, msg, &data) {
			return
		}
		h.reply(ctx, ws, ctrl, msg.ID, ctrl.Edit(data.ID, data.Value))

	case "set_style":
		var data StyleData
		if !h.decode(ctx, ws, msg, &data) {
			return
		}
		h.reply(ctx, ws, ctrl, msg.ID, ctrl.SetStyle(data.Key, data.Value))

	case "toggle_preference":
		var data PreferenceData
		if !h.decode(ctx, ws, msg, &data) {
			return
		}
		_, err := ctrl.TogglePreference(data.Flag)
		h.reply(ctx, ws, ctrl, msg.ID, err)

	case "toggle_preview":
		ctrl.TogglePreview()
		h.sendState(ctx, ws, ctrl, msg.ID)

	case "validate":
		res := ctrl.Validate()
		h.send(ctx, ws, ServerMessage{Type: "validation", RequestID: msg.ID, Data: res.Errors})

	case "save":
		notice, err := ctrl.Save(ctx)
		h.sendNotice(ctx, ws, msg.ID, notice)
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			h.send(ctx, ws, ServerMessage{Type: "validation", RequestID: msg.ID, Data: verr.Errors})
			return
		}
		h.reply(ctx, ws, ctrl, msg.ID, err)

	case "reset":
		notice, err := ctrl.Reset(ctx)
		h.sendNotice(ctx, ws, msg.ID, notice)
		h.reply(ctx, ws, ctrl, msg.ID, err)

	default:
		h.sendError(ctx, ws, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (h *Handler) decode(ctx context.Context, ws *websocket.Conn, msg ClientMessage, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		h.sendError(ctx, ws, msg.ID, "invalid_data", fmt.Sprintf("invalid %s data", msg.Type))
		return false
	}
	return true
}

// reply sends the new state on success and an error otherwise.
func (h *Handler) reply(ctx context.Context, ws *websocket.Conn, ctrl *session.Controller, requestID string, err error) {
	if err != nil {
		h.sendErr(ctx, ws, requestID, err)
		return
	}
	h.sendState(ctx, ws, ctrl, requestID)
}

func (h *Handler) sendState(ctx context.Context, ws *websocket.Conn, ctrl *session.Controller, requestID string) {
	h.send(ctx, ws, ServerMessage{Type: "state", RequestID: requestID, Data: ctrl.View()})
}

func (h *Handler) sendNotice(ctx context.Context, ws *websocket.Conn, requestID string, n session.Notice) {
	if n.Message == "" {
		return
	}
	h.send(ctx, ws, ServerMessage{Type: "notice", RequestID: requestID, Data: n})
}

func (h *Handler) send(ctx context.Context, ws *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, ws, msg); err != nil {
		h.logger.Debug("wire: write error", slog.String("error", err.Error()))
	}
}

func (h *Handler) sendErr(ctx context.Context, ws *websocket.Conn, requestID string, err error) {
	h.sendError(ctx, ws, requestID, errorCode(err), err.Error())
}

func (h *Handler) sendError(ctx context.Context, ws *websocket.Conn, requestID, code, message string) {
	h.send(ctx, ws, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, apperr.ErrPreviewMode):
		return "preview_mode"
	case errors.Is(err, apperr.ErrUnknownTemplate):
		return "unknown_template"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrIndexOutOfRange):
		return "out_of_range"
	case errors.Is(err, apperr.ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}
