package wire

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/prefcenter/internal/catalog"
	"github.com/starford/prefcenter/internal/session"
	"github.com/starford/prefcenter/internal/storage"
)

type received struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type client struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func setup(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	var h *Handler
	mgr := session.NewManager(storage.NewMemory(), session.ManagerConfig{
		OnEvent: func(e session.Event) { h.Publish(e) },
	})
	h = NewHandler(mgr, nil)

	r := chi.NewRouter()
	r.Get("/api/sessions/{sid}/ws", h.ServeHTTP)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, sid string) *client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + sid + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	c := &client{t: t, ctx: ctx, conn: conn}
	hello := c.next("session")
	var view session.View
	require.NoError(t, json.Unmarshal(hello.Data, &view))
	assert.Equal(t, sid, view.SessionID)
	return c
}

func (c *client) send(typ, id string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, wsjson.Write(c.ctx, c.conn, ClientMessage{Type: typ, ID: id, Data: raw}))
}

// next reads until a message of type typ arrives, skipping relayed events.
func (c *client) next(typ string) received {
	c.t.Helper()
	for {
		var msg received
		require.NoError(c.t, wsjson.Read(c.ctx, c.conn, &msg))
		if msg.Type == typ {
			return msg
		}
	}
}

func TestPing(t *testing.T) {
	_, srv := setup(t)
	c := dial(t, srv, "s1")
	c.send("ping", "p1", nil)
	msg := c.next("pong")
	assert.Equal(t, "p1", msg.RequestID)
}

func TestDropAndEdit(t *testing.T) {
	_, srv := setup(t)
	c := dial(t, srv, "s1")

	c.send("drop", "r1", DropData{TemplateKind: catalog.KindButtonText})
	msg := c.next("item")
	assert.Equal(t, "r1", msg.RequestID)
	var item struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &item))
	require.True(t, strings.HasPrefix(item.ID, catalog.KindButtonText+"-"), item.ID)

	c.send("edit", "r2", EditData{ID: item.ID, Value: "Sign up"})
	msg = c.next("state")
	var view session.View
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, "Sign up", view.Values[item.ID])
}

func TestErrorsCarryCodes(t *testing.T) {
	_, srv := setup(t)
	c := dial(t, srv, "s1")

	cases := []struct {
		typ  string
		data any
		code string
	}{
		{"drop", DropData{TemplateKind: "slider"}, "unknown_template"},
		{"edit", EditData{ID: "missing-1", Value: "x"}, "not_found"},
		{"reorder", ReorderData{From: 0, To: 5}, "out_of_range"},
		{"nonsense", nil, "unknown_type"},
	}
	for _, tc := range cases {
		c.send(tc.typ, tc.typ, tc.data)
		msg := c.next("error")
		var e ErrorData
		require.NoError(t, json.Unmarshal(msg.Data, &e))
		assert.Equal(t, tc.code, e.Code, tc.typ)
		assert.Equal(t, tc.typ, msg.RequestID)
	}

	c.send("delete", "bad", "not an object")
	msg := c.next("error")
	var e ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, "invalid_data", e.Code)
}

func TestPreviewRejectsDrop(t *testing.T) {
	_, srv := setup(t)
	c := dial(t, srv, "s1")

	c.send("toggle_preview", "r1", nil)
	msg := c.next("state")
	var view session.View
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	require.True(t, view.PreviewMode)

	c.send("drop", "r2", DropData{TemplateKind: catalog.KindHeading})
	msg = c.next("error")
	var e ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, "preview_mode", e.Code)
}

func TestSaveReportsValidation(t *testing.T) {
	_, srv := setup(t)
	c := dial(t, srv, "s1")

	c.send("drop", "r1", DropData{TemplateKind: catalog.KindHeading})
	c.next("item")

	c.send("save", "r2", nil)
	notice := c.next("notice")
	var n session.Notice
	require.NoError(t, json.Unmarshal(notice.Data, &n))
	assert.Equal(t, session.MsgRequiredFields, n.Message)

	msg := c.next("validation")
	var errs map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &errs))
	assert.Len(t, errs, 1)
}

func TestEventsRelayToOtherConnections(t *testing.T) {
	_, srv := setup(t)
	editor := dial(t, srv, "s1")
	watcher := dial(t, srv, "s1")

	editor.send("drop", "r1", DropData{PreferenceKind: "email"})
	editor.next("item")

	msg := watcher.next("event")
	var e session.Event
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, session.EventItemAdded, e.Type)
	assert.Equal(t, "s1", e.SessionID)
}
