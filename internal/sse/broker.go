// Package sse implements a Server-Sent Events broker that fans session
// events out to subscribed browsers.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// EventFormChanged is the throttled hint telling clients to refetch a
// session's full state.
const EventFormChanged = "form.changed"

// Event is a session event to broadcast.
type Event struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
}

type client struct {
	ch      chan []byte
	session string // empty receives every session
}

type countReq struct {
	session string
	resp    chan int
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the client set and the per-session throttle
// timestamps. Public methods talk to it through channels.
type Broker struct {
	changeMin time.Duration

	subscribeCh   chan client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends at most one form.changed hint per
// session every changeThrottle.
func NewBroker(changeThrottle time.Duration) *Broker {
	if changeThrottle <= 0 {
		changeThrottle = time.Second
	}

	b := &Broker{
		changeMin:     changeThrottle,
		subscribeCh:   make(chan client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastChange := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, session := range clients {
			if session != "" && session != event.SessionID {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c.session

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)
			if event.Type == EventFormChanged {
				continue
			}
			now := time.Now()
			if now.Sub(lastChange[event.SessionID]) >= b.changeMin {
				lastChange[event.SessionID] = now
				broadcast(Event{SessionID: event.SessionID, Type: EventFormChanged})
			}

		case req := <-b.countReqCh:
			n := 0
			for _, session := range clients {
				if req.session == "" || session == req.session {
					n++
				}
			}
			req.resp <- n
		}
	}
}

// Close stops the event loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client for sessionID and returns its channel. An empty
// sessionID subscribes to every session.
func (b *Broker) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- client{ch: ch, session: sessionID}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of clients watching sessionID, or all
// clients when sessionID is empty.
func (b *Broker) ClientCount(sessionID string) int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- countReq{session: sessionID, resp: resp}:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the clients of its session.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/sessions/{sid}/events).
// Without a session in the route it streams every session.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(chi.URLParam(r, "sid"))
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
