// Package inspector gives the four async-call hooks spec.md §6 names
// ("didScheduleAsyncCall", "willDispatchAsyncCall", "didDispatchAsyncCall",
// "didCancelAsyncCall") a concrete transport: a WebSocket endpoint that
// relays each event as a newline-delimited JSON frame to any connected
// debugger-like client. It does not implement the Chrome DevTools
// Protocol's Debugger/Runtime domains (spec.md's Non-goals) — only this
// narrow notification stream.
package inspector

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// EventKind discriminates the four hook events.
type EventKind string

const (
	EventScheduled    EventKind = "didScheduleAsyncCall"
	EventWillDispatch EventKind = "willDispatchAsyncCall"
	EventDidDispatch  EventKind = "didDispatchAsyncCall"
	EventCancelled    EventKind = "didCancelAsyncCall"
)

// Event is one frame sent to every connected client.
type Event struct {
	Kind    EventKind `json:"kind"`
	AsyncID int64     `json:"asyncId"`
}

// Bridge fans out timer lifecycle events to any number of connected
// WebSocket clients. The zero value is ready to use.
type Bridge struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

// ServeHTTP upgrades the connection and streams events to it until the
// client disconnects or the request context is cancelled, matching the
// teacher's websocket.go accept/read/write-loop shape.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("inspector: accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bridge closing")

	ch := b.register(conn)
	defer b.unregister(conn)

	// CloseRead reads (and discards) incoming frames so a client close is
	// noticed; its context is cancelled once the connection closes.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := b.write(ctx, conn, ev); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) register(conn *websocket.Conn) chan Event {
	ch := make(chan Event, 256)
	b.mu.Lock()
	if b.clients == nil {
		b.clients = make(map[*websocket.Conn]chan Event)
	}
	b.clients[conn] = ch
	b.mu.Unlock()
	return ch
}

func (b *Bridge) unregister(conn *websocket.Conn) {
	b.mu.Lock()
	if ch, ok := b.clients[conn]; ok {
		close(ch)
		delete(b.clients, conn)
	}
	b.mu.Unlock()
}

func (b *Bridge) write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}

// broadcast pushes ev to every currently connected client, dropping it
// for any client whose buffer is full rather than blocking the timer
// core on a slow debugger.
func (b *Bridge) broadcast(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			log.Printf("inspector: dropping event for a slow client: %v", ev.Kind)
		}
	}
}

// ScheduleAsync, WillDispatch, DidDispatch and CancelAsync implement the
// four hooks spec.md §6 describes, satisfying the Host-facing subset
// internal/timerobj.Host needs from an inspector collaborator.
func (b *Bridge) ScheduleAsync(asyncID int64) { b.broadcast(Event{Kind: EventScheduled, AsyncID: asyncID}) }
func (b *Bridge) WillDispatch(asyncID int64)  { b.broadcast(Event{Kind: EventWillDispatch, AsyncID: asyncID}) }
func (b *Bridge) DidDispatch(asyncID int64)   { b.broadcast(Event{Kind: EventDidDispatch, AsyncID: asyncID}) }
func (b *Bridge) CancelAsync(asyncID int64)   { b.broadcast(Event{Kind: EventCancelled, AsyncID: asyncID}) }

// ClientCount reports how many clients are currently connected, for
// diagnostics/tests.
func (b *Bridge) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
