// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Event type names.
const (
	TypeCardCreated     = "card.created"
	TypeCardUpdated     = "card.updated"
	TypeCardDeleted     = "card.deleted"
	TypeSnapshotUpdated = "snapshot.updated"
)

type cardEventReq struct {
	kind string
	id   string
	path string
}

// SnapshotInfo is the payload of snapshot.updated.
type SnapshotInfo struct {
	Generation uint64 `json:"generation"`
	Cards      int    `json:"cards"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, snapshot throttle state). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	snapshotMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	cardEventCh   chan cardEventReq
	snapshotCh    chan SnapshotInfo
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one snapshot.updated per
// throttle interval. A snapshot arriving inside the window is held and
// sent when the window ends; only the newest one is kept.
func NewBroker(snapshotThrottle time.Duration) *Broker {
	if snapshotThrottle <= 0 {
		snapshotThrottle = 2 * time.Second
	}

	b := &Broker{
		snapshotMin:   snapshotThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		cardEventCh:   make(chan cardEventReq, 256),
		snapshotCh:    make(chan SnapshotInfo, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastSnapshot time.Time
		pending      *SnapshotInfo
		flushTimer   *time.Timer
		flushCh      <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	sendSnapshot := func(info SnapshotInfo) {
		lastSnapshot = time.Now()
		broadcast(Event{Type: TypeSnapshotUpdated, Data: info})
	}

	for {
		select {
		case <-b.stopCh:
			if flushTimer != nil {
				flushTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.cardEventCh:
			data := map[string]string{"id": req.id, "path": req.path}
			switch req.kind {
			case "created":
				broadcast(Event{Type: TypeCardCreated, Data: data})
			case "updated":
				broadcast(Event{Type: TypeCardUpdated, Data: data})
			case "deleted":
				broadcast(Event{Type: TypeCardDeleted, Data: data})
			}

		case info := <-b.snapshotCh:
			wait := b.snapshotMin - time.Since(lastSnapshot)
			if wait <= 0 && pending == nil {
				sendSnapshot(info)
				continue
			}
			if pending == nil || info.Generation > pending.Generation {
				pending = &info
			}
			if flushCh == nil {
				if wait <= 0 {
					wait = time.Millisecond
				}
				flushTimer = time.NewTimer(wait)
				flushCh = flushTimer.C
			}

		case <-flushCh:
			flushCh, flushTimer = nil, nil
			if pending != nil {
				sendSnapshot(*pending)
				pending = nil
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishCardEvent publishes a card change. kind is one of "created",
// "updated", "deleted".
func (b *Broker) PublishCardEvent(kind, id, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.cardEventCh <- cardEventReq{kind: kind, id: id, path: path}:
	case <-b.stopped:
	}
}

// PublishSnapshot announces a new stable snapshot, subject to throttling.
func (b *Broker) PublishSnapshot(info SnapshotInfo) {
	if b.closed.Load() {
		return
	}
	select {
	case b.snapshotCh <- info:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
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

	ch := b.Subscribe()
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
