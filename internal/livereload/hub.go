// Package livereload pushes reload events to browsers and other listeners
// after each compile.
package livereload

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/elmtasks/internal/logfields"
	"git.home.luguber.info/inful/elmtasks/internal/pipeline"
)

const heartbeatInterval = 30 * time.Second

// Event is the payload of one reload notification.
type Event struct {
	Build   string `json:"build"`
	OK      bool   `json:"ok"`
	Hash    string `json:"hash,omitempty"`
	Message string `json:"message,omitempty"`
}

// EventFor converts a build result into its reload event.
func EventFor(res pipeline.BuildResult) Event {
	return Event{Build: res.ID, OK: res.OK(), Hash: res.Hash, Message: res.Message}
}

// Hub manages SSE clients for reload broadcasts.
type Hub struct {
	mu      sync.RWMutex
	nextID  int
	clients map[int]*client
	closed  bool
	last    []byte
	logger  *slog.Logger
}

type client struct {
	id   int
	ch   chan []byte
	done chan struct{}
}

// NewHub returns a hub with no clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: map[int]*client{}, logger: logger}
}

// NotifyReload broadcasts res to every connected client. Every build is
// sent, including failures and rebuilds that produced identical output.
func (h *Hub) NotifyReload(_ context.Context, res pipeline.BuildResult) {
	data, err := json.Marshal(EventFor(res))
	if err != nil {
		h.logger.Error("livereload encode", logfields.Error(err))
		return
	}
	h.Broadcast(data)
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := &client{ch: make(chan []byte, 8), done: make(chan struct{})}
	h.mu.Lock()
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	current := h.last
	h.mu.Unlock()
	defer h.removeClient(c.id)

	bw := bufio.NewWriter(w)
	write := func(chunk string) bool {
		if _, err := bw.WriteString(chunk); err != nil {
			h.logger.Debug("livereload write", logfields.Error(err))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	// The last event lets a fresh page learn the current build without reloading.
	if !write(": connected\n\n") {
		return
	}
	if current != nil && !write("data: "+string(current)+"\n\n") {
		return
	}

	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if !write(": ping\n\n") {
				return
			}
		case data := <-c.ch:
			if !write("data: " + string(data) + "\n\n") {
				return
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Broadcast sends data to all clients, dropping clients whose buffers are full.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.last = data
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- data:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.logger.Debug("livereload broadcast", "clients", len(snapshot), "dropped", dropped)
}

// Shutdown closes all clients and prevents future broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}
