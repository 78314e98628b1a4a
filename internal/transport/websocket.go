// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tuner/internal/analysis"
	applog "tuner/internal/log"
	"tuner/internal/tuner"
)

const (
	wsWriteWait      = 2 * time.Second
	wsMailboxSize    = 4
	DefaultMaxPoints = 1024
)

// WebSocketTransport broadcasts telemetry as JSON to every client connected
// on /ws and serves the reference pitch table on /pitches.
//
// Emit only places the record in a small drop-oldest mailbox; a single
// goroutine serialises and writes to clients, so slow clients delay other
// clients but never the processing loop.
type WebSocketTransport struct {
	addr      string
	maxPoints int
	pitches   analysis.PitchTable
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	mailbox   *Mailbox[tuner.Telemetry]
	server    *http.Server
	mux       *http.ServeMux
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWebSocketTransport creates the transport and starts its broadcast
// goroutine. Call Start to begin listening on addr. maxPoints caps the
// length of each trace (<= 0 uses DefaultMaxPoints).
func NewWebSocketTransport(addr string, maxPoints int, pitches analysis.PitchTable) *WebSocketTransport {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	wst := &WebSocketTransport{
		addr:      addr,
		maxPoints: maxPoints,
		pitches:   pitches,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Renderers are served from anywhere during development.
			},
		},
		clients: make(map[*websocket.Conn]bool),
		mailbox: NewMailbox[tuner.Telemetry](wsMailboxSize),
		done:    make(chan struct{}),
	}

	wst.mux = http.NewServeMux()
	wst.mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.mux.HandleFunc("/pitches", wst.handlePitches)
	wst.server = &http.Server{
		Addr:              addr,
		Handler:           wst.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler exposes the HTTP routes, e.g. for mounting under httptest.
func (wst *WebSocketTransport) Handler() http.Handler {
	return wst.mux
}

// Start begins serving on the configured address in its own goroutine.
func (wst *WebSocketTransport) Start() {
	go func() {
		applog.Infof("WebSocketTransport: listening on %s (/ws, /pitches)", wst.addr)
		if err := wst.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: server error: %v", err)
		}
	}()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handlePitches(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(wst.pitches); err != nil {
		applog.Warnf("WebSocketTransport: failed to encode pitch table: %v", err)
	}
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: client connected, total: %d", total)

	// Clients only listen; any read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, known := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	conn.Close()
	if known {
		applog.Infof("WebSocketTransport: client disconnected, total: %d", total)
	}
}

func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case <-wst.done:
			return
		case t := <-wst.mailbox.C():
			wst.broadcast(t)
		}
	}
}

func (wst *WebSocketTransport) broadcast(t tuner.Telemetry) {
	t.TimeTrace = tuner.Decimate(t.TimeTrace, wst.maxPoints)
	t.FrequencyTrace = tuner.Decimate(t.FrequencyTrace, wst.maxPoints)
	payload, err := json.Marshal(t)
	if err != nil {
		applog.Errorf("WebSocketTransport: failed to encode telemetry #%d: %v", t.Sequence, err)
		return
	}

	wst.clientsMu.Lock()
	var failed []*websocket.Conn
	for client := range wst.clients {
		client.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			applog.Warnf("WebSocketTransport: error sending to client: %v", err)
			failed = append(failed, client)
		}
	}
	wst.clientsMu.Unlock()

	for _, client := range failed {
		wst.drop(client)
	}
}

// Emit implements tuner.Sink.
func (wst *WebSocketTransport) Emit(t tuner.Telemetry) {
	wst.mailbox.Put(t)
}

// Close stops broadcasting, disconnects clients and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: closing (%d telemetry records dropped)", wst.mailbox.Dropped())
		close(wst.done)
		wst.wg.Wait()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		err = wst.server.Close()
	})
	return err
}

var _ Publisher = (*WebSocketTransport)(nil)
