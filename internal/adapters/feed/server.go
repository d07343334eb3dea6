// Package feed serves the store's state and event log to WebSocket clients.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/state"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Message is the frame pushed to clients.
type Message struct {
	Type   string       `json:"type"`
	Change state.Change `json:"change,omitempty"`
	Data   state.View   `json:"data"`
}

type client struct {
	id      string
	subject string
	conn    *websocket.Conn
	send    chan []byte
}

// Server pushes a snapshot on connect and after every store change.
type Server struct {
	store    *state.Store
	auth     *Authenticator
	upgrader websocket.Upgrader
	server   *http.Server
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer creates a feed server listening on addr.
func NewServer(addr string, store *state.Store, auth *Authenticator, m *metrics.Metrics, log zerolog.Logger) *Server {
	s := &Server{
		store: store,
		auth:  auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		metrics: m,
		log:     log.With().Str("component", "feed").Logger(),
		clients: make(map[*client]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/snapshot", s.serveSnapshot)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.server.Addr).Msg("Feed server starting")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Feed server failed")
		}
	}()
}

// Stop closes every client and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		s.removeLocked(c)
	}
	s.mu.Unlock()
	return s.server.Shutdown(ctx)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Run broadcasts a snapshot on every store change until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	changes := make(chan state.Change, 64)
	sub := s.store.SubscribeChanges(changes)
	defer sub.Unsubscribe()

	for {
		select {
		case change := <-changes:
			s.broadcast(change)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) broadcast(change state.Change) {
	payload, err := s.encode("update", change)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode snapshot")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.log.Warn().Str("client", c.id).Msg("Dropping slow feed client")
			s.removeLocked(c)
		}
	}
}

func (s *Server) encode(kind string, change state.Change) ([]byte, error) {
	return json.Marshal(Message{Type: kind, Change: change, Data: s.store.Snapshot()})
}

func (s *Server) authorize(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return "", false
	}
	claims, err := s.auth.ParseToken(token)
	if err != nil {
		s.log.Debug().Err(err).Msg("Rejected feed token")
		return "", false
	}
	return claims.Subject, true
}

func (s *Server) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(r); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	payload, err := s.encode("snapshot", "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to upgrade feed connection")
		return
	}

	c := &client{
		id:      uuid.NewString(),
		subject: subject,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
	initial, err := s.encode("snapshot", "")
	if err != nil {
		_ = conn.Close()
		return
	}
	c.send <- initial

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.metrics.FeedClientConnected()
	s.log.Info().Str("client", c.id).Str("subject", subject).Msg("Feed client connected")

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(c)
}

func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	s.metrics.FeedClientDisconnected()
	s.log.Info().Str("client", c.id).Msg("Feed client disconnected")
}

// readPump discards client frames and detects disconnects.
func (s *Server) readPump(c *client) {
	defer func() {
		s.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
