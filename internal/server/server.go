// Package server exposes sync over HTTP and broadcasts sync events to
// WebSocket clients.
//
// Endpoints:
//
//	POST /api/sync   - run one sync pass, returns its stats
//	GET  /api/check  - read-only reconciliation preview
//	GET  /api/status - store counts and the last sync's stats
//	GET  /ws         - WebSocket stream of sync events
//	GET  /health     - liveness probe
//
// Overlapping syncs against the same store are rejected with 409: exactly
// one pass runs at a time.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/steveyegge/taskmirror/internal/remote"
	"github.com/steveyegge/taskmirror/internal/store"
	tasksync "github.com/steveyegge/taskmirror/internal/sync"
)

// MessageType defines the type of broadcast message.
type MessageType string

const (
	// MessageTypeSyncComplete indicates a sync pass finished.
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeSyncFailed indicates a sync pass aborted.
	MessageTypeSyncFailed MessageType = "sync_failed"
)

// Message is a broadcast envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: ":8080").
	Addr string

	// Logger for server activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:   ":8080",
		Logger: log.Default(),
	}
}

// Server manages the HTTP surface and WebSocket broadcasting.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	syncer *tasksync.Syncer
	store  tasksync.Store

	inFlight atomic.Bool

	lastStats   *tasksync.Stats
	lastStatsMu sync.RWMutex

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex
	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// New creates a server around an existing syncer and store.
func New(syncer *tasksync.Syncer, st tasksync.Store, cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      cfg.Addr,
		syncer:    syncer,
		store:     st,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    cfg.Logger,
	}
}

// Start begins serving. It returns once the listener is bound; requests
// are handled in the background until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sync", s.handleSync)
	mux.HandleFunc("/api/check", s.handleCheck)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // sync passes can be slow on large accounts
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Server stopped")
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// handleSync runs one sync pass. Rejects overlapping syncs with 409.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		http.Error(w, "a sync is already in flight", http.StatusConflict)
		return
	}
	defer s.inFlight.Store(false)

	stats, err := s.syncer.Sync(r.Context())
	if err != nil {
		s.logger.Printf("Sync failed: %v", err)
		s.broadcastEvent(MessageTypeSyncFailed, map[string]string{"error": err.Error()})
		http.Error(w, err.Error(), syncErrorStatus(err))
		return
	}

	s.setLastStats(stats)
	s.broadcastEvent(MessageTypeSyncComplete, stats)
	writeJSON(w, http.StatusOK, stats)
}

// handleCheck returns the reconciliation plan summary without writing.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plan, err := s.syncer.CheckOnly(r.Context())
	if err != nil {
		http.Error(w, err.Error(), syncErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, plan.Summary)
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	TotalTasks     int             `json:"total_tasks"`
	CompletedTasks int             `json:"completed_tasks"`
	SyncInFlight   bool            `json:"sync_in_flight"`
	LastSync       *tasksync.Stats `json:"last_sync,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	total, err := s.store.Count(r.Context(), store.CountFilter{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	completed := true
	done, err := s.store.Count(r.Context(), store.CountFilter{Completed: &completed})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		TotalTasks:     total,
		CompletedTasks: done,
		SyncInFlight:   s.inFlight.Load(),
		LastSync:       s.getLastStats(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	go s.readLoop(conn)
}

// readLoop keeps the connection alive and handles client disconnects.
// Client messages are not processed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// broadcastEvent marshals data and enqueues a broadcast message.
func (s *Server) broadcastEvent(typ MessageType, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal %s event: %v", typ, err)
		return
	}

	msg := Message{Type: typ, Timestamp: time.Now(), Data: payload}
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop delivers queued messages to all clients.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) setLastStats(stats tasksync.Stats) {
	s.lastStatsMu.Lock()
	s.lastStats = &stats
	s.lastStatsMu.Unlock()
}

func (s *Server) getLastStats() *tasksync.Stats {
	s.lastStatsMu.RLock()
	defer s.lastStatsMu.RUnlock()
	return s.lastStats
}

// syncErrorStatus maps the error taxonomy to HTTP status codes.
func syncErrorStatus(err error) int {
	switch {
	case errors.Is(err, remote.ErrAuth):
		return http.StatusBadGateway
	case errors.Is(err, remote.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrRead), errors.Is(err, store.ErrWrite):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
