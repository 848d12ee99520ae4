package core

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"DriveBridge/internal/model"
	"DriveBridge/internal/store"
	"DriveBridge/internal/util"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server exposes the websocket control endpoint and small JSON APIs for
// current status and recorded drift samples.
type Server struct {
	Addr string

	hub      *Hub
	gateway  *Gateway
	poller   *Poller
	driftLog *store.DriftLog

	server *http.Server
}

// NewServer wires the HTTP surface over the given components.
func NewServer(addr string, hub *Hub, gateway *Gateway, poller *Poller, driftLog *store.DriftLog) *Server {
	return &Server{Addr: addr, hub: hub, gateway: gateway, poller: poller, driftLog: driftLog}
}

// Start launches the HTTP server for the ws and api endpoints. This call
// blocks until the server stops or fails.
func (s *Server) Start() {
	s.server = &http.Server{Addr: s.Addr, Handler: s.Handler()}
	util.Info("bridge server listening on %s", s.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Error("server: %v", err)
	}
}

// Stop shuts down the HTTP server. Hijacked websocket connections are closed
// separately via the hub.
func (s *Server) Stop() {
	if s.server != nil {
		_ = s.server.Close()
	}
}

// handleWS upgrades the connection, registers a session and runs its message
// loop. The handler goroutine is the session's reader.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sess := s.hub.Register(conn)
	sess.SendJSON(model.NewResponse("Connected to motor controller bridge"))
	s.gateway.HandleSession(sess)
}

// handleStatus returns the latest status snapshot as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.poller.Snapshot())
}

// handleDrift returns up to n recent drift samples (default 50).
func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	if s.driftLog == nil {
		http.Error(w, "drift store disabled", http.StatusNotFound)
		return
	}
	n := 50
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = v
	}
	samples, err := s.driftLog.Recent(n)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if samples == nil {
		samples = []model.DriftSample{}
	}
	writeJSON(w, samples)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Error("server: encode response: %v", err)
	}
}

// Handler builds the route mux. Exposed so tests can serve it over httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/drift", s.handleDrift)
	return mux
}
