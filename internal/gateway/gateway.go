// Package gateway exposes the engine to a local UI over HTTP: a websocket
// feed that streams state snapshots and accepts commands, a REST command
// endpoint for one-shot clients, the Prometheus scrape endpoint, and health.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/interloq/interloq/internal/orchestrator"
)

// Engine is the orchestrator surface the gateway drives.
type Engine interface {
	Dispatch(ctx context.Context, cmd orchestrator.Command) error
	Subscribe() (<-chan orchestrator.Snapshot, func())
	Snapshot() orchestrator.Snapshot
}

// knownCommands guards the wire surface; anything else is rejected before it
// reaches the engine.
var knownCommands = map[orchestrator.Command]bool{
	orchestrator.CmdStartSession: true,
	orchestrator.CmdRequestEnd:   true,
	orchestrator.CmdConfirmEnd:   true,
	orchestrator.CmdCancelEnd:    true,
	orchestrator.CmdPause:        true,
	orchestrator.CmdResume:       true,
	orchestrator.CmdStop:         true,
	orchestrator.CmdReset:        true,
}

// Server serves the gateway endpoints.
type Server struct {
	engine Engine
	mux    *http.ServeMux
}

// New builds a gateway over the given engine.
func New(engine Engine) *Server {
	s := &Server{engine: engine, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler serving:
//
//	GET  /ws        — websocket snapshot feed, accepts command frames
//	GET  /state     — current snapshot
//	POST /commands  — one-shot command submission
//	GET  /metrics   — Prometheus scrape endpoint
//	GET  /healthz   — liveness
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("POST /commands", s.handleCommand)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// commandRequest is the JSON body for command submission, shared by the REST
// endpoint and websocket frames.
type commandRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleState serves the current snapshot for clients that poll instead of
// holding a websocket.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.engine.Snapshot())
}

// handleCommand handles POST /commands.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cmd := orchestrator.Command(req.Command)
	if !knownCommands[cmd] {
		http.Error(w, "unknown command: "+req.Command, http.StatusBadRequest)
		return
	}
	if err := s.engine.Dispatch(r.Context(), cmd); err != nil {
		http.Error(w, "dispatch: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(s.engine.Snapshot())
}

// handleWS upgrades to a websocket, streams every published snapshot, and
// reads command frames off the same connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	// The UI is served from an arbitrary local origin.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "gateway closed")

	ctx := r.Context()
	snaps, unsubscribe := s.engine.Subscribe()
	defer unsubscribe()

	readErr := make(chan error, 1)
	go func() { readErr <- s.readCommands(ctx, conn) }()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case err := <-readErr:
			if err != nil {
				slog.Debug("websocket reader closed", "error", err)
			}
			conn.Close(websocket.StatusNormalClosure, "client closed")
			return
		case snap, ok := <-snaps:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "feed closed")
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				slog.Error("snapshot marshal failed", "error", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

// readCommands consumes command frames until the connection drops. Malformed
// or unknown frames are logged and skipped rather than killing the feed.
func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var req commandRequest
		if err := json.Unmarshal(data, &req); err != nil {
			slog.Warn("malformed command frame", "error", err)
			continue
		}
		cmd := orchestrator.Command(req.Command)
		if !knownCommands[cmd] {
			slog.Warn("unknown command frame", "command", req.Command)
			continue
		}
		if err := s.engine.Dispatch(ctx, cmd); err != nil {
			return err
		}
	}
}
