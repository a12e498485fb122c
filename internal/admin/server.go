// Package admin exposes the Local channel control surface over HTTP: the
// same channel listing and optimize-away management action as the CLI,
// for a host process with no interactive console.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sebas/localswitch/internal/local"
	"github.com/sebas/localswitch/internal/logger"
)

// Server is the HTTP control surface for a Driver.
type Server struct {
	addr       string
	httpServer *http.Server
	driver     *local.Driver
	log        *slog.Logger
}

// NewServer builds the admin HTTP server bound to addr and backed by
// driver. Routes mirror the CLI and management action 1:1, plus a
// request endpoint standing in for "the switch calls request(dest)" in a
// host process that has no SIP/PBX front end of its own to trigger it:
//
//	GET  /channels       -> `local show channels`
//	POST /optimize-away  -> `LocalOptimizeAway` management action
//	POST /request        -> request() a new pair, returning A's name
func NewServer(addr string, driver *local.Driver) *Server {
	s := &Server{
		addr:   addr,
		driver: driver,
		log:    slog.Default().With("component", "admin"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/channels", s.handleChannels)
	mux.HandleFunc("/optimize-away", s.handleOptimizeAway)
	mux.HandleFunc("/request", s.handleRequest)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler exposes the underlying mux so tests can drive it through
// httptest without binding a real port.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests in the background.
func (s *Server) Start() error {
	s.log.Info("starting control surface", "addr", s.addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("control surface stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type channelsResponse struct {
	Channels []string `json:"channels"`
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, channelsResponse{Channels: s.driver.CLIShowChannels()})
}

type optimizeAwayRequest struct {
	Channel string `json:"channel"`
}

type optimizeAwayResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleOptimizeAway(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req optimizeAwayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Channel != "" && !strings.HasPrefix(req.Channel, "Local/") {
		s.log.Warn("optimize-away request failed", "channel", req.Channel, "error", local.ErrNotLocalChannel)
		http.Error(w, local.ErrNotLocalChannel.Error(), http.StatusNotFound)
		return
	}

	if err := s.driver.OptimizeAway(req.Channel); err != nil {
		s.log.Warn("optimize-away request failed", "channel", req.Channel, "error", err)
		status := http.StatusBadRequest
		if errors.Is(err, local.ErrUnknownChannel) || errors.Is(err, local.ErrNotLocalChannel) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, optimizeAwayResponse{Message: "Queued channel to be optimized away"})
}

type requestRequest struct {
	Destination string `json:"destination"`
	Format      uint64 `json:"format,omitempty"`
}

type requestResponse struct {
	AChannel string `json:"a_channel"`
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req requestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ast, err := s.driver.Request(r.Context(), req.Destination, req.Format)
	if err != nil {
		s.log.Warn("request failed", "destination", req.Destination, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, requestResponse{AChannel: ast.Name()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"time":      time.Now().Format(time.RFC3339),
		"log_level": logger.GetLevel(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
