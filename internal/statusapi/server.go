// Package statusapi exposes a read-only HTTP introspection surface over a
// running replica: sequence counters, neighbour count, and buffer/ack
// diagnostics. It never exposes crdt_state's value or a mutation path —
// that is explicitly out of scope (spec §1) — beyond the ops
// add-neighbour endpoint, which mirrors the engine's own add_neighbour
// call.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rechain/delta-crdt/internal/replica"
)

// Server is a thin gorilla/mux wrapper around a *replica.Replica.
type Server struct {
	replica    *replica.Replica
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
}

// NewServer builds a status server for r.
func NewServer(r *replica.Replica, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		replica: r,
		logger:  logger.Named("statusapi"),
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/neighbours", s.handleAddNeighbour).Methods("POST")
}

// Start begins serving on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	s.logger.Info("status server starting", zap.String("address", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]interface{}{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, err := s.replica.Status(ctx)
	if err != nil {
		s.error(w, err, http.StatusServiceUnavailable)
		return
	}
	s.respond(w, map[string]interface{}{
		"node_id":                 status.NodeID,
		"sequence_number":         status.SequenceNumber,
		"shipped_sequence_number": status.ShippedSequenceNumber,
		"neighbour_count":         status.NeighbourCount,
		"buffer_size":             status.BufferSize,
		"ack_map":                 status.AckMap,
	}, http.StatusOK)
}

func (s *Server) handleAddNeighbour(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.error(w, err, http.StatusBadRequest)
		return
	}
	if body.Endpoint == "" {
		s.error(w, errEndpointRequired, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.replica.AddNeighbour(ctx, replica.Endpoint(body.Endpoint)); err != nil {
		s.error(w, err, http.StatusInternalServerError)
		return
	}
	s.respond(w, map[string]string{"status": "added"}, http.StatusOK)
}

func (s *Server) respond(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Warn("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) error(w http.ResponseWriter, err error, status int) {
	s.respond(w, map[string]string{"error": err.Error()}, status)
}
