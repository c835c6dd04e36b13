// Package server implements the submission/observer surface: a thin
// request-to-enqueue call and a bidirectional text channel over WebSocket
// that drives the log fabric. This is deliberately the thinnest layer in
// the system — everything it does delegates straight into the queue or the
// log fabric.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/tasktrace/internal/common"
	"github.com/bobmcallan/tasktrace/internal/logfabric"
	"github.com/bobmcallan/tasktrace/internal/queue"
)

// Server wraps the HTTP server exposing submit-job, observe-log and
// prune-archives.
type Server struct {
	httpServer *http.Server
	queue      queue.Queue
	streamer   logfabric.ReadStreamer
	archives   *logfabric.FileHandler
	logger     *common.Logger
}

// NewServer wires a Server over q (for submit-job), streamer (for
// observe-log) and archives (for prune-archives).
func NewServer(cfg *common.Config, q queue.Queue, streamer logfabric.ReadStreamer, archives *logfabric.FileHandler, logger *common.Logger) *Server {
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	s := &Server{queue: q, streamer: streamer, archives: archives, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/submit", s.handleSubmit)
	mux.HandleFunc("/log-trace", s.handleLogTrace)
	mux.HandleFunc("/log-trace/prune", s.handlePrune)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // observe-log holds connections open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting submission/observer surface")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
