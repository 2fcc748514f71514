// Package server exposes the refinement orchestrator over HTTP.
//
// Two delivery modes mirror the orchestrator's: POST /process blocks and
// returns the aggregate session result, POST /process-stream delivers
// the live event stream over SSE. The analytics endpoints read the
// Redis-backed tracker and degrade to empty payloads when it is absent.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/AP2611/Chakra-final/internal/analytics"
	"github.com/AP2611/Chakra-final/internal/config"
	"github.com/AP2611/Chakra-final/internal/dispatch"
	"github.com/AP2611/Chakra-final/internal/logging"
	"github.com/AP2611/Chakra-final/internal/orchestrator"
)

// Processor is the slice of the orchestrator the server depends on.
type Processor interface {
	Process(ctx context.Context, req orchestrator.Request) (*orchestrator.SessionResult, error)
	ProcessStream(ctx context.Context, req orchestrator.Request) <-chan orchestrator.Event
	FastMode() bool
}

// Server is the HTTP API server.
type Server struct {
	cfg        config.ServerConfig
	proc       Processor
	tracker    *analytics.Tracker
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger
	httpSrv    *http.Server
}

// New builds a Server. The tracker may be nil; analytics endpoints then
// serve empty results. A nil dispatcher disables analytics recording.
func New(cfg config.ServerConfig, proc Processor, tracker *analytics.Tracker, dispatcher *dispatch.Dispatcher, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Server{
		cfg:        cfg,
		proc:       proc,
		tracker:    tracker,
		dispatcher: dispatcher,
		logger:     logger,
	}
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.Handler(),
		// No WriteTimeout: SSE responses stay open for the whole session.
		ReadTimeout: time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		IdleTimeout: time.Duration(cfg.IdleTimeoutSeconds) * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("POST /process-stream", s.handleProcessStream)
	// Legacy route kept for older clients.
	mux.HandleFunc("POST /process/stream", s.handleProcessStream)
	mux.HandleFunc("GET /analytics/metrics", s.handleMetrics)
	mux.HandleFunc("GET /analytics/quality-improvement", s.handleQualityImprovement)
	mux.HandleFunc("GET /analytics/performance-history", s.handlePerformanceHistory)
	mux.HandleFunc("GET /analytics/recent-tasks", s.handleRecentTasks)
	return s.cors(s.logRequests(mux))
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpSrv.Shutdown(ctx)
}
