package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AP2611/Chakra-final/internal/analytics"
	"github.com/AP2611/Chakra-final/internal/errors"
	"github.com/AP2611/Chakra-final/internal/orchestrator"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Agent System API",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleProcess runs a session in aggregate mode and returns the full
// result as one JSON document.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start := time.Now()
	result, err := s.proc.Process(r.Context(), req)
	if err != nil {
		if errors.IsConfiguration(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("process failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordSession(&req, result, time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

// handleProcessStream runs a session in live mode, relaying each
// progress event as one SSE frame.
func (s *Server) handleProcessStream(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	start := time.Now()
	var end *orchestrator.EndEvent
	for ev := range s.proc.ProcessStream(r.Context(), req) {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("event marshal failed", "type", ev.EventType(), "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		fl.Flush()

		if e, ok := ev.(orchestrator.EndEvent); ok {
			end = &e
		}
	}

	if end != nil {
		result := &orchestrator.SessionResult{
			Task:            end.Task,
			FinalScore:      end.FinalScore,
			Iterations:      end.Iterations,
			TotalIterations: end.TotalIterations,
		}
		s.recordSession(&req, result, time.Since(start))
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Metrics(r.Context()))
}

func (s *Server) handleQualityImprovement(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	points := s.tracker.QualityImprovement(r.Context(), limit)
	if points == nil {
		points = []analytics.QualityPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": points})
}

func (s *Server) handlePerformanceHistory(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	points := s.tracker.PerformanceHistory(r.Context(), hours)
	if points == nil {
		points = []analytics.PerformancePoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": points})
}

func (s *Server) handleRecentTasks(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	tasks := s.tracker.RecentTasks(r.Context(), limit)
	if tasks == nil {
		tasks = []analytics.RecentTask{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// recordSession queues analytics recording on the dispatcher so the
// response never waits on Redis.
func (s *Server) recordSession(req *orchestrator.Request, result *orchestrator.SessionResult, elapsed time.Duration) {
	if s.tracker == nil || s.dispatcher == nil {
		return
	}

	iterations := make([]analytics.IterationMetric, len(result.Iterations))
	for i, round := range result.Iterations {
		iterations[i] = analytics.IterationMetric{
			YantraScore: round.YantraScore,
			AgniScore:   round.AgniScore,
			Score:       round.Score,
			Improvement: round.Improvement,
		}
	}
	taskType := "document"
	if req.IsCode {
		taskType = "code"
	}
	task := result.Task
	finalScore := result.FinalScore
	durationMs := float64(elapsed.Milliseconds())

	s.dispatcher.Submit("analytics.record", func(ctx context.Context) error {
		s.tracker.RecordTask(ctx, task, finalScore, iterations, durationMs, taskType)
		return nil
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
