package orchestrator

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AP2611/Chakra-final/internal/agent"
	"github.com/AP2611/Chakra-final/internal/errors"
	"github.com/AP2611/Chakra-final/internal/logging"
)

// Process runs a session in aggregate mode: the call blocks until the
// round loop stops and returns the full result.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*SessionResult, error) {
	req.Normalize(o.cfg.MaxIterations, o.cfg.MinImprovement)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger.WithSession(uuid.NewString())
	return o.run(ctx, req, discardEvents, logger)
}

// ProcessStream runs a session in live mode. The returned channel
// carries the ordered progress events and is closed after the terminal
// event. Cancellation mid-session closes the channel without a
// terminal event; the consumer is gone, so there is nobody left to
// signal.
func (o *Orchestrator) ProcessStream(ctx context.Context, req Request) <-chan Event {
	sessionID := uuid.NewString()
	em := newEmitter(o.cfg.EventBuffer, o.cfg.SendTimeout, sessionID)
	logger := o.logger.WithSession(sessionID)

	go func() {
		defer em.close()

		req.Normalize(o.cfg.MaxIterations, o.cfg.MinImprovement)
		if err := req.Validate(); err != nil {
			logger.Warn("rejecting malformed request", "error", err)
			_ = em.emit(ctx, NewErrorEvent(err.Error()))
			return
		}

		sink := func(ev Event) error { return em.emit(ctx, ev) }
		result, err := o.run(ctx, req, sink, logger)
		if err != nil {
			if ctx.Err() != nil || errors.IsStreamTerminated(err) {
				logger.Warn("session abandoned", "error", err)
				return
			}
			logger.Error("session failed", "error", err)
			_ = em.emit(ctx, NewErrorEvent(err.Error()))
			return
		}
		_ = em.emit(ctx, NewEndEvent(result))
	}()

	return em.ch
}

// run executes the session state machine shared by both delivery
// modes. The returned error is non-nil only for aborts (cancellation,
// stream failure); adapter failures degrade individual rounds instead.
func (o *Orchestrator) run(ctx context.Context, req Request, emit eventSink, logger *logging.Logger) (*SessionResult, error) {
	logger.Info("session started",
		"task_len", len(req.Task), "use_rag", req.UseRAG, "is_code", req.IsCode,
		"max_iterations", req.MaxIterations)

	if err := emit(NewStartEvent()); err != nil {
		return nil, err
	}

	ragChunks, pastExamples := o.gatherContext(ctx, &req, logger)
	if req.UseRAG {
		if err := emit(NewRAGRetrievedEvent(len(ragChunks))); err != nil {
			return nil, err
		}
	}
	if len(pastExamples) > 0 {
		if err := emit(NewMemoryFoundEvent(len(pastExamples))); err != nil {
			return nil, err
		}
	}

	conv := newConvergence(req.MaxIterations, req.MinImprovement)
	reason := StopMaxIterations
	for n := 1; n <= req.MaxIterations; n++ {
		in := roundInput{
			req:       &req,
			iteration: n,
			ragChunks: ragChunks,
		}
		if n == 1 {
			in.pastExamples = pastExamples
		}
		if len(conv.history) > 0 {
			in.prevScore = conv.history[len(conv.history)-1].Score
			in.hasPrev = true
		}

		round, err := o.runRound(ctx, in, emit, logger)
		if err != nil {
			return nil, err
		}
		conv.observe(round)
		logger.Info("round complete",
			"iteration", n, "score", round.Score, "best_score", conv.bestScore,
			"degraded", round.Failed)

		d := conv.decide()
		if !d.stop {
			continue
		}
		reason = d.reason
		if d.reason == StopPlateau {
			logger.Info("plateau reached",
				"iteration", n, "improvement", d.improvement, "threshold", req.MinImprovement)
			if err := emit(NewPlateauReachedEvent(d.improvement, req.MinImprovement)); err != nil {
				return nil, err
			}
		}
		break
	}

	o.persistBest(&req, conv, logger)

	result := &SessionResult{
		Task:            req.Task,
		FinalSolution:   conv.bestSolution,
		FinalScore:      conv.bestScore,
		Iterations:      conv.history,
		TotalIterations: len(conv.history),
		UsedRAG:         req.UseRAG,
		StopReason:      reason,
	}
	if req.UseRAG {
		result.RAGChunks = ragChunks
	}
	logger.Info("session complete",
		"rounds", result.TotalIterations, "final_score", result.FinalScore,
		"stop_reason", string(reason))
	return result, nil
}

// gatherContext fans out the retrieval and memory lookups in parallel
// before round 1. Both are independent reads; either failing just means
// the first round runs with less context.
func (o *Orchestrator) gatherContext(ctx context.Context, req *Request, logger *logging.Logger) (ragChunks, pastExamples []string) {
	g, gctx := errgroup.WithContext(ctx)

	if req.UseRAG && o.retriever != nil {
		g.Go(func() error {
			chunks, err := o.retriever.Retrieve(req.Task, o.cfg.RetrievalTopK)
			if err != nil {
				logger.Warn("retrieval failed", "error", err)
				return nil
			}
			ragChunks = chunks
			return nil
		})
	}
	if o.memory != nil {
		g.Go(func() error {
			similar, err := o.memory.RetrieveSimilar(gctx, req.Task, 3)
			if err != nil {
				logger.Warn("memory lookup failed", "error", err)
				return nil
			}
			for _, s := range similar {
				pastExamples = append(pastExamples, s.Solution)
			}
			return nil
		})
	}
	// The goroutines swallow their own failures.
	_ = g.Wait()
	return ragChunks, pastExamples
}

// persistBest hands the session's best solution to the background
// dispatcher when it clears the quality floor. The write is
// fire-and-forget; a failed store never surfaces to the client.
func (o *Orchestrator) persistBest(req *Request, conv *convergence, logger *logging.Logger) {
	if o.memory == nil || conv.bestScore <= o.cfg.PersistFloor {
		return
	}

	task := req.Task
	solution := conv.bestSolution
	score := conv.bestScore
	meta := agent.StoreMetadata{
		IsCode:     req.IsCode,
		UsedRAG:    req.UseRAG,
		Iterations: len(conv.history),
	}
	o.dispatcher.Submit("memory.store", func(ctx context.Context) error {
		return o.memory.Store(ctx, task, solution, score, meta)
	})
	logger.Debug("best solution queued for persistence", "score", score)
}
