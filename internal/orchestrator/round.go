package orchestrator

import (
	"context"
	"strings"

	"github.com/AP2611/Chakra-final/internal/agent"
	"github.com/AP2611/Chakra-final/internal/errors"
	"github.com/AP2611/Chakra-final/internal/logging"
)

// failedPlaceholder stands in for the improved output when a round
// produced no usable text at all.
const failedPlaceholder = "generation failed"

// roundInput carries per-round context into the executor.
type roundInput struct {
	req       *Request
	iteration int
	ragChunks []string
	// pastExamples is populated on round 1 only.
	pastExamples []string
	// prevScore is the previous round's post-score, valid when
	// hasPrev is set.
	prevScore float64
	hasPrev   bool
}

// runRound executes one generate, critique, improve, score pass.
//
// Adapter failures never abort the session: the round degrades to the
// best substitute text available and the loop continues. The returned
// error is non-nil only for stream or cancellation failures, which do
// abort the session.
func (o *Orchestrator) runRound(ctx context.Context, in roundInput, emit eventSink, logger *logging.Logger) (RoundResult, error) {
	round := RoundResult{Iteration: in.iteration}
	budget := agent.TokenBudget(o.cfg.FastMode, in.req.IsCode)

	if err := emit(NewIterationStartEvent(in.iteration)); err != nil {
		return round, err
	}
	if err := emit(NewFirstResponseStartedEvent()); err != nil {
		return round, err
	}

	// Phase 1: generation, streamed token by token.
	tokenCount := 0
	var emitErr error
	draft, genErr := o.generator.GenerateStream(ctx, agent.GenerateRequest{
		Task:         in.req.Task,
		Context:      in.req.Context,
		RAGChunks:    in.ragChunks,
		PastExamples: in.pastExamples,
		MaxTokens:    budget,
	}, func(token string) error {
		tokenCount++
		if err := emit(NewTokenEvent(token, tokenCount, in.iteration)); err != nil {
			emitErr = err
			return err
		}
		return nil
	})
	if emitErr != nil {
		return round, emitErr
	}
	if err := o.abortErr(ctx, genErr); err != nil {
		return round, err
	}

	if genErr == nil {
		round.YantraOutput = draft
		pre := o.scorer.Score(in.req.Task, draft, in.req.IsCode, in.ragChunks)
		round.YantraScore = pre.Total
	} else {
		logger.Warn("generation failed, degrading round",
			"iteration", in.iteration, "error", genErr)
		round.Failed = true
	}

	if err := emit(NewFirstResponseCompleteEvent(in.iteration)); err != nil {
		return round, err
	}

	// Phase 2: critique. Skipped when there is no draft to review.
	if err := emit(NewSutraStartedEvent(in.iteration)); err != nil {
		return round, err
	}
	if !round.Failed {
		critique, critErr := o.critic.Critique(ctx, agent.CritiqueRequest{
			Task:      in.req.Task,
			Output:    round.YantraOutput,
			RAGChunks: in.ragChunks,
		})
		if err := o.abortErr(ctx, critErr); err != nil {
			return round, err
		}
		if critErr != nil {
			logger.Warn("critique failed, degrading round",
				"iteration", in.iteration, "error", critErr)
			round.Failed = true
		} else {
			round.SutraCritique = critique
		}
	}

	// Phase 3: improvement, requested as one complete response so the
	// refined output survives transports that drop streamed chunks.
	if err := emit(NewImprovingStartedEvent(in.iteration)); err != nil {
		return round, err
	}
	improved, impFailed, err := o.improve(ctx, in, &round, logger)
	if err != nil {
		return round, err
	}
	round.AgniOutput = improved

	improvedTokens := len(strings.Fields(improved))
	if err := emit(NewImprovedTokenEvent(improved, in.iteration, improvedTokens)); err != nil {
		return round, err
	}
	if err := emit(NewImprovedEvent(in.iteration, improved, improvedTokens)); err != nil {
		return round, err
	}

	// Phase 4: score the improved output. Degraded substitutes that
	// are not real solutions stay at zero.
	if !impFailed {
		post := o.scorer.Score(in.req.Task, improved, in.req.IsCode, in.ragChunks)
		round.AgniScore = post.Total
		round.Score = post.Total
		round.ScoreDetails = post
	}

	round.Improvement = round.Score - round.YantraScore
	if in.hasPrev {
		round.IterationImprovement = round.Score - in.prevScore
	} else {
		round.IterationImprovement = round.Improvement
	}

	if err := emit(NewIterationCompleteEvent(round)); err != nil {
		return round, err
	}
	return round, nil
}

// improve runs phase 3 and resolves the degraded substitutes. It
// reports whether the improved text is a degraded stand-in that must
// not be scored as a solution.
func (o *Orchestrator) improve(ctx context.Context, in roundInput, round *RoundResult, logger *logging.Logger) (string, bool, error) {
	if round.Failed {
		// No draft or no critique. The draft, when present, is still a
		// genuine solution; without one, fall back to the placeholder.
		if round.YantraOutput != "" {
			return round.YantraOutput, false, nil
		}
		return failedPlaceholder, true, nil
	}

	improved, impErr := o.improver.Improve(ctx, agent.ImproveRequest{
		Task:      in.req.Task,
		Output:    round.YantraOutput,
		Critique:  round.SutraCritique,
		RAGChunks: in.ragChunks,
		MaxTokens: agent.TokenBudget(o.cfg.FastMode, in.req.IsCode),
	})
	if err := o.abortErr(ctx, impErr); err != nil {
		return "", true, err
	}
	if impErr != nil {
		logger.Warn("improvement failed, degrading round",
			"iteration", in.iteration, "error", impErr)
		round.Failed = true
		if round.SutraCritique != "" {
			return round.SutraCritique, true, nil
		}
		return failedPlaceholder, true, nil
	}
	return improved, false, nil
}

// abortErr decides whether an adapter error must abort the session
// instead of degrading the round. Cancellation and stream failures
// abort; everything else degrades.
func (o *Orchestrator) abortErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && errors.IsStreamTerminated(err) {
		return err
	}
	return nil
}
