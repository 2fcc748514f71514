package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/AP2611/Chakra-final/internal/errors"
)

// Event type discriminators as they appear on the wire.
const (
	TypeStart                 = "start"
	TypeRAGRetrieved          = "rag_retrieved"
	TypeMemoryFound           = "memory_found"
	TypeIterationStart        = "iteration_start"
	TypeFirstResponseStarted  = "first_response_started"
	TypeToken                 = "token"
	TypeFirstResponseComplete = "first_response_complete"
	TypeSutraStarted          = "sutra_started"
	TypeImprovingStarted      = "improving_started"
	TypeImprovedToken         = "improved_token"
	TypeImproved              = "improved"
	TypeIterationComplete     = "iteration_complete"
	TypePlateauReached        = "plateau_reached"
	TypeEnd                   = "end"
	TypeError                 = "error"
)

// Event is one entry in a session's progress stream. Every event
// serializes to a JSON object with a "type" discriminator.
type Event interface {
	EventType() string
}

// StartEvent opens a session stream.
type StartEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewStartEvent() StartEvent {
	return StartEvent{Type: TypeStart, Message: "Starting task processing..."}
}

func (e StartEvent) EventType() string { return e.Type }

// RAGRetrievedEvent reports completed document retrieval.
type RAGRetrievedEvent struct {
	Type        string `json:"type"`
	ChunksCount int    `json:"chunks_count"`
}

func NewRAGRetrievedEvent(count int) RAGRetrievedEvent {
	return RAGRetrievedEvent{Type: TypeRAGRetrieved, ChunksCount: count}
}

func (e RAGRetrievedEvent) EventType() string { return e.Type }

// MemoryFoundEvent reports recalled past solutions.
type MemoryFoundEvent struct {
	Type          string `json:"type"`
	ExamplesCount int    `json:"examples_count"`
}

func NewMemoryFoundEvent(count int) MemoryFoundEvent {
	return MemoryFoundEvent{Type: TypeMemoryFound, ExamplesCount: count}
}

func (e MemoryFoundEvent) EventType() string { return e.Type }

// IterationStartEvent opens one round.
type IterationStartEvent struct {
	Type      string `json:"type"`
	Iteration int    `json:"iteration"`
}

func NewIterationStartEvent(iteration int) IterationStartEvent {
	return IterationStartEvent{Type: TypeIterationStart, Iteration: iteration}
}

func (e IterationStartEvent) EventType() string { return e.Type }

// FirstResponseStartedEvent marks the start of the generation phase.
type FirstResponseStartedEvent struct {
	Type string `json:"type"`
}

func NewFirstResponseStartedEvent() FirstResponseStartedEvent {
	return FirstResponseStartedEvent{Type: TypeFirstResponseStarted}
}

func (e FirstResponseStartedEvent) EventType() string { return e.Type }

// TokenEvent carries one generation token.
type TokenEvent struct {
	Type       string `json:"type"`
	Token      string `json:"token"`
	TokenCount int    `json:"token_count"`
	Iteration  int    `json:"iteration"`
}

func NewTokenEvent(token string, tokenCount, iteration int) TokenEvent {
	return TokenEvent{Type: TypeToken, Token: token, TokenCount: tokenCount, Iteration: iteration}
}

func (e TokenEvent) EventType() string { return e.Type }

// FirstResponseCompleteEvent marks the end of the generation phase.
type FirstResponseCompleteEvent struct {
	Type      string `json:"type"`
	Iteration int    `json:"iteration"`
}

func NewFirstResponseCompleteEvent(iteration int) FirstResponseCompleteEvent {
	return FirstResponseCompleteEvent{Type: TypeFirstResponseComplete, Iteration: iteration}
}

func (e FirstResponseCompleteEvent) EventType() string { return e.Type }

// SutraStartedEvent marks the start of the critique phase.
type SutraStartedEvent struct {
	Type      string `json:"type"`
	Iteration int    `json:"iteration"`
}

func NewSutraStartedEvent(iteration int) SutraStartedEvent {
	return SutraStartedEvent{Type: TypeSutraStarted, Iteration: iteration}
}

func (e SutraStartedEvent) EventType() string { return e.Type }

// ImprovingStartedEvent marks the start of the improvement phase.
type ImprovingStartedEvent struct {
	Type      string `json:"type"`
	Iteration int    `json:"iteration"`
}

func NewImprovingStartedEvent(iteration int) ImprovingStartedEvent {
	return ImprovingStartedEvent{Type: TypeImprovingStarted, Iteration: iteration}
}

func (e ImprovingStartedEvent) EventType() string { return e.Type }

// ImprovedTokenEvent delivers the whole improved output as one token.
// The improvement phase is requested as a single complete response, so
// the stream carries its full text at once rather than token by token.
type ImprovedTokenEvent struct {
	Type       string `json:"type"`
	Token      string `json:"token"`
	Iteration  int    `json:"iteration"`
	TokenCount int    `json:"token_count"`
}

func NewImprovedTokenEvent(text string, iteration, tokenCount int) ImprovedTokenEvent {
	return ImprovedTokenEvent{Type: TypeImprovedToken, Token: text, Iteration: iteration, TokenCount: tokenCount}
}

func (e ImprovedTokenEvent) EventType() string { return e.Type }

// ImprovedEvent is the improvement phase's terminal signal. The output
// is duplicated in two fields for consumer compatibility.
type ImprovedEvent struct {
	Type           string `json:"type"`
	Iteration      int    `json:"iteration"`
	ImprovedOutput string `json:"improved_output"`
	Solution       string `json:"solution"`
	TokenCount     int    `json:"token_count"`
}

func NewImprovedEvent(iteration int, output string, tokenCount int) ImprovedEvent {
	return ImprovedEvent{
		Type:           TypeImproved,
		Iteration:      iteration,
		ImprovedOutput: output,
		Solution:       output,
		TokenCount:     tokenCount,
	}
}

func (e ImprovedEvent) EventType() string { return e.Type }

// IterationCompleteEvent closes one round with its full record.
type IterationCompleteEvent struct {
	Type      string      `json:"type"`
	Iteration int         `json:"iteration"`
	Data      RoundResult `json:"data"`
}

func NewIterationCompleteEvent(round RoundResult) IterationCompleteEvent {
	return IterationCompleteEvent{Type: TypeIterationComplete, Iteration: round.Iteration, Data: round}
}

func (e IterationCompleteEvent) EventType() string { return e.Type }

// PlateauReachedEvent reports an early stop on flat scores.
type PlateauReachedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewPlateauReachedEvent(improvement, minImprovement float64) PlateauReachedEvent {
	return PlateauReachedEvent{
		Type: TypePlateauReached,
		Message: fmt.Sprintf("Score improvement (%.2f%%) below minimum threshold (%.2f%%)",
			improvement*100, minImprovement*100),
	}
}

func (e PlateauReachedEvent) EventType() string { return e.Type }

// EndEvent is the session's terminal success signal.
type EndEvent struct {
	Type            string        `json:"type"`
	Task            string        `json:"task"`
	FinalSolution   string        `json:"final_solution"`
	FinalScore      float64       `json:"final_score"`
	Iterations      []RoundResult `json:"iterations"`
	TotalIterations int           `json:"total_iterations"`
	UsedRAG         bool          `json:"used_rag"`
}

func NewEndEvent(result *SessionResult) EndEvent {
	return EndEvent{
		Type:            TypeEnd,
		Task:            result.Task,
		FinalSolution:   result.FinalSolution,
		FinalScore:      result.FinalScore,
		Iterations:      result.Iterations,
		TotalIterations: result.TotalIterations,
		UsedRAG:         result.UsedRAG,
	}
}

func (e EndEvent) EventType() string { return e.Type }

// ErrorEvent is the session's terminal failure signal. The message is
// duplicated in two fields for consumer compatibility.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Err     string `json:"error"`
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message, Err: message}
}

func (e ErrorEvent) EventType() string { return e.Type }

// eventSink receives progress events from the round loop. Live mode
// backs it with a bounded channel send; aggregate mode discards.
type eventSink func(Event) error

func discardEvents(Event) error { return nil }

// emitter sends events to a channel without ever stalling the round
// loop indefinitely. A consumer that stops draining trips the send
// timeout and the session is abandoned.
type emitter struct {
	ch        chan Event
	timeout   time.Duration
	sessionID string
}

func newEmitter(buffer int, timeout time.Duration, sessionID string) *emitter {
	return &emitter{
		ch:        make(chan Event, buffer),
		timeout:   timeout,
		sessionID: sessionID,
	}
}

func (e *emitter) emit(ctx context.Context, ev Event) error {
	select {
	case e.ch <- ev:
		return nil
	default:
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()
	select {
	case e.ch <- ev:
		return nil
	case <-ctx.Done():
		return errors.NewStreamError("session cancelled", errors.ErrStreamTerminated).
			WithSessionID(e.sessionID)
	case <-timer.C:
		return errors.NewStreamError("send timed out", errors.ErrStreamStalled).
			WithSessionID(e.sessionID)
	}
}

func (e *emitter) close() { close(e.ch) }
