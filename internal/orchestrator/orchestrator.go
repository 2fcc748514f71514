// Package orchestrator drives the iterative refinement loop.
//
// One session runs up to max_iterations rounds of generate, critique,
// improve, score against pluggable capability adapters, tracks the best
// solution seen, stops on a score plateau or the iteration cap, and
// persists the best result when it clears the quality floor. Progress
// is delivered either as one aggregate SessionResult or as a live,
// strictly ordered stream of typed events.
package orchestrator

import (
	"time"

	"github.com/AP2611/Chakra-final/internal/agent"
	"github.com/AP2611/Chakra-final/internal/dispatch"
	"github.com/AP2611/Chakra-final/internal/logging"
)

// Config tunes the refinement loop.
type Config struct {
	// MaxIterations caps rounds per session.
	MaxIterations int
	// MinImprovement is the plateau threshold.
	MinImprovement float64
	// PersistFloor is the best-score a session must exceed before its
	// solution is written to memory.
	PersistFloor float64
	// EventBuffer sizes the live-mode event channel.
	EventBuffer int
	// SendTimeout bounds how long the round loop waits on a stalled
	// event consumer before abandoning the session.
	SendTimeout time.Duration
	// FastMode selects the low-latency token budgets.
	FastMode bool
	// RetrievalTopK is the number of document chunks fetched per task.
	RetrievalTopK int
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 3
	}
	if c.MinImprovement <= 0 {
		c.MinImprovement = 0.05
	}
	if c.PersistFloor <= 0 {
		c.PersistFloor = 0.6
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = 3
	}
	return c
}

// Deps are the collaborators one Orchestrator runs against. Retriever
// and Memory are optional; the loop degrades to running without
// retrieved context or recalled examples.
type Deps struct {
	Generator  agent.Generator
	Critic     agent.Critic
	Improver   agent.Improver
	Scorer     agent.Scorer
	Retriever  agent.Retriever
	Memory     agent.Memory
	Dispatcher *dispatch.Dispatcher
	Logger     *logging.Logger
}

// Orchestrator coordinates sessions. Safe for concurrent use; each
// session owns its own state.
type Orchestrator struct {
	cfg Config

	generator  agent.Generator
	critic     agent.Critic
	improver   agent.Improver
	scorer     agent.Scorer
	retriever  agent.Retriever
	memory     agent.Memory
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = dispatch.NewDispatcher(deps.Logger)
	}
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		generator:  deps.Generator,
		critic:     deps.Critic,
		improver:   deps.Improver,
		scorer:     deps.Scorer,
		retriever:  deps.Retriever,
		memory:     deps.Memory,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// FastMode reports whether the low-latency token budgets are in use.
func (o *Orchestrator) FastMode() bool { return o.cfg.FastMode }
