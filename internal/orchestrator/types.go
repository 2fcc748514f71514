package orchestrator

import (
	"strings"

	"github.com/AP2611/Chakra-final/internal/agent"
	"github.com/AP2611/Chakra-final/internal/errors"
)

// StopReason records why a session's round loop ended.
type StopReason string

const (
	StopMaxIterations StopReason = "max_iterations"
	StopPlateau       StopReason = "plateau"
	StopError         StopReason = "error"
)

// Request is one refinement request. Task is required; everything else
// has defaults.
type Request struct {
	Task           string  `json:"task"`
	Context        string  `json:"context,omitempty"`
	UseRAG         bool    `json:"use_rag"`
	IsCode         bool    `json:"is_code"`
	MaxIterations  int     `json:"max_iterations,omitempty"`
	MinImprovement float64 `json:"min_improvement,omitempty"`
}

// Normalize fills unset tuning fields from the configured defaults.
func (r *Request) Normalize(maxIterations int, minImprovement float64) {
	r.Task = strings.TrimSpace(r.Task)
	if r.MaxIterations <= 0 {
		r.MaxIterations = maxIterations
	}
	if r.MinImprovement <= 0 {
		r.MinImprovement = minImprovement
	}
}

// Validate rejects malformed requests before any round is attempted.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Task) == "" {
		return errors.NewConfigError("task", "must not be empty")
	}
	if r.MaxIterations < 1 {
		return errors.NewConfigError("max_iterations", "must be at least 1").WithValue(r.MaxIterations)
	}
	if r.MinImprovement < 0 || r.MinImprovement > 1 {
		return errors.NewConfigError("min_improvement", "must be between 0 and 1").WithValue(r.MinImprovement)
	}
	return nil
}

// RoundResult is one completed generate, critique, improve, score pass.
// Immutable once appended to the session history.
type RoundResult struct {
	Iteration     int          `json:"iteration"`
	YantraOutput  string       `json:"yantra_output"`
	SutraCritique string       `json:"sutra_critique"`
	AgniOutput    string       `json:"agni_output"`
	YantraScore   float64      `json:"yantra_score"`
	AgniScore     float64      `json:"agni_score"`
	Score         float64      `json:"score"`
	ScoreDetails  agent.Scores `json:"score_details"`
	// Improvement is within-round: the improved output's score minus
	// the draft's score.
	Improvement float64 `json:"improvement"`
	// IterationImprovement is across rounds: this round's post-score
	// minus the previous round's. Round 1 mirrors Improvement.
	IterationImprovement float64 `json:"iteration_improvement"`

	// Failed marks a degraded round produced from an adapter failure.
	Failed bool `json:"-"`
}

// SessionResult is the aggregate outcome of one session.
type SessionResult struct {
	Task            string        `json:"task"`
	FinalSolution   string        `json:"final_solution"`
	FinalScore      float64       `json:"final_score"`
	Iterations      []RoundResult `json:"iterations"`
	TotalIterations int           `json:"total_iterations"`
	UsedRAG         bool          `json:"used_rag"`
	RAGChunks       []string      `json:"rag_chunks,omitempty"`
	StopReason      StopReason    `json:"stop_reason"`
}
