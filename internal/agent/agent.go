// Package agent defines the capability interfaces the refinement loop is
// built on, and the three model-backed agents that implement its
// generate, critique, and improve phases.
//
// Yantra generates an initial solution, Sutra critiques it, and Agni
// rewrites it addressing the critique. All three share one Ollama-backed
// chat client. The Scorer, Retriever, and Memory capabilities are
// implemented elsewhere against the types declared here.
package agent

import (
	"context"

	"github.com/AP2611/Chakra-final/internal/ollama"
)

// Agent names used in logs, errors, and analytics.
const (
	NameYantra = "yantra"
	NameSutra  = "sutra"
	NameAgni   = "agni"
)

// ChatClient is the slice of the Ollama client the agents use.
type ChatClient interface {
	Chat(ctx context.Context, prompt, system string, opts ollama.Options) (string, error)
	ChatStream(ctx context.Context, prompt, system string, opts ollama.Options) (<-chan ollama.Chunk, error)
	Options() ollama.Options
	FastMode() bool
}

// GenerateRequest carries everything Yantra needs to produce a solution.
type GenerateRequest struct {
	Task         string
	Context      string
	RAGChunks    []string
	PastExamples []string
	MaxTokens    int
}

// Generator produces an initial solution for a task.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// GenerateStream calls onToken for every token as it arrives and
	// returns the accumulated output. A non-nil error from onToken
	// aborts the stream.
	GenerateStream(ctx context.Context, req GenerateRequest, onToken func(string) error) (string, error)
}

// CritiqueRequest carries a solution for Sutra to review.
type CritiqueRequest struct {
	Task      string
	Output    string
	RAGChunks []string
}

// Critic reviews a solution and reports its problems.
type Critic interface {
	Critique(ctx context.Context, req CritiqueRequest) (string, error)
}

// ImproveRequest carries a solution and its critique for Agni to rewrite.
type ImproveRequest struct {
	Task      string
	Output    string
	Critique  string
	RAGChunks []string
	MaxTokens int
}

// Improver rewrites a solution addressing its critique.
type Improver interface {
	Improve(ctx context.Context, req ImproveRequest) (string, error)
	ImproveStream(ctx context.Context, req ImproveRequest, onToken func(string) error) (string, error)
}

// Scores is the result of evaluating one solution.
type Scores struct {
	// Dimensions maps dimension names to their [0,1] scores.
	Dimensions map[string]float64 `json:"dimensions"`
	// Total is the weighted aggregate in [0,1].
	Total float64 `json:"total"`
}

// Scorer evaluates solution quality without calling a model.
type Scorer interface {
	Score(task, output string, isCode bool, ragChunks []string) Scores
}

// Retriever finds document chunks relevant to a query.
type Retriever interface {
	Retrieve(query string, k int) ([]string, error)
}

// SimilarSolution is a past solution recalled from memory.
type SimilarSolution struct {
	Task       string  `json:"task"`
	Solution   string  `json:"solution"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// StoreMetadata annotates a solution written to memory.
type StoreMetadata struct {
	IsCode     bool `json:"is_code"`
	UsedRAG    bool `json:"used_rag"`
	Iterations int  `json:"iterations"`
}

// Memory persists high-quality solutions and recalls them for similar
// tasks.
type Memory interface {
	Store(ctx context.Context, task, solution string, score float64, meta StoreMetadata) error
	RetrieveSimilar(ctx context.Context, task string, limit int) ([]SimilarSolution, error)
	BestExamples(ctx context.Context, limit int) ([]SimilarSolution, error)
}

// TokenBudget returns the output budget for one generation or
// improvement call. Prose tasks get more room than code tasks, and fast
// mode halves both.
func TokenBudget(fastMode, isCode bool) int {
	if isCode {
		if fastMode {
			return 384
		}
		return 640
	}
	if fastMode {
		return 512
	}
	return 1024
}
