package agent

import (
	"context"
	"fmt"
	"strings"
)

const sutraSystem = "You are Sutra, a strict expert reviewer. " +
	"Identify all issues precisely and explain what must be improved. " +
	"Be thorough and specific in your critique."

const sutraInstructions = "\n--- Your Task ---\n" +
	"Analyze the output and identify:\n" +
	"1. Bugs or errors\n" +
	"2. Inaccuracies\n" +
	"3. Inefficiencies\n" +
	"4. Unclear logic\n" +
	"5. Missing edge cases\n" +
	"6. Unsupported claims (if RAG context provided)\n\n" +
	"Provide a bullet list of problems and suggested fixes."

// Sutra is the critique agent. It reviews a draft solution and reports
// bugs, inaccuracies, and, when document context is present,
// unsupported claims.
type Sutra struct {
	client ChatClient
}

// NewSutra creates the critique agent.
func NewSutra(client ChatClient) *Sutra {
	return &Sutra{client: client}
}

func (s *Sutra) buildPrompt(req CritiqueRequest) string {
	parts := []string{
		fmt.Sprintf("Original Task: %s", req.Task),
		fmt.Sprintf("\n--- Yantra's Output ---\n%s", req.Output),
	}

	if len(req.RAGChunks) > 0 {
		parts = appendChunks(parts,
			"--- Document Context (for verification) ---",
			req.RAGChunks,
			"Check if all claims in the output are supported by the document context. "+
				"Flag any hallucinations or unsupported statements.")
	}

	parts = append(parts, sutraInstructions)
	return strings.Join(parts, "\n")
}

// Critique reviews the output and returns the list of problems found.
func (s *Sutra) Critique(ctx context.Context, req CritiqueRequest) (string, error) {
	return chat(ctx, s.client, NameSutra, "critique", s.buildPrompt(req), sutraSystem, s.client.Options())
}
