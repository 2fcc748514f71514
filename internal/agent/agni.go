package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/AP2611/Chakra-final/internal/ollama"
)

const agniSystem = "You are Agni, an expert optimizer. " +
	"Rewrite the solution fixing all issues and following best practices. " +
	"Produce clean, correct, and efficient code or answers."

const agniInstructions = "\n--- Your Task ---\n" +
	"Rewrite the solution addressing ALL issues mentioned in the critique. " +
	"Improve:\n" +
	"1. Correctness - fix all bugs and errors\n" +
	"2. Performance - optimize where possible\n" +
	"3. Clarity - make logic clear and well-structured\n" +
	"4. Grounding - ensure all claims are supported (if RAG context provided)\n\n" +
	"Provide the improved solution in clean final form."

// Agni is the improvement agent. It rewrites a solution so that every
// issue the critique raised is addressed.
type Agni struct {
	client ChatClient
}

// NewAgni creates the improvement agent.
func NewAgni(client ChatClient) *Agni {
	return &Agni{client: client}
}

func (a *Agni) buildPrompt(req ImproveRequest) string {
	parts := []string{
		fmt.Sprintf("Original Task: %s", req.Task),
		fmt.Sprintf("\n--- Original Output ---\n%s", req.Output),
		fmt.Sprintf("\n--- Critique and Issues Found ---\n%s", req.Critique),
	}

	if len(req.RAGChunks) > 0 {
		parts = appendChunks(parts,
			"--- Document Context ---",
			req.RAGChunks,
			"Ensure all claims are properly grounded in the document context.")
	}

	parts = append(parts, agniInstructions)
	return strings.Join(parts, "\n")
}

func (a *Agni) options(req ImproveRequest) (prompt, system string, opts ollama.Options) {
	return a.buildPrompt(req), agniSystem, a.client.Options().WithMaxTokens(req.MaxTokens)
}

// Improve rewrites the solution in one blocking call.
func (a *Agni) Improve(ctx context.Context, req ImproveRequest) (string, error) {
	prompt, system, opts := a.options(req)
	return chat(ctx, a.client, NameAgni, "improve", prompt, system, opts)
}

// ImproveStream rewrites the solution, delivering tokens via onToken.
func (a *Agni) ImproveStream(ctx context.Context, req ImproveRequest, onToken func(string) error) (string, error) {
	prompt, system, opts := a.options(req)
	return chatStream(ctx, a.client, NameAgni, "improve", prompt, system, opts, onToken)
}
