package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/AP2611/Chakra-final/internal/ollama"
)

const yantraSystem = "You are Yantra, an expert problem solver. " +
	"Produce clear, correct, and efficient solutions following best practices. " +
	"Be precise and thorough in your responses."

// Yantra is the generation agent. It drafts the initial solution from
// the task, optional retrieved document chunks, and past examples.
type Yantra struct {
	client ChatClient
}

// NewYantra creates the generation agent.
func NewYantra(client ChatClient) *Yantra {
	return &Yantra{client: client}
}

func (y *Yantra) buildPrompt(req GenerateRequest) string {
	parts := []string{fmt.Sprintf("Task: %s", req.Task)}

	if len(req.RAGChunks) > 0 {
		parts = appendChunks(parts,
			"--- Relevant Document Context ---",
			req.RAGChunks,
			"IMPORTANT: Base your answer ONLY on the provided document context above. "+
				"Do not make unsupported claims.")
	}

	if len(req.PastExamples) > 0 {
		parts = append(parts, "\n--- Successful Past Solutions for Similar Tasks ---")
		for i, example := range req.PastExamples {
			parts = append(parts, fmt.Sprintf("\n[Example %d]\n%s", i+1, example))
		}
		parts = append(parts, "\nUse these examples as reference for best practices and patterns.")
	}

	if req.Context != "" {
		parts = append(parts, fmt.Sprintf("\n--- Additional Context ---\n%s", req.Context))
	}

	return strings.Join(parts, "\n")
}

func (y *Yantra) options(req GenerateRequest) (prompt, system string, opts ollama.Options) {
	return y.buildPrompt(req), yantraSystem, y.client.Options().WithMaxTokens(req.MaxTokens)
}

// Generate produces a solution in one blocking call.
func (y *Yantra) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	prompt, system, opts := y.options(req)
	return chat(ctx, y.client, NameYantra, "generate", prompt, system, opts)
}

// GenerateStream produces a solution, delivering tokens via onToken.
func (y *Yantra) GenerateStream(ctx context.Context, req GenerateRequest, onToken func(string) error) (string, error) {
	prompt, system, opts := y.options(req)
	return chatStream(ctx, y.client, NameYantra, "generate", prompt, system, opts, onToken)
}
