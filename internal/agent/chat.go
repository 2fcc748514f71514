package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/AP2611/Chakra-final/internal/errors"
	"github.com/AP2611/Chakra-final/internal/ollama"
)

// chat runs a blocking call and wraps failures as adapter errors.
func chat(ctx context.Context, client ChatClient, name, op, prompt, system string, opts ollama.Options) (string, error) {
	out, err := client.Chat(ctx, prompt, system, opts)
	if err != nil {
		return "", errors.NewAdapterError(name, op, err)
	}
	return out, nil
}

// chatStream runs a streaming call, forwarding each token to onToken and
// returning the accumulated, trimmed output.
func chatStream(ctx context.Context, client ChatClient, name, op, prompt, system string, opts ollama.Options, onToken func(string) error) (string, error) {
	ch, err := client.ChatStream(ctx, prompt, system, opts)
	if err != nil {
		return "", errors.NewAdapterError(name, op, err)
	}

	var sb strings.Builder
	for chunk := range ch {
		switch chunk.State {
		case ollama.StateStreaming:
			sb.WriteString(chunk.Content)
			if onToken != nil {
				if err := onToken(chunk.Content); err != nil {
					return "", errors.NewAdapterError(name, op, err)
				}
			}
		case ollama.StateFailed:
			return "", errors.NewAdapterError(name, op, chunk.Err)
		case ollama.StateDone:
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errors.NewAdapterError(name, op, errors.ErrEmptyResponse)
	}
	return out, nil
}

func appendChunks(parts []string, header string, chunks []string, footer string) []string {
	parts = append(parts, "\n"+header)
	for i, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("\n[Chunk %d]\n%s", i+1, chunk))
	}
	return append(parts, "\n"+footer)
}
