// Package ollama is a minimal client for the Ollama chat API.
//
// It supports blocking calls via Chat and token streaming via ChatStream.
// The streamed wire format is newline-delimited JSON, with tolerance for
// SSE-style "data: " prefixes some proxies add in front of each line.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AP2611/Chakra-final/internal/errors"
)

// StreamState tracks where a stream is in its lifecycle.
type StreamState int

const (
	// StateStreaming means tokens are still arriving.
	StateStreaming StreamState = iota
	// StateDone means the model finished or hit its token budget.
	StateDone
	// StateFailed means the stream ended on a backend error.
	StateFailed
)

// Chunk is one unit of streamed output. Content holds the token text
// while State is StateStreaming; the final chunk carries StateDone or
// StateFailed, with Err set in the failed case.
type Chunk struct {
	Content string
	State   StreamState
	Err     error
}

// Client talks to a single Ollama server and model.
type Client struct {
	baseURL  string
	model    string
	fastMode bool
	httpc    *http.Client
}

// NewClient creates a Client for the given server URL and model tag.
func NewClient(baseURL, model string, fastMode bool, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		fastMode: fastMode,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model tag.
func (c *Client) Model() string { return c.model }

// FastMode reports whether the client uses the low-latency presets.
func (c *Client) FastMode() bool { return c.fastMode }

// Options returns the default inference preset for this client.
func (c *Client) Options() Options { return DefaultOptions(c.fastMode) }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  Options   `json:"options"`
}

type chatResponse struct {
	Message *message `json:"message"`
	Done    bool     `json:"done"`
	Error   string   `json:"error"`
}

func buildMessages(prompt, system string) []message {
	var msgs []message
	if system != "" {
		msgs = append(msgs, message{Role: "system", Content: system})
	}
	return append(msgs, message{Role: "user", Content: prompt})
}

// Chat sends a blocking chat call and returns the full trimmed response.
func (c *Client) Chat(ctx context.Context, prompt, system string, opts Options) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: buildMessages(prompt, system),
		Stream:   false,
		Options:  opts,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w: %w", errors.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %w", resp.StatusCode, errors.ErrBackendUnavailable)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s: %w", out.Error, errors.ErrGenerationFailed)
	}

	var content string
	if out.Message != nil {
		content = strings.TrimSpace(out.Message.Content)
	}
	if content == "" {
		return "", errors.ErrEmptyResponse
	}
	return content, nil
}

// ChatStream sends a streaming chat call. Tokens are delivered on the
// returned channel as they arrive; the channel is closed after a final
// StateDone or StateFailed chunk. Cancelling the context ends the
// stream with StateFailed carrying the context error.
func (c *Client) ChatStream(ctx context.Context, prompt, system string, opts Options) (<-chan Chunk, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: buildMessages(prompt, system),
		Stream:   true,
		Options:  opts,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w: %w", errors.ErrBackendUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned status %d: %w", resp.StatusCode, errors.ErrBackendUnavailable)
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			// Tolerate SSE-framed lines alongside plain NDJSON.
			line = strings.TrimSpace(strings.TrimPrefix(line, "data: "))

			var out chatResponse
			if err := json.Unmarshal([]byte(line), &out); err != nil {
				// Skip malformed lines, the stream may still recover.
				continue
			}

			if out.Error != "" {
				c.send(ctx, ch, Chunk{
					State: StateFailed,
					Err:   fmt.Errorf("ollama error: %s: %w", out.Error, errors.ErrGenerationFailed),
				})
				return
			}
			if out.Message != nil && out.Message.Content != "" {
				if !c.send(ctx, ch, Chunk{Content: out.Message.Content, State: StateStreaming}) {
					return
				}
			}
			if out.Done {
				c.send(ctx, ch, Chunk{State: StateDone})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			c.send(ctx, ch, Chunk{State: StateFailed, Err: fmt.Errorf("reading stream: %w", err)})
			return
		}
		// The server closed the connection without a done marker. Treat
		// it as completion, the token budget was likely exhausted.
		c.send(ctx, ch, Chunk{State: StateDone})
	}()

	return ch, nil
}

func (c *Client) send(ctx context.Context, ch chan<- Chunk, chunk Chunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Ping checks that the server is reachable. It hits the version
// endpoint, which responds even when no model is loaded.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("building ping request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("pinging ollama: %w: %w", errors.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d: %w", resp.StatusCode, errors.ErrBackendUnavailable)
	}
	return nil
}
