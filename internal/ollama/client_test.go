package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AP2611/Chakra-final/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "qwen2.5:1.5b", true, 5*time.Second)
}

func collectStream(t *testing.T, ch <-chan Chunk) (string, Chunk) {
	t.Helper()
	var sb strings.Builder
	var last Chunk
	for chunk := range ch {
		last = chunk
		if chunk.State == StateStreaming {
			sb.WriteString(chunk.Content)
		}
	}
	return sb.String(), last
}

func TestChat_ReturnsTrimmedContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Stream {
			t.Error("Chat must set stream=false")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"  hello world  "},"done":true}`)
	})

	got, err := client.Chat(context.Background(), "say hello", "be brief", client.Options())
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello world" {
		t.Errorf("Chat = %q, want %q", got, "hello world")
	}
}

func TestChat_EmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	})

	_, err := client.Chat(context.Background(), "task", "", client.Options())
	if !errors.Is(err, errors.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestChat_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Chat(context.Background(), "task", "", client.Options())
	if !errors.Is(err, errors.ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("backend unavailability should be retryable")
	}
}

func TestChatStream_NDJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if !req.Stream {
			t.Error("ChatStream must set stream=true")
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"def "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"add"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"():"},"done":false}`)
		fmt.Fprintln(w, `{"done":true}`)
	})

	ch, err := client.ChatStream(context.Background(), "write add", "", client.Options())
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	text, last := collectStream(t, ch)
	if text != "def add():" {
		t.Errorf("streamed text = %q, want %q", text, "def add():")
	}
	if last.State != StateDone {
		t.Errorf("final state = %v, want StateDone", last.State)
	}
}

func TestChatStream_SSEPrefixedLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `data: {"message":{"role":"assistant","content":"hi"},"done":false}`)
		fmt.Fprintln(w, `data: {"done":true}`)
	})

	ch, err := client.ChatStream(context.Background(), "task", "", client.Options())
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	text, last := collectStream(t, ch)
	if text != "hi" {
		t.Errorf("streamed text = %q, want %q", text, "hi")
	}
	if last.State != StateDone {
		t.Errorf("final state = %v, want StateDone", last.State)
	}
}

func TestChatStream_SkipsMalformedLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `not json at all`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"ok"},"done":false}`)
		fmt.Fprintln(w, `{"done":true}`)
	})

	ch, err := client.ChatStream(context.Background(), "task", "", client.Options())
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	text, last := collectStream(t, ch)
	if text != "ok" {
		t.Errorf("streamed text = %q, want %q", text, "ok")
	}
	if last.State != StateDone {
		t.Errorf("final state = %v, want StateDone", last.State)
	}
}

func TestChatStream_MidStreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"par"},"done":false}`)
		fmt.Fprintln(w, `{"error":"model crashed"}`)
	})

	ch, err := client.ChatStream(context.Background(), "task", "", client.Options())
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	text, last := collectStream(t, ch)
	if text != "par" {
		t.Errorf("streamed text = %q, want %q", text, "par")
	}
	if last.State != StateFailed {
		t.Fatalf("final state = %v, want StateFailed", last.State)
	}
	if !errors.Is(last.Err, errors.ErrGenerationFailed) {
		t.Errorf("last.Err = %v, want ErrGenerationFailed", last.Err)
	}
}

func TestChatStream_EOFWithoutDoneIsCompletion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"cut"},"done":false}`)
	})

	ch, err := client.ChatStream(context.Background(), "task", "", client.Options())
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	text, last := collectStream(t, ch)
	if text != "cut" {
		t.Errorf("streamed text = %q, want %q", text, "cut")
	}
	if last.State != StateDone {
		t.Errorf("final state = %v, want StateDone", last.State)
	}
}

func TestOptions_Presets(t *testing.T) {
	fast := FastOptions()
	if fast.NumPredict != 384 || fast.NumCtx != 1024 || fast.Temperature != 0.5 {
		t.Errorf("unexpected fast preset: %+v", fast)
	}
	normal := NormalOptions()
	if normal.NumPredict != 640 || normal.NumCtx != 2048 || normal.Temperature != 0.6 {
		t.Errorf("unexpected normal preset: %+v", normal)
	}

	budgeted := fast.WithMaxTokens(512)
	if budgeted.NumPredict != 512 {
		t.Errorf("WithMaxTokens = %d, want 512", budgeted.NumPredict)
	}
	if fast.NumPredict != 384 {
		t.Error("WithMaxTokens must not mutate the receiver")
	}
	if unchanged := fast.WithMaxTokens(0); unchanged.NumPredict != 384 {
		t.Errorf("WithMaxTokens(0) changed budget to %d", unchanged.NumPredict)
	}
}
