package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AP2611/Chakra-final/internal/analytics"
	"github.com/AP2611/Chakra-final/internal/config"
	"github.com/AP2611/Chakra-final/internal/dispatch"
	"github.com/AP2611/Chakra-final/internal/errors"
	"github.com/AP2611/Chakra-final/internal/orchestrator"
)

// fakeProcessor serves canned results and event streams.
type fakeProcessor struct {
	result *orchestrator.SessionResult
	err    error
	events []orchestrator.Event

	lastReq orchestrator.Request
}

func (p *fakeProcessor) Process(ctx context.Context, req orchestrator.Request) (*orchestrator.SessionResult, error) {
	p.lastReq = req
	return p.result, p.err
}

func (p *fakeProcessor) ProcessStream(ctx context.Context, req orchestrator.Request) <-chan orchestrator.Event {
	p.lastReq = req
	ch := make(chan orchestrator.Event, len(p.events))
	for _, ev := range p.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func (p *fakeProcessor) FastMode() bool { return true }

func sampleResult() *orchestrator.SessionResult {
	return &orchestrator.SessionResult{
		Task:          "write a parser",
		FinalSolution: "final text",
		FinalScore:    0.8,
		Iterations: []orchestrator.RoundResult{
			{Iteration: 1, YantraScore: 0.5, AgniScore: 0.8, Score: 0.8, Improvement: 0.3},
		},
		TotalIterations: 1,
		StopReason:      orchestrator.StopMaxIterations,
	}
}

func newTestServer(t *testing.T, proc Processor, tracker *analytics.Tracker, d *dispatch.Dispatcher) *httptest.Server {
	t.Helper()
	cfg := config.ServerConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	ts := httptest.NewServer(New(cfg, proc, tracker, d, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestHealthAndRoot(t *testing.T) {
	ts := newTestServer(t, &fakeProcessor{}, nil, nil)

	var health map[string]string
	if resp := getJSON(t, ts.URL+"/health", &health); resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
	if health["status"] != "healthy" {
		t.Errorf("health body = %v", health)
	}

	var root map[string]string
	getJSON(t, ts.URL+"/", &root)
	if root["message"] != "Agent System API" || root["status"] != "running" {
		t.Errorf("root body = %v", root)
	}
}

func TestProcess_ReturnsSessionResult(t *testing.T) {
	proc := &fakeProcessor{result: sampleResult()}
	ts := newTestServer(t, proc, nil, nil)

	resp, err := http.Post(ts.URL+"/process", "application/json",
		strings.NewReader(`{"task":"write a parser","is_code":true}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got orchestrator.SessionResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FinalSolution != "final text" || got.FinalScore != 0.8 {
		t.Errorf("body = %+v", got)
	}
	if !proc.lastReq.IsCode || proc.lastReq.Task != "write a parser" {
		t.Errorf("request not forwarded: %+v", proc.lastReq)
	}
}

func TestProcess_BadJSON(t *testing.T) {
	ts := newTestServer(t, &fakeProcessor{}, nil, nil)

	resp, err := http.Post(ts.URL+"/process", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProcess_ValidationFailure(t *testing.T) {
	proc := &fakeProcessor{err: errors.NewConfigError("task", "must not be empty")}
	ts := newTestServer(t, proc, nil, nil)

	resp, err := http.Post(ts.URL+"/process", "application/json", strings.NewReader(`{"task":""}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["detail"] == "" {
		t.Error("missing detail field")
	}
}

func TestProcessStream_SSEFraming(t *testing.T) {
	proc := &fakeProcessor{events: []orchestrator.Event{
		orchestrator.NewStartEvent(),
		orchestrator.NewIterationStartEvent(1),
		orchestrator.NewEndEvent(sampleResult()),
	}}
	ts := newTestServer(t, proc, nil, nil)

	for _, path := range []string{"/process-stream", "/process/stream"} {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(`{"task":"t"}`))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
			t.Errorf("%s Content-Type = %q", path, ct)
		}
		if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
			t.Errorf("%s Cache-Control = %q", path, cc)
		}

		frames := strings.Split(strings.TrimSuffix(string(body), "\n\n"), "\n\n")
		if len(frames) != 3 {
			t.Fatalf("%s frames = %d, want 3: %q", path, len(frames), body)
		}
		for i, frame := range frames {
			if !strings.HasPrefix(frame, "data: ") {
				t.Fatalf("%s frame %d = %q", path, i, frame)
			}
			var ev map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev); err != nil {
				t.Fatalf("%s frame %d: %v", path, i, err)
			}
			if ev["type"] == "" {
				t.Errorf("%s frame %d missing type", path, i)
			}
		}

		var last map[string]any
		_ = json.Unmarshal([]byte(strings.TrimPrefix(frames[2], "data: ")), &last)
		if last["type"] != "end" || last["final_solution"] != "final text" {
			t.Errorf("%s end frame = %v", path, last)
		}
	}
}

func TestAnalyticsEndpoints_NoTracker(t *testing.T) {
	ts := newTestServer(t, &fakeProcessor{}, nil, nil)

	var metrics analytics.AggregateMetrics
	if resp := getJSON(t, ts.URL+"/analytics/metrics", &metrics); resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
	if metrics.TotalTasks != 0 {
		t.Errorf("metrics = %+v, want zero value", metrics)
	}

	var quality map[string][]analytics.QualityPoint
	getJSON(t, ts.URL+"/analytics/quality-improvement", &quality)
	if quality["data"] == nil || len(quality["data"]) != 0 {
		t.Errorf("quality = %v, want empty array", quality)
	}

	var tasks map[string][]analytics.RecentTask
	getJSON(t, ts.URL+"/analytics/recent-tasks?limit=5", &tasks)
	if tasks["tasks"] == nil || len(tasks["tasks"]) != 0 {
		t.Errorf("tasks = %v, want empty array", tasks)
	}
}

func TestProcess_RecordsAnalytics(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tracker := analytics.NewTrackerWithClient(rdb, 10, nil)
	d := dispatch.NewDispatcher(nil)
	t.Cleanup(d.Close)

	proc := &fakeProcessor{result: sampleResult()}
	ts := newTestServer(t, proc, tracker, d)

	resp, err := http.Post(ts.URL+"/process", "application/json",
		strings.NewReader(`{"task":"write a parser","is_code":true}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	d.Wait()

	recorded := tracker.Tasks(context.Background(), 10)
	if len(recorded) != 1 {
		t.Fatalf("recorded tasks = %d, want 1", len(recorded))
	}
	got := recorded[0]
	if got.Task != "write a parser" || got.FinalScore != 0.8 || got.TaskType != "code" {
		t.Errorf("record = %+v", got)
	}
	if got.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", got.Iterations)
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, &fakeProcessor{}, nil, nil)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/process", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow-origin = %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got allow-origin = %q", got)
	}
}
