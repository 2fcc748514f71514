package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T, keep int) *Tracker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewTrackerWithClient(rdb, keep, nil)
}

func TestNilTracker_IsInert(t *testing.T) {
	var tr *Tracker
	ctx := context.Background()

	tr.RecordTask(ctx, "task", 0.8, nil, 100, "code")
	if got := tr.Metrics(ctx); got.TotalTasks != 0 {
		t.Errorf("nil tracker metrics = %+v", got)
	}
	if got := tr.RecentTasks(ctx, 5); got != nil {
		t.Errorf("nil tracker recent = %v", got)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("nil tracker Close: %v", err)
	}
}

func TestRecordTask_StoresRecord(t *testing.T) {
	tr := newTestTracker(t, 100)
	ctx := context.Background()

	tr.RecordTask(ctx, "write a parser", 0.9, []IterationMetric{
		{YantraScore: 0.5, AgniScore: 0.9, Score: 0.9, Improvement: 0.4},
	}, 1500, "code")

	tasks := tr.Tasks(ctx, 10)
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(tasks))
	}
	rec := tasks[0]
	if rec.Task != "write a parser" {
		t.Errorf("task = %q", rec.Task)
	}
	if rec.InitialScore != 0.5 || rec.FinalScore != 0.9 {
		t.Errorf("scores = %v/%v, want 0.5/0.9", rec.InitialScore, rec.FinalScore)
	}
	// 0.4 / 0.5 * 100 = 80%
	if rec.ImprovementPercent != 80 {
		t.Errorf("improvement_percent = %v, want 80", rec.ImprovementPercent)
	}
	if rec.Iterations != 1 || rec.DurationMs != 1500 || rec.TaskType != "code" {
		t.Errorf("record = %+v", rec)
	}
}

func TestRecordTask_TruncatesLongTask(t *testing.T) {
	tr := newTestTracker(t, 100)
	ctx := context.Background()

	long := ""
	for i := 0; i < 30; i++ {
		long += "abcdefghij"
	}
	tr.RecordTask(ctx, long, 0.7, nil, 0, "general")

	tasks := tr.Tasks(ctx, 1)
	if len(tasks) != 1 {
		t.Fatal("task not recorded")
	}
	if len(tasks[0].Task) != 100 {
		t.Errorf("stored task length = %d, want 100", len(tasks[0].Task))
	}
}

func TestRecordTask_KeepsOnlyNewest(t *testing.T) {
	tr := newTestTracker(t, 3)
	ctx := context.Background()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tr.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		tr.RecordTask(ctx, "task", 0.8, nil, 100, "code")
	}

	tasks := tr.Tasks(ctx, 100)
	if len(tasks) != 3 {
		t.Fatalf("retained tasks = %d, want 3", len(tasks))
	}
	// Newest first: IDs 5, 4, 3.
	if tasks[0].ID != 5 || tasks[2].ID != 3 {
		t.Errorf("retained ids = %d..%d, want 5..3", tasks[0].ID, tasks[2].ID)
	}
}

func TestMetrics_Averages(t *testing.T) {
	tr := newTestTracker(t, 100)
	ctx := context.Background()

	tr.RecordTask(ctx, "a", 0.8, []IterationMetric{
		{YantraScore: 0.4, AgniScore: 0.8, Score: 0.8},
	}, 2000, "code")
	tr.RecordTask(ctx, "b", 0.6, []IterationMetric{
		{YantraScore: 0.5, AgniScore: 0.6, Score: 0.6},
	}, 4000, "code")

	m := tr.Metrics(ctx)
	if m.TotalTasks != 2 {
		t.Fatalf("total = %d, want 2", m.TotalTasks)
	}
	// (100 + 20) / 2 = 60
	if m.AvgImprovement != 60 {
		t.Errorf("avg_improvement = %v, want 60", m.AvgImprovement)
	}
	// (2 + 4) / 2 = 3
	if m.AvgLatency != 3 {
		t.Errorf("avg_latency = %v, want 3", m.AvgLatency)
	}
	// (80 + 60) / 2 = 70
	if m.AvgAccuracy != 70 {
		t.Errorf("avg_accuracy = %v, want 70", m.AvgAccuracy)
	}
	if m.AvgIterations != 1 {
		t.Errorf("avg_iterations = %v, want 1", m.AvgIterations)
	}
}

func TestQualityImprovement_UsesIterationScores(t *testing.T) {
	tr := newTestTracker(t, 100)
	ctx := context.Background()

	tr.RecordTask(ctx, "task", 0.9, []IterationMetric{
		{YantraScore: 0.5, AgniScore: 0.7, Score: 0.7, Improvement: 0.2},
		{YantraScore: 0.7, AgniScore: 0.9, Score: 0.9, Improvement: 0.2},
	}, 1000, "code")

	points := tr.QualityImprovement(ctx, 20)
	if len(points) != 1 {
		t.Fatalf("points = %d, want 1", len(points))
	}
	p := points[0]
	if p.Iteration != "T1" {
		t.Errorf("iteration label = %q, want T1", p.Iteration)
	}
	if p.Before != 70 || p.After != 90 {
		t.Errorf("before/after = %v/%v, want 70/90", p.Before, p.After)
	}
	if p.Improvement != 20 {
		t.Errorf("improvement = %v, want 20", p.Improvement)
	}
}

func TestImprovementPercent_LowInitialScore(t *testing.T) {
	tests := []struct {
		yantra, agni float64
		want         float64
	}{
		{0.5, 0.75, 50},
		{0.005, 0.5, 495},  // clamped branch: (0.495/0.1)*100
		{0.005, 0.9, 500},  // hits the 500 cap
		{0.005, 0.006, 10}, // hits the 10 floor
		{0.005, 0.005, 0},  // no improvement
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := improvementPercent(tt.yantra, tt.agni); got != tt.want {
			t.Errorf("improvementPercent(%v, %v) = %v, want %v", tt.yantra, tt.agni, got, tt.want)
		}
	}
}

func TestRecentTasks_Formatting(t *testing.T) {
	tr := newTestTracker(t, 100)
	ctx := context.Background()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tr.now = func() time.Time { return base }
	tr.RecordTask(ctx, "recent task", 0.8, []IterationMetric{
		{YantraScore: 0.4, AgniScore: 0.8, Score: 0.8},
	}, 2500, "code")

	tr.now = func() time.Time { return base.Add(10 * time.Minute) }
	recent := tr.RecentTasks(ctx, 5)
	if len(recent) != 1 {
		t.Fatalf("recent = %d, want 1", len(recent))
	}
	r := recent[0]
	if r.Improvement != "+100.0%" {
		t.Errorf("improvement = %q, want +100.0%%", r.Improvement)
	}
	if r.Duration != "2.5s" {
		t.Errorf("duration = %q, want 2.5s", r.Duration)
	}
	if r.Date != "10 minutes ago" {
		t.Errorf("date = %q, want %q", r.Date, "10 minutes ago")
	}
}
