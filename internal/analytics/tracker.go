// Package analytics records per-task refinement metrics in Redis.
//
// Analytics are strictly best-effort. When Redis is unreachable at
// startup the tracker degrades to a no-op, recording errors are logged
// and swallowed, and query methods return empty results. Nothing in the
// refinement path depends on this package succeeding.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AP2611/Chakra-final/internal/logging"
)

const (
	keyCounter = "analytics:task_counter"
	keyTaskIDs = "analytics:task_ids"
)

func keyTask(id int64) string             { return fmt.Sprintf("analytics:task:%d", id) }
func keyTaskIters(id int64) string        { return fmt.Sprintf("analytics:task:%d:iterations", id) }
func keyIteration(id int64, n int) string { return fmt.Sprintf("analytics:iteration:%d:%d", id, n) }

// IterationMetric is the per-round slice of a session the tracker
// records.
type IterationMetric struct {
	YantraScore float64
	AgniScore   float64
	Score       float64
	Improvement float64
}

// TaskRecord is one recorded task.
type TaskRecord struct {
	ID                 int64   `json:"id"`
	Task               string  `json:"task"`
	InitialScore       float64 `json:"initial_score"`
	FinalScore         float64 `json:"final_score"`
	Improvement        float64 `json:"improvement"`
	ImprovementPercent float64 `json:"improvement_percent"`
	Iterations         int     `json:"iterations"`
	DurationMs         float64 `json:"duration_ms"`
	TaskType           string  `json:"task_type"`
	Timestamp          string  `json:"timestamp"`
}

// AggregateMetrics summarizes all retained tasks.
type AggregateMetrics struct {
	AvgImprovement float64 `json:"avg_improvement"`
	AvgLatency     float64 `json:"avg_latency"`
	AvgAccuracy    float64 `json:"avg_accuracy"`
	AvgIterations  float64 `json:"avg_iterations"`
	TotalTasks     int     `json:"total_tasks"`
}

// QualityPoint is one before/after pair for the quality chart.
type QualityPoint struct {
	Iteration   string  `json:"iteration"`
	Before      float64 `json:"before"`
	After       float64 `json:"after"`
	Improvement float64 `json:"improvement"`
}

// PerformancePoint is one hourly bucket of latency and accuracy.
type PerformancePoint struct {
	Time     string  `json:"time"`
	Latency  float64 `json:"latency"`
	Accuracy float64 `json:"accuracy"`
}

// RecentTask is a task formatted for display.
type RecentTask struct {
	ID          int64  `json:"id"`
	Task        string `json:"task"`
	Improvement string `json:"improvement"`
	Duration    string `json:"duration"`
	Iterations  int    `json:"iterations"`
	Date        string `json:"date"`
}

// Tracker records metrics in Redis. A nil Tracker is valid and inert.
type Tracker struct {
	rdb    *redis.Client
	keep   int
	logger *logging.Logger
	now    func() time.Time
}

// NewTracker connects to Redis and returns a Tracker. When the ping
// fails the error is logged and a nil Tracker is returned so callers
// run without analytics.
func NewTracker(addr, password string, db, keepTasks int, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("analytics disabled, redis unreachable", "addr", addr, "error", err)
		rdb.Close()
		return nil
	}

	logger.Info("analytics connected", "addr", addr)
	return &Tracker{rdb: rdb, keep: keepTasks, logger: logger, now: time.Now}
}

// NewTrackerWithClient wires an existing Redis client. Used by tests.
func NewTrackerWithClient(rdb *redis.Client, keepTasks int, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Tracker{rdb: rdb, keep: keepTasks, logger: logger, now: time.Now}
}

// Close releases the Redis connection.
func (t *Tracker) Close() error {
	if t == nil || t.rdb == nil {
		return nil
	}
	return t.rdb.Close()
}

// improvementPercent turns a raw before/after pair into a percentage,
// with clamping so near-zero initial scores do not produce absurd
// values.
func improvementPercent(yantra, agni float64) float64 {
	improvement := agni - yantra
	switch {
	case yantra > 0.01:
		return improvement / yantra * 100
	case agni > yantra:
		return math.Min(500.0, math.Max(10.0, improvement/0.1*100))
	case improvement > 0:
		return math.Min(200.0, improvement/0.1*100)
	default:
		return 0.0
	}
}

// RecordTask stores one completed task and its per-round metrics, then
// trims the retained set. Failures are logged, never returned.
func (t *Tracker) RecordTask(ctx context.Context, task string, finalScore float64, iterations []IterationMetric, durationMs float64, taskType string) {
	if t == nil || t.rdb == nil {
		return
	}

	initial := finalScore
	final := finalScore
	improvement := 0.0
	percent := 0.0
	if len(iterations) > 0 {
		first := iterations[0]
		yantra := first.YantraScore
		if yantra == 0 {
			yantra = first.Score
		}
		agni := first.AgniScore
		if agni == 0 {
			agni = first.Score
		}
		if agni == 0 || agni == yantra {
			agni = finalScore
		}
		initial = yantra
		final = agni
		improvement = agni - yantra
		percent = improvementPercent(yantra, agni)
	}

	id, err := t.rdb.Incr(ctx, keyCounter).Result()
	if err != nil {
		t.logger.Warn("analytics record failed", "error", err)
		return
	}

	now := t.now()
	record := map[string]any{
		"id":                  strconv.FormatInt(id, 10),
		"task":                truncate(task, 100),
		"initial_score":       formatFloat(initial),
		"final_score":         formatFloat(final),
		"improvement":         formatFloat(improvement),
		"improvement_percent": formatFloat(round2(percent)),
		"iterations":          strconv.Itoa(len(iterations)),
		"duration_ms":         formatFloat(durationMs),
		"task_type":           taskType,
		"timestamp":           now.Format(time.RFC3339Nano),
	}

	pipe := t.rdb.Pipeline()
	pipe.HSet(ctx, keyTask(id), record)
	pipe.ZAdd(ctx, keyTaskIDs, redis.Z{Score: float64(now.UnixNano()) / 1e9, Member: strconv.FormatInt(id, 10)})
	for i, iter := range iterations {
		n := i + 1
		pipe.HSet(ctx, keyIteration(id, n), map[string]any{
			"task_id":       strconv.FormatInt(id, 10),
			"iteration_num": strconv.Itoa(n),
			"score":         formatFloat(iter.Score),
			"improvement":   formatFloat(iter.Improvement),
			"timestamp":     now.Format(time.RFC3339Nano),
		})
		pipe.SAdd(ctx, keyTaskIters(id), strconv.Itoa(n))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("analytics record failed", "task_id", id, "error", err)
		return
	}

	t.cleanup(ctx)
}

// cleanup trims retention to the configured task count.
func (t *Tracker) cleanup(ctx context.Context) {
	ids, err := t.rdb.ZRevRange(ctx, keyTaskIDs, 0, -1).Result()
	if err != nil || len(ids) <= t.keep {
		return
	}
	for _, idStr := range ids[t.keep:] {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		iters, _ := t.rdb.SMembers(ctx, keyTaskIters(id)).Result()
		pipe := t.rdb.Pipeline()
		pipe.Del(ctx, keyTask(id))
		pipe.ZRem(ctx, keyTaskIDs, idStr)
		for _, n := range iters {
			num, err := strconv.Atoi(n)
			if err != nil {
				continue
			}
			pipe.Del(ctx, keyIteration(id, num))
		}
		pipe.Del(ctx, keyTaskIters(id))
		if _, err := pipe.Exec(ctx); err != nil {
			t.logger.Warn("analytics cleanup failed", "task_id", id, "error", err)
		}
	}
}

func (t *Tracker) taskIDs(ctx context.Context, limit int) []int64 {
	raw, err := t.rdb.ZRevRange(ctx, keyTaskIDs, 0, int64(limit-1)).Result()
	if err != nil {
		t.logger.Warn("analytics query failed", "error", err)
		return nil
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *Tracker) task(ctx context.Context, id int64) (TaskRecord, bool) {
	data, err := t.rdb.HGetAll(ctx, keyTask(id)).Result()
	if err != nil || len(data) == 0 {
		return TaskRecord{}, false
	}
	return TaskRecord{
		ID:                 id,
		Task:               data["task"],
		InitialScore:       parseFloat(data["initial_score"]),
		FinalScore:         parseFloat(data["final_score"]),
		Improvement:        parseFloat(data["improvement"]),
		ImprovementPercent: parseFloat(data["improvement_percent"]),
		Iterations:         parseInt(data["iterations"]),
		DurationMs:         parseFloat(data["duration_ms"]),
		TaskType:           data["task_type"],
		Timestamp:          data["timestamp"],
	}, true
}

// Tasks returns up to limit retained tasks, newest first.
func (t *Tracker) Tasks(ctx context.Context, limit int) []TaskRecord {
	if t == nil || t.rdb == nil {
		return nil
	}
	var tasks []TaskRecord
	for _, id := range t.taskIDs(ctx, limit) {
		if rec, ok := t.task(ctx, id); ok {
			tasks = append(tasks, rec)
		}
	}
	return tasks
}

// Metrics aggregates all retained tasks.
func (t *Tracker) Metrics(ctx context.Context) AggregateMetrics {
	if t == nil || t.rdb == nil {
		return AggregateMetrics{}
	}
	tasks := t.Tasks(ctx, t.keep)
	if len(tasks) == 0 {
		return AggregateMetrics{}
	}

	var improvements, iterations, accuracies float64
	var latencies []float64
	for _, rec := range tasks {
		improvements += rec.ImprovementPercent
		iterations += float64(rec.Iterations)
		accuracies += rec.FinalScore * 100
		if rec.DurationMs > 0 {
			latencies = append(latencies, rec.DurationMs/1000)
		}
	}

	n := float64(len(tasks))
	m := AggregateMetrics{
		AvgImprovement: round1(improvements / n),
		AvgAccuracy:    round1(accuracies / n),
		AvgIterations:  round1(iterations / n),
		TotalTasks:     len(tasks),
	}
	if len(latencies) > 0 {
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		m.AvgLatency = round1(sum / float64(len(latencies)))
	}
	return m
}

// QualityImprovement returns before/after chart points for the most
// recent tasks.
func (t *Tracker) QualityImprovement(ctx context.Context, limit int) []QualityPoint {
	if t == nil || t.rdb == nil {
		return nil
	}

	var points []QualityPoint
	for _, rec := range t.Tasks(ctx, 10) {
		before := rec.InitialScore * 100
		after := rec.FinalScore * 100

		iters, _ := t.rdb.SMembers(ctx, keyTaskIters(rec.ID)).Result()
		if len(iters) > 0 {
			nums := make([]int, 0, len(iters))
			for _, s := range iters {
				if n, err := strconv.Atoi(s); err == nil {
					nums = append(nums, n)
				}
			}
			sort.Ints(nums)
			if first, ok := t.iterationScore(ctx, rec.ID, nums[0]); ok {
				before = first * 100
			}
			if last, ok := t.iterationScore(ctx, rec.ID, nums[len(nums)-1]); ok {
				after = last * 100
			}
		}

		points = append(points, QualityPoint{
			Iteration:   fmt.Sprintf("T%d", rec.ID),
			Before:      round1(before),
			After:       round1(after),
			Improvement: round1(after - before),
		})
	}
	if len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points
}

func (t *Tracker) iterationScore(ctx context.Context, id int64, n int) (float64, bool) {
	data, err := t.rdb.HGetAll(ctx, keyIteration(id, n)).Result()
	if err != nil || len(data) == 0 {
		return 0, false
	}
	return parseFloat(data["score"]), true
}

// PerformanceHistory buckets the last hours of tasks by hour of day,
// averaging latency and accuracy per bucket.
func (t *Tracker) PerformanceHistory(ctx context.Context, hours int) []PerformancePoint {
	if t == nil || t.rdb == nil {
		return nil
	}
	cutoff := t.now().Add(-time.Duration(hours) * time.Hour)

	type bucket struct {
		latencies  []float64
		accuracies []float64
	}
	buckets := make(map[string]*bucket)
	for _, rec := range t.Tasks(ctx, 1000) {
		ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
		if err != nil || ts.Before(cutoff) {
			continue
		}
		key := ts.Truncate(time.Hour).Format("15:00")
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		if rec.DurationMs > 0 {
			b.latencies = append(b.latencies, rec.DurationMs/1000)
		}
		b.accuracies = append(b.accuracies, rec.FinalScore*100)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []PerformancePoint
	for _, k := range keys {
		b := buckets[k]
		p := PerformancePoint{Time: k}
		if len(b.latencies) > 0 {
			var sum float64
			for _, l := range b.latencies {
				sum += l
			}
			p.Latency = math.Round(sum / float64(len(b.latencies)))
		}
		if len(b.accuracies) > 0 {
			var sum float64
			for _, a := range b.accuracies {
				sum += a
			}
			p.Accuracy = round1(sum / float64(len(b.accuracies)))
		}
		out = append(out, p)
	}
	return out
}

// RecentTasks returns the latest tasks formatted for display.
func (t *Tracker) RecentTasks(ctx context.Context, limit int) []RecentTask {
	if t == nil || t.rdb == nil {
		return nil
	}
	now := t.now()

	var out []RecentTask
	for _, rec := range t.Tasks(ctx, limit) {
		ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
		if err != nil {
			continue
		}
		duration := "N/A"
		if rec.DurationMs > 0 {
			duration = fmt.Sprintf("%.1fs", rec.DurationMs/1000)
		}
		out = append(out, RecentTask{
			ID:          rec.ID,
			Task:        rec.Task,
			Improvement: fmt.Sprintf("+%.1f%%", rec.ImprovementPercent),
			Duration:    duration,
			Iterations:  rec.Iterations,
			Date:        humanTime(now, ts),
		})
	}
	return out
}

func humanTime(now, ts time.Time) string {
	diff := now.Sub(ts)
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return "Today, " + ts.Format("3:04 PM")
	case diff < 48*time.Hour:
		return "Yesterday, " + ts.Format("3:04 PM")
	default:
		return ts.Format("Jan 2, 3:04 PM")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
func round2(f float64) float64 { return math.Round(f*100) / 100 }
