// Package memory is the durable solution store.
//
// High-scoring solutions are written to SQLite keyed by an md5
// fingerprint of the task text. A stored solution is only replaced when
// a new one for the same task scores strictly higher, so the best known
// solution per task survives. Similar-task recall uses word-level
// Jaccard similarity, good enough for prompt seeding without an
// embedding model.
package memory

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/AP2611/Chakra-final/internal/agent"
	"github.com/AP2611/Chakra-final/internal/errors"
	"github.com/AP2611/Chakra-final/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_hash TEXT UNIQUE NOT NULL,
    task TEXT NOT NULL,
    solution TEXT NOT NULL,
    quality_score REAL NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    metadata TEXT
);
`

// similarityFloor filters out recalled tasks that share too few words
// with the query task.
const similarityFloor = 0.2

// Store implements agent.Memory on SQLite.
type Store struct {
	db       *sql.DB
	minScore float64
	logger   *logging.Logger
}

// NewStore opens (creating if needed) the database at path. Recalled
// solutions must score at least minScore.
func NewStore(path string, minScore float64, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.NewPersistenceError("memory.open", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewPersistenceError("memory.open", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewPersistenceError("memory.migrate", err)
	}

	return &Store{db: db, minScore: minScore, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func hashTask(task string) string {
	sum := md5.Sum([]byte(task))
	return hex.EncodeToString(sum[:])
}

// Store writes a solution, replacing an existing one for the same task
// only when the new score is strictly higher.
func (s *Store) Store(ctx context.Context, task, solution string, score float64, meta agent.StoreMetadata) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return errors.NewPersistenceError("memory.store", err)
	}
	hash := hashTask(task)

	var existing float64
	err = s.db.QueryRowContext(ctx,
		`SELECT quality_score FROM memories WHERE task_hash = ?`, hash).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO memories (task_hash, task, solution, quality_score, metadata)
			 VALUES (?, ?, ?, ?, ?)`,
			hash, task, solution, score, string(metaJSON))
		if err != nil {
			return errors.NewPersistenceError("memory.store", err)
		}
		s.logger.Debug("memory stored", "task_hash", hash, "score", score)
		return nil
	case err != nil:
		return errors.NewPersistenceError("memory.store", err)
	}

	if score <= existing {
		s.logger.Debug("memory kept existing solution",
			"task_hash", hash, "existing", existing, "candidate", score)
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE memories SET solution = ?, quality_score = ?, metadata = ? WHERE task_hash = ?`,
		solution, score, string(metaJSON), hash)
	if err != nil {
		return errors.NewPersistenceError("memory.store", err)
	}
	s.logger.Debug("memory replaced solution",
		"task_hash", hash, "old", existing, "new", score)
	return nil
}

// RetrieveSimilar recalls up to limit past solutions whose tasks share
// words with task. Candidates below the score floor or with Jaccard
// similarity at or below 0.2 are dropped.
func (s *Store) RetrieveSimilar(ctx context.Context, task string, limit int) ([]agent.SimilarSolution, error) {
	taskWords := wordSet(task)

	// Over-fetch by score, then filter by similarity.
	rows, err := s.db.QueryContext(ctx,
		`SELECT task, solution, quality_score FROM memories
		 WHERE quality_score >= ? ORDER BY quality_score DESC LIMIT ?`,
		s.minScore, limit*2)
	if err != nil {
		return nil, errors.NewPersistenceError("memory.retrieve", err)
	}
	defer rows.Close()

	var similar []agent.SimilarSolution
	for rows.Next() {
		var rec agent.SimilarSolution
		if err := rows.Scan(&rec.Task, &rec.Solution, &rec.Score); err != nil {
			return nil, errors.NewPersistenceError("memory.retrieve", err)
		}
		rec.Similarity = jaccard(taskWords, wordSet(rec.Task))
		if rec.Similarity > similarityFloor {
			similar = append(similar, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("memory.retrieve", err)
	}

	sort.SliceStable(similar, func(i, j int) bool {
		if similar[i].Similarity != similar[j].Similarity {
			return similar[i].Similarity > similar[j].Similarity
		}
		return similar[i].Score > similar[j].Score
	})
	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

// BestExamples returns the highest-scoring stored solutions regardless
// of task similarity.
func (s *Store) BestExamples(ctx context.Context, limit int) ([]agent.SimilarSolution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task, solution, quality_score FROM memories
		 ORDER BY quality_score DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewPersistenceError("memory.best", err)
	}
	defer rows.Close()

	var best []agent.SimilarSolution
	for rows.Next() {
		var rec agent.SimilarSolution
		if err := rows.Scan(&rec.Task, &rec.Solution, &rec.Score); err != nil {
			return nil, errors.NewPersistenceError("memory.best", err)
		}
		best = append(best, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("memory.best", err)
	}
	return best, nil
}

// Count returns the number of stored memories.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, errors.NewPersistenceError("memory.count", err)
	}
	return n, nil
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

var _ agent.Memory = (*Store)(nil)

// String implements fmt.Stringer for diagnostics.
func (s *Store) String() string {
	return fmt.Sprintf("memory.Store(min_score=%.2f)", s.minScore)
}
