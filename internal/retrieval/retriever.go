// Package retrieval finds document chunks relevant to a task.
//
// Documents are chunked by paragraph, with oversized paragraphs split
// into overlapping word windows. The chunk index persists as JSON next
// to the document files. Scoring is word-level Jaccard similarity, the
// same keyword matching the scorer uses for grounding, so retrieved
// chunks and grounding scores agree on what "relevant" means.
package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AP2611/Chakra-final/internal/agent"
	"github.com/AP2611/Chakra-final/internal/logging"
)

// Chunk is one indexed piece of a document.
type Chunk struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	ChunkID string `json:"chunk_id"`
}

// Retriever implements agent.Retriever over a directory of text
// documents. It is safe for concurrent use.
type Retriever struct {
	dir          string
	chunkSize    int
	chunkOverlap int
	logger       *logging.Logger

	mu     sync.RWMutex
	chunks []Chunk
}

// NewRetriever loads the chunk index from dir, building it from *.txt
// files when no index exists yet. chunkSize and chunkOverlap are in
// words.
func NewRetriever(dir string, chunkSize, chunkOverlap int, logger *logging.Logger) (*Retriever, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	r := &Retriever{
		dir:          dir,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Retriever) indexPath() string {
	return filepath.Join(r.dir, "index.json")
}

func (r *Retriever) load() error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("creating documents dir: %w", err)
	}

	data, err := os.ReadFile(r.indexPath())
	if err == nil {
		if err := json.Unmarshal(data, &r.chunks); err != nil {
			return fmt.Errorf("parsing chunk index: %w", err)
		}
		r.logger.Debug("chunk index loaded", "chunks", len(r.chunks))
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("reading chunk index: %w", err)
	}

	// No index yet. Scan the directory for text files.
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("scanning documents dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			r.logger.Warn("skipping unreadable document", "file", entry.Name(), "error", err)
			continue
		}
		r.chunks = append(r.chunks, r.chunk(string(content), entry.Name())...)
	}
	r.logger.Debug("documents indexed", "chunks", len(r.chunks))
	return nil
}

// chunk splits content into paragraph chunks, windowing paragraphs that
// exceed the word budget.
func (r *Retriever) chunk(content, source string) []Chunk {
	stem := strings.TrimSuffix(source, filepath.Ext(source))
	var chunks []Chunk
	id := 0

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, text := range r.window(para) {
			chunks = append(chunks, Chunk{
				Text:    text,
				Source:  source,
				ChunkID: fmt.Sprintf("%s_%d", stem, id),
			})
			id++
		}
	}
	return chunks
}

// window splits a paragraph into overlapping word windows when it is
// longer than chunkSize words.
func (r *Retriever) window(para string) []string {
	words := strings.Fields(para)
	if r.chunkSize <= 0 || len(words) <= r.chunkSize {
		return []string{para}
	}

	step := r.chunkSize - r.chunkOverlap
	if step < 1 {
		step = 1
	}
	var out []string
	for start := 0; start < len(words); start += step {
		end := start + r.chunkSize
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

// Retrieve returns up to k chunk texts ranked by Jaccard similarity to
// the query. Chunks with zero overlap are dropped.
func (r *Retriever) Retrieve(query string, k int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.chunks) == 0 {
		return nil, nil
	}

	queryWords := wordSet(query)
	type scored struct {
		score float64
		text  string
	}
	ranked := make([]scored, 0, len(r.chunks))
	for _, chunk := range r.chunks {
		ranked = append(ranked, scored{
			score: jaccard(queryWords, wordSet(chunk.Text)),
			text:  chunk.Text,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var out []string
	for _, s := range ranked {
		if len(out) == k {
			break
		}
		if s.score <= 0 {
			break
		}
		out = append(out, s.text)
	}
	return out, nil
}

// AddDocument chunks content under the given source name, adds it to
// the index, and persists the index to disk.
func (r *Retriever) AddDocument(content, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chunks = append(r.chunks, r.chunk(content, source)...)
	return r.saveLocked()
}

func (r *Retriever) saveLocked() error {
	data, err := json.MarshalIndent(r.chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding chunk index: %w", err)
	}
	if err := os.WriteFile(r.indexPath(), data, 0644); err != nil {
		return fmt.Errorf("writing chunk index: %w", err)
	}
	return nil
}

// ChunkCount returns the number of indexed chunks.
func (r *Retriever) ChunkCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
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

var _ agent.Retriever = (*Retriever)(nil)
