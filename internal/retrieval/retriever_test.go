package retrieval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestRetriever(t *testing.T, dir string) *Retriever {
	t.Helper()
	r, err := NewRetriever(dir, 500, 50, nil)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	return r
}

func TestNewRetriever_ScansTextFiles(t *testing.T) {
	dir := t.TempDir()
	doc := "The solar system has eight planets.\n\nJupiter is the largest planet."
	if err := os.WriteFile(filepath.Join(dir, "space.txt"), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	r := newTestRetriever(t, dir)
	if r.ChunkCount() != 2 {
		t.Errorf("chunks = %d, want 2 (one per paragraph)", r.ChunkCount())
	}
}

func TestRetrieve_RanksByOverlap(t *testing.T) {
	dir := t.TempDir()
	r := newTestRetriever(t, dir)
	if err := r.AddDocument(
		"cats are small carnivorous mammals\n\nthe stock market closed higher today\n\ncats enjoy sleeping in warm places",
		"mixed.txt",
	); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	got, err := r.Retrieve("why do cats sleep so much", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no chunks retrieved")
	}
	if !strings.Contains(got[0], "cats") {
		t.Errorf("top chunk = %q, want a cats chunk", got[0])
	}
	for _, text := range got {
		if strings.Contains(text, "stock market") {
			t.Error("zero-overlap filtering failed: stock market chunk retrieved")
		}
	}
}

func TestRetrieve_ZeroOverlapReturnsNothing(t *testing.T) {
	dir := t.TempDir()
	r := newTestRetriever(t, dir)
	if err := r.AddDocument("alpha beta gamma", "greek.txt"); err != nil {
		t.Fatal(err)
	}

	got, err := r.Retrieve("unrelated query words", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d chunks with zero overlap, want 0", len(got))
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	r := newTestRetriever(t, t.TempDir())
	got, err := r.Retrieve("anything", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got != nil {
		t.Errorf("got %v from empty index, want nil", got)
	}
}

func TestAddDocument_PersistsIndex(t *testing.T) {
	dir := t.TempDir()
	r := newTestRetriever(t, dir)
	if err := r.AddDocument("a persisted paragraph about databases", "db.txt"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	// A fresh retriever must load the saved index, not rescan files.
	r2 := newTestRetriever(t, dir)
	if r2.ChunkCount() != 1 {
		t.Fatalf("reloaded chunks = %d, want 1", r2.ChunkCount())
	}
	got, err := r2.Retrieve("databases", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d chunks after reload, want 1", len(got))
	}
}

func TestWindow_SplitsLongParagraphs(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRetriever(dir, 10, 2, nil)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	words := make([]string, 25)
	for i := range words {
		words[i] = "w" + string(rune('a'+i))
	}
	if err := r.AddDocument(strings.Join(words, " "), "long.txt"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	// 25 words, window 10, step 8: [0,10) [8,18) [16,25)
	if r.ChunkCount() != 3 {
		t.Errorf("chunks = %d, want 3", r.ChunkCount())
	}
}
