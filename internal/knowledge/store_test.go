package knowledge

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedDocument(t *testing.T, store *Store, collection, path string, texts []string) int64 {
	t.Helper()
	ctx := context.Background()

	docID, err := store.UpsertDocument(ctx, collection, path, "hash-"+path, 1000)
	if err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	chunks := make([]Chunk, len(texts))
	embeddings := make([][]float32, len(texts))
	embedder := NewHashEmbedder(16)
	for i, text := range texts {
		chunks[i] = Chunk{
			ID:         fmt.Sprintf("%s:%s:%d", collection, path, i),
			Collection: collection,
			Source:     path,
			Seq:        i,
			Text:       text,
		}
		vecs, _ := embedder.EmbedBatch(ctx, []string{text})
		embeddings[i] = vecs[0]
	}
	if err := store.ReplaceChunks(ctx, docID, chunks, embeddings); err != nil {
		t.Fatalf("ReplaceChunks failed: %v", err)
	}
	return docID
}

func TestDocumentHashRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, found, err := store.DocumentHash(ctx, "course", "w1/intro.md"); err != nil || found {
		t.Errorf("unknown document: found=%v err=%v", found, err)
	}

	if _, err := store.UpsertDocument(ctx, "course", "w1/intro.md", "abc123", 42); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	hash, found, err := store.DocumentHash(ctx, "course", "w1/intro.md")
	if err != nil || !found {
		t.Fatalf("expected document: found=%v err=%v", found, err)
	}
	if hash != "abc123" {
		t.Errorf("hash = %q, want abc123", hash)
	}

	// Upsert with a new hash updates in place.
	id1, _ := store.UpsertDocument(ctx, "course", "w1/intro.md", "def456", 43)
	id2, _ := store.UpsertDocument(ctx, "course", "w1/intro.md", "def456", 43)
	if id1 != id2 {
		t.Errorf("upsert created a new id: %d vs %d", id1, id2)
	}
	hash, _, _ = store.DocumentHash(ctx, "course", "w1/intro.md")
	if hash != "def456" {
		t.Errorf("hash after update = %q", hash)
	}
}

func TestReplaceChunksAndStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docID := seedDocument(t, store, "course", "w1/rag.md", []string{
		"RAG retrieves context before generating.",
		"Chunking splits documents into spans.",
	})

	stats, err := store.Stats(ctx, "course")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Documents != 1 || stats.Chunks != 2 {
		t.Errorf("stats = %+v, want 1 doc / 2 chunks", stats)
	}

	// Replacing with fewer chunks drops the old ones.
	newChunks := []Chunk{{ID: "course:w1/rag.md:0", Collection: "course", Source: "w1/rag.md", Seq: 0, Text: "rewritten"}}
	if err := store.ReplaceChunks(ctx, docID, newChunks, [][]float32{nil}); err != nil {
		t.Fatalf("ReplaceChunks failed: %v", err)
	}
	stats, _ = store.Stats(ctx, "course")
	if stats.Chunks != 1 {
		t.Errorf("chunks after replace = %d, want 1", stats.Chunks)
	}

	chunk, err := store.GetChunk(ctx, "course:w1/rag.md:0")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if chunk.Text != "rewritten" {
		t.Errorf("chunk text = %q", chunk.Text)
	}
}

func TestStatsUnknownCollection(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Stats(context.Background(), "nope"); err == nil {
		t.Error("Stats on an unknown collection must error")
	}
}

func TestDeleteDocumentReturnsChunkIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, store, "transcripts", "lec1.txt", []string{"part one", "part two", "part three"})

	ids, err := store.DeleteDocument(ctx, "transcripts", "lec1.txt")
	if err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 chunk ids, got %d", len(ids))
	}

	if _, found, _ := store.DocumentHash(ctx, "transcripts", "lec1.txt"); found {
		t.Error("document should be gone")
	}
	if _, err := store.Stats(ctx, "transcripts"); err == nil {
		t.Error("collection should be empty after deleting its only document")
	}
}

func TestListCollectionsSorted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, store, "transcripts", "a.txt", []string{"x"})
	seedDocument(t, store, "course", "b.md", []string{"y"})

	names, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections failed: %v", err)
	}
	if len(names) != 2 || names[0] != "course" || names[1] != "transcripts" {
		t.Errorf("collections = %v", names)
	}

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs["course"]) != 1 || len(docs["transcripts"]) != 1 {
		t.Errorf("documents = %v", docs)
	}
}
