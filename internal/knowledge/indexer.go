package knowledge

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// IndexStats summarizes one index build.
type IndexStats struct {
	Indexed   int // documents (re)indexed this run
	Unchanged int // documents skipped because their hash matched
	Removed   int // documents dropped because the file is gone
	Chunks    int // chunks written this run
}

// Indexer builds and refreshes the knowledge base from the data directory.
type Indexer struct {
	store    *Store
	bm25     *BM25Index
	embedder Embedder
	chunker  *Chunker
	dataDir  string
	log      *zap.Logger
}

// NewIndexer wires an indexer over its storage and embedding dependencies.
func NewIndexer(store *Store, bm25 *BM25Index, embedder Embedder, chunker *Chunker, dataDir string, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{
		store:    store,
		bm25:     bm25,
		embedder: embedder,
		chunker:  chunker,
		dataDir:  dataDir,
		log:      log,
	}
}

// Build walks the data directory and indexes what changed. With full=true
// every document is reindexed regardless of its stored hash. Documents that
// disappeared from disk are removed from the store and the keyword index.
func (ix *Indexer) Build(ctx context.Context, full bool) (IndexStats, error) {
	var stats IndexStats

	docs, err := Walk(ix.dataDir)
	if err != nil {
		return stats, err
	}

	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		seen[doc.Collection+"\x00"+doc.Path] = true

		if !full {
			stored, ok, err := ix.store.DocumentHash(ctx, doc.Collection, doc.Path)
			if err != nil {
				return stats, err
			}
			if ok && stored == doc.Hash {
				stats.Unchanged++
				continue
			}
		}

		n, err := ix.indexDocument(ctx, doc)
		if err != nil {
			return stats, fmt.Errorf("index %s: %w", doc.Path, err)
		}
		stats.Indexed++
		stats.Chunks += n
		ix.log.Debug("indexed document",
			zap.String("collection", doc.Collection),
			zap.String("path", doc.Path),
			zap.Int("chunks", n))
	}

	// Purge documents whose source file is gone.
	indexed, err := ix.store.ListDocuments(ctx)
	if err != nil {
		return stats, err
	}
	for collection, paths := range indexed {
		for _, path := range paths {
			if seen[collection+"\x00"+path] {
				continue
			}
			chunkIDs, err := ix.store.DeleteDocument(ctx, collection, path)
			if err != nil {
				return stats, fmt.Errorf("remove %s: %w", path, err)
			}
			if err := ix.bm25.DeleteChunks(chunkIDs); err != nil {
				return stats, fmt.Errorf("remove %s from keyword index: %w", path, err)
			}
			stats.Removed++
		}
	}

	ix.log.Info("index build complete",
		zap.Int("indexed", stats.Indexed),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("removed", stats.Removed),
		zap.Int("chunks", stats.Chunks))
	return stats, nil
}

func (ix *Indexer) indexDocument(ctx context.Context, doc Document) (int, error) {
	content, err := os.ReadFile(doc.AbsPath)
	if err != nil {
		return 0, err
	}

	pieces := ix.chunker.Split(string(content))
	chunks := make([]Chunk, len(pieces))
	texts := make([]string, len(pieces))
	for i, text := range pieces {
		chunks[i] = Chunk{
			ID:         fmt.Sprintf("%s:%s:%d", doc.Collection, doc.Path, i),
			Collection: doc.Collection,
			Source:     doc.Path,
			Seq:        i,
			Text:       text,
		}
		texts[i] = text
	}

	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	// A shrinking document leaves chunk ids beyond the new count behind in
	// the keyword index; diff against the stored ids and purge them.
	prior, err := ix.store.ChunkIDs(ctx, doc.Collection, doc.Path)
	if err != nil {
		return 0, err
	}
	fresh := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		fresh[c.ID] = true
	}
	var stale []string
	for _, id := range prior {
		if !fresh[id] {
			stale = append(stale, id)
		}
	}

	docID, err := ix.store.UpsertDocument(ctx, doc.Collection, doc.Path, doc.Hash, doc.MtimeUnix)
	if err != nil {
		return 0, err
	}
	if err := ix.store.ReplaceChunks(ctx, docID, chunks, embeddings); err != nil {
		return 0, err
	}
	if err := ix.bm25.IndexChunks(chunks); err != nil {
		return 0, fmt.Errorf("keyword index: %w", err)
	}
	if len(stale) > 0 {
		if err := ix.bm25.DeleteChunks(stale); err != nil {
			return 0, fmt.Errorf("purge stale keyword chunks: %w", err)
		}
	}
	return len(chunks), nil
}
