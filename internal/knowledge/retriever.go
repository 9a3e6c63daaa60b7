package knowledge

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Candidate pool size per ranking signal before fusion.
const fusionPoolSize = 50

// RRF constant; the standard 60 from the literature.
const rrfOffset = 60.0

// Retriever answers "top K chunks for this query in this collection" by
// fusing BM25 keyword rank with embedding cosine rank via Reciprocal Rank
// Fusion. Either signal may fail or be empty; the other still ranks.
type Retriever struct {
	store    *Store
	bm25     *BM25Index
	embedder Embedder
	log      *zap.Logger
}

// NewRetriever wires a retriever over the store, keyword index and embedder.
func NewRetriever(store *Store, bm25 *BM25Index, embedder Embedder, log *zap.Logger) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{store: store, bm25: bm25, embedder: embedder, log: log}
}

// Search returns up to topK chunks from one collection ranked by fused
// relevance. Searching a collection that does not exist is an error the
// caller is expected to tolerate (the orchestrator skips that collection
// and continues with the others).
func (r *Retriever) Search(ctx context.Context, query, collection string, topK int) ([]Chunk, error) {
	if topK <= 0 {
		topK = 5
	}
	if _, err := r.store.Stats(ctx, collection); err != nil {
		return nil, err
	}

	// Keyword rank.
	bm25Hits, err := r.bm25.Search(query, collection, fusionPoolSize)
	if err != nil {
		r.log.Warn("keyword search failed, ranking on embeddings only",
			zap.String("collection", collection), zap.Error(err))
		bm25Hits = nil
	}

	// Embedding rank.
	vecHits, err := r.searchEmbeddings(ctx, query, collection, fusionPoolSize)
	if err != nil {
		r.log.Warn("embedding search failed, ranking on keywords only",
			zap.String("collection", collection), zap.Error(err))
		vecHits = nil
	}

	if len(bm25Hits) == 0 && len(vecHits) == 0 {
		return nil, nil
	}

	// Reciprocal Rank Fusion.
	scores := make(map[string]float64)
	for i, h := range bm25Hits {
		scores[h.ChunkID] += 1.0 / (rrfOffset + float64(i+1))
	}
	for i, h := range vecHits {
		scores[h.ChunkID] += 1.0 / (rrfOffset + float64(i+1))
	}

	type ranked struct {
		id    string
		score float64
	}
	fused := make([]ranked, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, ranked{id, score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].id < fused[j].id // deterministic tiebreak
	})
	if len(fused) > topK {
		fused = fused[:topK]
	}

	chunks := make([]Chunk, 0, len(fused))
	for _, f := range fused {
		chunk, err := r.store.GetChunk(ctx, f.id)
		if err != nil {
			r.log.Warn("ranked chunk missing from store", zap.String("chunk", f.id), zap.Error(err))
			continue
		}
		chunk.Score = f.score
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (r *Retriever) searchEmbeddings(ctx context.Context, query, collection string, n int) ([]BM25Hit, error) {
	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec := vectors[0]

	stored, err := r.store.chunksWithVectors(ctx, collection)
	if err != nil {
		return nil, err
	}

	hits := make([]BM25Hit, 0, len(stored))
	for _, sc := range stored {
		if sc.vector == nil {
			continue
		}
		sim := cosineSimilarity(queryVec, sc.vector)
		if sim <= 0 {
			continue
		}
		hits = append(hits, BM25Hit{ChunkID: sc.chunk.ID, Score: sim})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}
