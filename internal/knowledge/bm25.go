package knowledge

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"
)

// BM25Hit is one keyword-search result.
type BM25Hit struct {
	ChunkID string
	Score   float64
}

// bm25Doc is the shape indexed into bleve for each chunk.
type bm25Doc struct {
	Collection string `json:"collection"`
	Source     string `json:"source"`
	Text       string `json:"text"`
}

// BM25Index provides keyword search over chunk text, filtered by collection.
type BM25Index struct {
	index bleve.Index
	path  string
}

// NewBM25Index opens or creates the bleve index next to the chunk database.
// A corrupted index is deleted and rebuilt from scratch; the sqlite store is
// the source of truth, so losing the keyword index only costs a reindex.
func NewBM25Index(dbPath string, log *zap.Logger) (*BM25Index, error) {
	if log == nil {
		log = zap.NewNop()
	}
	indexPath := dbPath + ".bleve"

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create BM25 index: %w", err)
		}
	} else if err != nil {
		log.Warn("BM25 index corrupted, recreating", zap.Error(err))
		if index != nil {
			index.Close()
		}
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove corrupted BM25 index: %w", err)
		}
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("recreate BM25 index: %w", err)
		}
	}

	return &BM25Index{index: index, path: indexPath}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	chunkMapping := bleve.NewDocumentMapping()

	collectionField := bleve.NewTextFieldMapping()
	collectionField.Analyzer = keyword.Name
	collectionField.Store = true
	chunkMapping.AddFieldMappingsAt("collection", collectionField)

	sourceField := bleve.NewTextFieldMapping()
	sourceField.Analyzer = keyword.Name
	sourceField.Store = true
	sourceField.Index = false
	chunkMapping.AddFieldMappingsAt("source", sourceField)

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	chunkMapping.AddFieldMappingsAt("text", textField)

	indexMapping.DefaultMapping = chunkMapping
	return indexMapping
}

// IndexChunks adds or replaces chunks in one batch.
func (b *BM25Index) IndexChunks(chunks []Chunk) error {
	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := bm25Doc{Collection: c.Collection, Source: c.Source, Text: c.Text}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("batch chunk %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// DeleteChunks removes chunks by id.
func (b *BM25Index) DeleteChunks(ids []string) error {
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// Search runs a keyword query restricted to one collection and returns up to
// n hits ordered by BM25 score.
func (b *BM25Index) Search(query, collection string, n int) ([]BM25Hit, error) {
	textQuery := bleve.NewMatchQuery(query)
	textQuery.SetField("text")

	collectionQuery := bleve.NewTermQuery(collection)
	collectionQuery.SetField("collection")

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(textQuery, collectionQuery))
	req.Size = n

	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("BM25 search: %w", err)
	}

	hits := make([]BM25Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, BM25Hit{ChunkID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Close releases the index.
func (b *BM25Index) Close() error { return b.index.Close() }
