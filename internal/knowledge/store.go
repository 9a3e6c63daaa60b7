// Package knowledge implements the retrieval side of the system: a sqlite
// chunk store, a bleve BM25 index, embeddings, and a hybrid retriever over
// named collections of documents.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Chunk is the unit of retrieval: a bounded span of document text with its
// provenance. Score is only populated on chunks returned from a search.
type Chunk struct {
	ID         string  `json:"id"`
	Collection string  `json:"collection"`
	Source     string  `json:"source"` // document path relative to the data dir
	Seq        int     `json:"seq"`    // position within the source document
	Text       string  `json:"text"`
	Score      float64 `json:"score,omitempty"`
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}

// Store persists documents and their chunks (with embedding vectors) in
// sqlite. One writer at a time: indexing is a startup or background
// activity, queries are read-only.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the chunk database at dbPath.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	// WAL keeps reads cheap while the indexer writes.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open chunk database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping chunk database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id     INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		path       TEXT NOT NULL,
		hash       TEXT NOT NULL,
		mtime_unix INTEGER NOT NULL,
		indexed_at INTEGER NOT NULL,
		UNIQUE (collection, path)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id   TEXT PRIMARY KEY,
		doc_id     INTEGER NOT NULL,
		collection TEXT NOT NULL,
		source     TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		text       TEXT NOT NULL,
		embedding  BLOB,
		dim        INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (doc_id) REFERENCES documents(doc_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// DocumentHash returns the stored content hash for a document, or ok=false
// if the document has never been indexed.
func (s *Store) DocumentHash(ctx context.Context, collection, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT hash FROM documents WHERE collection = ? AND path = ?`,
		collection, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup document hash: %w", err)
	}
	return hash, true, nil
}

// UpsertDocument records a document and returns its id.
func (s *Store) UpsertDocument(ctx context.Context, collection, path, hash string, mtimeUnix int64) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, path, hash, mtime_unix, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, path) DO UPDATE SET
			hash = excluded.hash,
			mtime_unix = excluded.mtime_unix,
			indexed_at = excluded.indexed_at`,
		collection, path, hash, mtimeUnix, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("upsert document %s: %w", path, err)
	}

	var docID int64
	err = s.db.QueryRowContext(ctx,
		`SELECT doc_id FROM documents WHERE collection = ? AND path = ?`,
		collection, path).Scan(&docID)
	if err != nil {
		return 0, fmt.Errorf("fetch document id for %s: %w", path, err)
	}
	return docID, nil
}

// ReplaceChunks swaps a document's chunks atomically. embeddings[i] belongs
// to chunks[i]; a nil embedding stores an empty vector.
func (s *Store) ReplaceChunks(ctx context.Context, docID int64, chunks []Chunk, embeddings [][]float32) error {
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("clear old chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, doc_id, collection, source, seq, text, embedding, dim)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		var blob []byte
		dim := 0
		if embeddings[i] != nil {
			blob = encodeVector(embeddings[i])
			dim = len(embeddings[i])
		}
		if _, err := stmt.ExecContext(ctx, c.ID, docID, c.Collection, c.Source, c.Seq, c.Text, blob, dim); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// ChunkIDs returns the ids of a document's stored chunks, in sequence order.
// Callers use it to diff the BM25 index against a fresh chunking.
func (s *Store) ChunkIDs(ctx context.Context, collection, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id FROM chunks c
		JOIN documents d ON d.doc_id = c.doc_id
		WHERE d.collection = ? AND d.path = ?
		ORDER BY c.seq`, collection, path)
	if err != nil {
		return nil, fmt.Errorf("list chunks for %s: %w", path, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument removes a document and its chunks, returning the ids of the
// removed chunks so the caller can purge the BM25 index.
func (s *Store) DeleteDocument(ctx context.Context, collection, path string) ([]string, error) {
	ids, err := s.ChunkIDs(ctx, collection, path)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunks WHERE doc_id IN
			(SELECT doc_id FROM documents WHERE collection = ? AND path = ?)`,
		collection, path); err != nil {
		return nil, fmt.Errorf("delete chunks for %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND path = ?`,
		collection, path); err != nil {
		return nil, fmt.Errorf("delete document %s: %w", path, err)
	}
	return ids, tx.Commit()
}

// ListDocuments returns collection/path pairs for every indexed document.
func (s *Store) ListDocuments(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT collection, path FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string][]string)
	for rows.Next() {
		var collection, path string
		if err := rows.Scan(&collection, &path); err != nil {
			return nil, err
		}
		docs[collection] = append(docs[collection], path)
	}
	return docs, rows.Err()
}

// ListCollections returns the names of all collections, sorted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Stats returns document and chunk counts for one collection. An unknown
// collection is an error.
func (s *Store) Stats(ctx context.Context, collection string) (CollectionStats, error) {
	stats := CollectionStats{Name: collection}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&stats.Documents)
	if err != nil {
		return stats, fmt.Errorf("collection stats: %w", err)
	}
	if stats.Documents == 0 {
		return stats, fmt.Errorf("collection %q does not exist", collection)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&stats.Chunks)
	if err != nil {
		return stats, fmt.Errorf("collection stats: %w", err)
	}
	return stats, nil
}

// storedChunk is a chunk row with its decoded embedding.
type storedChunk struct {
	chunk  Chunk
	vector []float32
}

// chunksWithVectors loads every chunk in a collection along with its
// embedding vector, for the cosine-similarity scan.
func (s *Store) chunksWithVectors(ctx context.Context, collection string) ([]storedChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, collection, source, seq, text, embedding, dim
		FROM chunks WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", collection, err)
	}
	defer rows.Close()

	var out []storedChunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		var dim int
		if err := rows.Scan(&c.ID, &c.Collection, &c.Source, &c.Seq, &c.Text, &blob, &dim); err != nil {
			return nil, err
		}
		sc := storedChunk{chunk: c}
		if dim > 0 && len(blob) == dim*4 {
			sc.vector = decodeVector(blob)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetChunk fetches a single chunk by id.
func (s *Store) GetChunk(ctx context.Context, id string) (Chunk, error) {
	var c Chunk
	err := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, collection, source, seq, text
		FROM chunks WHERE chunk_id = ?`, id).Scan(&c.ID, &c.Collection, &c.Source, &c.Seq, &c.Text)
	if err != nil {
		return c, fmt.Errorf("fetch chunk %s: %w", id, err)
	}
	return c, nil
}
