// Package store persists the legal corpus (documents, article/rule
// chunks, embeddings) in SQLite with the sqlite-vec extension, and
// implements the structural and hybrid retrieval
// operations of §4.E/§4.F.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Document represents a row in the documents table (§3).
type Document struct {
	DocumentID     string    `json:"document_id"`
	Title          string    `json:"title"`
	DocFamily      string    `json:"doc_family"`
	DocType        string    `json:"doc_type"`
	ExerciseYear   int       `json:"exercise_year"`
	SourceFilename string    `json:"source_filename"`
	SourcePath     string    `json:"source_path"`
	ContentHash    string    `json:"content_hash"`
	PublishedDate  string    `json:"published_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Chunk represents a row in the chunks table (§3).
type Chunk struct {
	ChunkID    int64  `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	NormKind   string `json:"norm_kind"`
	NormID     string `json:"norm_id"`
	PageStart  int    `json:"page_start"`
	PageEnd    int    `json:"page_end"`
	Metadata   string `json:"metadata,omitempty"`
}

// RetrievalResult holds a chunk with its retrieval score and document
// context, as produced by VectorSearch and KeywordSearch (§4.F).
type RetrievalResult struct {
	ChunkID        int64   `json:"chunk_id"`
	DocumentID     string  `json:"document_id"`
	Text           string  `json:"text"`
	NormKind       string  `json:"norm_kind"`
	NormID         string  `json:"norm_id"`
	PageStart      int     `json:"page_start"`
	PageEnd        int     `json:"page_end"`
	DocType        string  `json:"doc_type"`
	ExerciseYear   int     `json:"exercise_year"`
	SourceFilename string  `json:"source_filename"`
	PublishedDate  string  `json:"published_date,omitempty"`
	Score          float64 `json:"score"`
	Origin         string  `json:"origin"` // "article_lookup", "rmf_rule_lookup", "vector", or "keyword"
}

// Store wraps the SQLite database for all fiscalis persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record, keyed by
// document_id (the caller-assigned canonical ID, not a surrogate key).
func (s *Store) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, title, doc_family, doc_type, exercise_year,
			source_filename, source_path, content_hash, published_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			title = excluded.title,
			doc_family = excluded.doc_family,
			doc_type = excluded.doc_type,
			exercise_year = excluded.exercise_year,
			source_filename = excluded.source_filename,
			source_path = excluded.source_path,
			content_hash = excluded.content_hash,
			published_date = excluded.published_date,
			updated_at = CURRENT_TIMESTAMP
	`, doc.DocumentID, doc.Title, doc.DocFamily, doc.DocType, doc.ExerciseYear,
		doc.SourceFilename, doc.SourcePath, doc.ContentHash, nullableString(doc.PublishedDate))
	return err
}

// GetDocument retrieves a document by its canonical ID.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	doc := &Document{}
	var published sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, title, doc_family, doc_type, exercise_year,
			source_filename, source_path, content_hash, published_date, created_at, updated_at
		FROM documents WHERE document_id = ?
	`, documentID).Scan(&doc.DocumentID, &doc.Title, &doc.DocFamily, &doc.DocType, &doc.ExerciseYear,
		&doc.SourceFilename, &doc.SourcePath, &doc.ContentHash, &published, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.PublishedDate = published.String
	return doc, nil
}

// ListDocuments returns all documents ordered by title.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, title, doc_family, doc_type, exercise_year,
			source_filename, source_path, content_hash, published_date, created_at, updated_at
		FROM documents ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var published sql.NullString
		if err := rows.Scan(&d.DocumentID, &d.Title, &d.DocFamily, &d.DocType, &d.ExerciseYear,
			&d.SourceFilename, &d.SourcePath, &d.ContentHash, &published, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.PublishedDate = published.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteChunksForDocument removes all chunks belonging to a document,
// together with their vec_chunks embedding rows, in one transaction ahead
// of a re-ingest.
func (s *Store) DeleteChunksForDocument(ctx context.Context, documentID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM vec_chunks WHERE chunk_id IN (SELECT chunk_id FROM chunks WHERE document_id = ?)",
			documentID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
		return err
	})
}

// --- Chunk operations ---

// InsertChunks inserts chunk rows for a document and returns their
// assigned chunk IDs in input order.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) ([]int64, error) {
	ids := make([]int64, len(chunks))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (document_id, text, norm_kind, norm_id, page_start, page_end, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, c := range chunks {
			res, err := stmt.ExecContext(ctx,
				c.DocumentID, c.Text, c.NormKind, c.NormID, c.PageStart, c.PageEnd, nullableString(c.Metadata))
			if err != nil {
				return err
			}
			ids[i], err = res.LastInsertId()
			if err != nil {
				return err
			}
		}
		return nil
	})

	return ids, err
}

// GetChunksByDocument returns all chunks for a document, ordered by
// insertion (article/rule) order.
func (s *Store) GetChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, text, norm_kind, norm_id, page_start, page_end, metadata
		FROM chunks WHERE document_id = ? ORDER BY chunk_id
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var metadata sql.NullString
		var pageStart, pageEnd sql.NullInt64
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Text, &c.NormKind, &c.NormID,
			&pageStart, &pageEnd, &metadata); err != nil {
			return nil, err
		}
		c.PageStart = int(pageStart.Int64)
		c.PageEnd = int(pageEnd.Int64)
		c.Metadata = metadata.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// --- Embedding operations ---

// InsertEmbedding stores a vector embedding for a chunk.
func (s *Store) InsertEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)",
		chunkID, serializeFloat32(embedding))
	return err
}

// ChunkHasEmbedding reports whether a chunk already has a stored vector.
func (s *Store) ChunkHasEmbedding(ctx context.Context, chunkID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vec_chunks WHERE chunk_id = ?", chunkID).Scan(&count)
	return count > 0, err
}

// LogIngestRun records an ingestion pass for audit (§10.1).
func (s *Store) LogIngestRun(ctx context.Context, documentID, filename string, ok, failed int, dryRun bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (document_id, filename, chunks_ok, chunks_failed, dry_run, finished_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, documentID, filename, ok, failed, boolToInt(dryRun))
	return err
}

// LogQuery records a query for audit (§10.2).
func (s *Store) LogQuery(ctx context.Context, question string, fiscalYear, usedYear int, route string, evidenceCount, answerLen int, elapsedMS int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (question, fiscal_year, used_year, route, evidence_count, answer_len, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, question, fiscalYear, usedYear, route, evidenceCount, answerLen, elapsedMS)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
