package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension (§6 canonical schema, adapted to SQLite +
// sqlite-vec; see DESIGN.md for the storage-engine decision).
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Document registry. document_id is the caller-assigned canonical ID
-- (e.g. CODIGO_FISCAL_DE_LA_FEDERACION), not a surrogate key.
CREATE TABLE IF NOT EXISTS documents (
    document_id     TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    doc_family      TEXT NOT NULL DEFAULT '',
    doc_type        TEXT NOT NULL DEFAULT 'ley',
    exercise_year   INTEGER NOT NULL DEFAULT 0,
    source_filename TEXT NOT NULL,
    source_path     TEXT NOT NULL,
    content_hash    TEXT NOT NULL DEFAULT '',
    published_date  DATE,
    created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Article/rule-bounded chunks. norm_kind/norm_id identify the statute
-- article or RMF rule a chunk belongs to; chunks sharing a norm_id are
-- contiguous sub-chunks of the same article-first or rule block.
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id    INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
    text        TEXT NOT NULL,
    norm_kind   TEXT NOT NULL DEFAULT '',
    norm_id     TEXT NOT NULL DEFAULT '',
    page_start  INTEGER,
    page_end    INTEGER,
    metadata    JSON
);

-- Vector embeddings via sqlite-vec.
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id  INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Per-document ingestion-run audit trail (§10.1 supplemented feature).
CREATE TABLE IF NOT EXISTS ingest_runs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id   TEXT NOT NULL,
    filename      TEXT NOT NULL,
    chunks_ok     INTEGER NOT NULL DEFAULT 0,
    chunks_failed INTEGER NOT NULL DEFAULT 0,
    dry_run       INTEGER NOT NULL DEFAULT 0,
    started_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at   DATETIME
);

-- Query audit log (§10.2 supplemented feature).
CREATE TABLE IF NOT EXISTS query_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    question        TEXT NOT NULL,
    fiscal_year     INTEGER,
    used_year       INTEGER,
    route           TEXT,
    evidence_count  INTEGER,
    answer_len      INTEGER,
    elapsed_ms      INTEGER,
    created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_norm ON chunks(document_id, norm_kind, norm_id);
CREATE INDEX IF NOT EXISTS idx_documents_type_year ON documents(doc_type, exercise_year);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_document ON ingest_runs(document_id);
`, embeddingDim)
}
