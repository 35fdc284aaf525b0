package ingest

import "errors"

var (
	// ErrPDFNotFound is returned when a manifest entry's PDF is missing
	// under the configured base path.
	ErrPDFNotFound = errors.New("ingest: pdf not found")

	// ErrNoChunksProduced is returned when chunking yields nothing,
	// usually because PDF text extraction failed for every page.
	ErrNoChunksProduced = errors.New("ingest: no chunks produced")

	// ErrAllEmbeddingsFailed is returned when every chunk in a document
	// failed to embed, leaving nothing usable in the store.
	ErrAllEmbeddingsFailed = errors.New("ingest: all chunks failed embedding")
)
