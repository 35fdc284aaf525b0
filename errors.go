package fiscalis

import "errors"

// Sentinel errors per spec.md §7's error taxonomy. Categories 3 and 4
// (retrieval-empty, partial evidence truncation) are explicitly *not*
// errors in the spec and so have no sentinel here; they are handled
// inline by retrieval/orchestrator.go and retrieval/prompt.go.
var (
	// ErrConfigInvalid is returned for a configuration that cannot start
	// the service: missing API key, unreachable database (§7 category 1,
	// fatal at startup).
	ErrConfigInvalid = errors.New("fiscalis: invalid configuration")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("fiscalis: store is closed")

	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("fiscalis: document not found")

	// ErrEmbeddingFailed is returned when an embedding call fails outside
	// the ingestion pipeline's own retry/degrade handling (§7 category 2).
	ErrEmbeddingFailed = errors.New("fiscalis: embedding request failed")

	// ErrLLMUnavailable is returned when the chat LLM provider cannot be
	// reached at all (§7 category 2: per-request transport error).
	ErrLLMUnavailable = errors.New("fiscalis: llm provider unavailable")

	// ErrQuestionRequired is returned for a chat request with an empty
	// question.
	ErrQuestionRequired = errors.New("fiscalis: question is required")
)
