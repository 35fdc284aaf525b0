package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/brunobiangulo/fiscalis/article"
	"github.com/brunobiangulo/fiscalis/llm"
	"github.com/brunobiangulo/fiscalis/store"
)

// Batching and pacing constants (§4.J), matched to the source pipeline's
// own defaults (BATCH_SIZE_EMBED=15, DELAY_EMBEDDING=0.10s,
// DELAY_INSERT=0.05s) rather than the unrelated batchSize=32 the base
// engine uses for its own embedding path.
const (
	batchSizeEmbed = 15
	delayEmbedding = 100 * time.Millisecond
	delayInsert    = 50 * time.Millisecond

	maxInsertRetries     = 5
	insertRetryBaseDelay = 200 * time.Millisecond

	// maxEmbedChars bounds a single embedding request the same way the
	// base engine's truncateForEmbed does, leaving tokenizer headroom.
	maxEmbedChars = 24000
)

// Result reports the outcome of ingesting a single document.
type Result struct {
	DocumentID    string
	ChunksTotal   int
	ChunksOK      int
	ChunksFailed  int
	NormsDetected int
	DryRun        bool
}

// Pipeline wires the store and an embedding-capable LLM provider into
// the ingestion pipeline (§4.J).
type Pipeline struct {
	store    *store.Store
	embedder llm.Provider
	chunkCfg article.Config
}

// New builds a Pipeline around st and embedder, using the default
// chunking window (§4.B: 3500/400 chars).
func New(st *store.Store, embedder llm.Provider) *Pipeline {
	return &Pipeline{store: st, embedder: embedder, chunkCfg: article.DefaultConfig()}
}

// IngestLaw ingests one statute/regulation PDF named by entry, found
// under basePath, using the Article-First Chunker (§4.B) and norm_kind
// 'ARTICLE' (or 'PREAMBULO' for text preceding the first article). When
// dryRun is true, no document/chunk rows are deleted or written; only
// extraction and chunking run, so the caller can inspect counts.
func (p *Pipeline) IngestLaw(ctx context.Context, entry ManifestEntry, basePath string, dryRun bool) (Result, error) {
	return p.ingestDocument(ctx, documentJob{
		pdfPath:      filepath.Join(basePath, entry.Filename),
		documentID:   entry.DocumentID,
		title:        entry.Title,
		docFamily:    "LEYES_FEDERALES",
		docType:      entry.DocType,
		exerciseYear: entry.ExerciseYear,
		parse:        article.ParseHeader,
		preambleID:   "PREAMBULO",
		normKindFor:  lawNormKind,
	}, dryRun)
}

// rmfYearRe pulls a 4-digit exercise year out of an RMF filename or
// document id (e.g. "RMF2026-DOF 28122025.pdf" -> 2026).
var rmfYearRe = regexp.MustCompile(`(20\d{2})`)

// IngestRMFDir walks every PDF under basePath and ingests it as an RMF
// edition: rule headers (dotted numbers like "2.1.1") are chunked with
// norm_kind='RULE' so §4.E's deterministic rule lookup has rows to
// match against. This supersedes the source tooling's RMF path, which
// was never implemented beyond a stub.
func (p *Pipeline) IngestRMFDir(ctx context.Context, basePath string, dryRun bool) ([]Result, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("reading rmf base path: %w", err)
	}

	var results []Result
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}

		documentID := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		year := 0
		if m := rmfYearRe.FindStringSubmatch(documentID); m != nil {
			fmt.Sscanf(m[1], "%d", &year)
		}

		result, err := p.ingestDocument(ctx, documentJob{
			pdfPath:      filepath.Join(basePath, e.Name()),
			documentID:   documentID,
			title:        documentID,
			docFamily:    "RMF",
			docType:      "rmf",
			exerciseYear: year,
			parse:        article.ParseRuleHeader,
			preambleID:   "INDICE",
			normKindFor:  rmfNormKind,
		}, dryRun)
		if err != nil {
			slog.Warn("ingest: rmf document failed", "document_id", documentID, "error", err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func lawNormKind(normID string) string {
	if normID == "PREAMBULO" {
		return "PREAMBULO"
	}
	return "ARTICLE"
}

func rmfNormKind(normID string) string {
	if normID == "INDICE" {
		return "PREAMBULO"
	}
	return "RULE"
}

// documentJob parametrizes ingestDocument so IngestLaw and IngestRMFDir
// can share the same delete/upsert/extract/chunk/embed/insert sequence
// with different header parsers and norm_kind assignment.
type documentJob struct {
	pdfPath      string
	documentID   string
	title        string
	docFamily    string
	docType      string
	exerciseYear int
	parse        article.HeaderParser
	preambleID   string
	normKindFor  func(normID string) string
}

func (p *Pipeline) ingestDocument(ctx context.Context, job documentJob, dryRun bool) (Result, error) {
	result := Result{DocumentID: job.documentID, DryRun: dryRun}

	if _, err := os.Stat(job.pdfPath); err != nil {
		return result, fmt.Errorf("%w: %s", ErrPDFNotFound, job.pdfPath)
	}

	if !dryRun {
		if err := p.store.DeleteChunksForDocument(ctx, job.documentID); err != nil {
			return result, fmt.Errorf("deleting previous chunks: %w", err)
		}

		hash, err := fileHash(job.pdfPath)
		if err != nil {
			return result, fmt.Errorf("hashing pdf: %w", err)
		}

		if err := p.store.UpsertDocument(ctx, store.Document{
			DocumentID:     job.documentID,
			Title:          job.title,
			DocFamily:      job.docFamily,
			DocType:        job.docType,
			ExerciseYear:   job.exerciseYear,
			SourceFilename: filepath.Base(job.pdfPath),
			SourcePath:     job.pdfPath,
			ContentHash:    hash,
		}); err != nil {
			return result, fmt.Errorf("upserting document: %w", err)
		}
	}

	pages, err := ExtractPages(job.pdfPath)
	if err != nil {
		return result, fmt.Errorf("extracting pages: %w", err)
	}

	articleChunks := article.ChunkWithHeaderParser(pages, p.chunkCfg, job.parse, job.preambleID)
	result.ChunksTotal = len(articleChunks)
	if len(articleChunks) == 0 {
		return result, ErrNoChunksProduced
	}

	normIDs := make(map[string]bool)
	for _, c := range articleChunks {
		normIDs[c.NormID] = true
	}
	result.NormsDetected = len(normIDs)

	if dryRun {
		return result, nil
	}

	chunks := make([]store.Chunk, len(articleChunks))
	for i, c := range articleChunks {
		metadata, _ := json.Marshal(map[string]any{
			"norm_id":     c.NormID,
			"chunk_index": c.ChunkIndex,
			"char_start":  c.CharStart,
			"char_end":    c.CharEnd,
		})
		chunks[i] = store.Chunk{
			DocumentID: job.documentID,
			Text:       c.Text,
			NormKind:   job.normKindFor(c.NormID),
			NormID:     c.NormID,
			PageStart:  c.PageStart,
			PageEnd:    c.PageEnd,
			Metadata:   string(metadata),
		}
	}

	ok, failed, err := p.embedAndInsert(ctx, chunks)
	result.ChunksOK = ok
	result.ChunksFailed = failed
	if err != nil {
		return result, err
	}
	if ok == 0 {
		return result, ErrAllEmbeddingsFailed
	}
	return result, nil
}

// embedAndInsert inserts chunk rows, then generates and stores
// embeddings in batches of batchSizeEmbed. A batch-level embedding
// failure falls back to embedding each text individually so a single
// oversized or malformed text does not lose the whole batch, mirroring
// the base engine's embedChunks. Each embedding insert retries with
// exponential backoff, mirroring the LLM client's own retry loop
// repurposed for the store instead of an HTTP call.
func (p *Pipeline) embedAndInsert(ctx context.Context, chunks []store.Chunk) (ok, failed int, err error) {
	ids, err := p.store.InsertChunks(ctx, chunks)
	if err != nil {
		return 0, 0, fmt.Errorf("inserting chunks: %w", err)
	}

	for i := 0; i < len(chunks); i += batchSizeEmbed {
		end := i + batchSizeEmbed
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = truncateForEmbed(stripNewlinesForEmbed(chunks[j].Text))
		}

		embeddings, embErr := p.embedder.Embed(ctx, texts)
		if embErr != nil {
			slog.Warn("ingest: embedding batch failed, falling back to individual",
				"batch_start", i, "batch_end", end, "error", embErr)
			for j, text := range texts {
				single, serr := p.embedder.Embed(ctx, []string{text})
				if serr != nil || len(single) == 0 || len(single[0]) == 0 {
					slog.Warn("ingest: embedding chunk failed", "chunk_id", ids[i+j], "error", serr)
					failed++
					continue
				}
				if insErr := p.insertEmbeddingWithRetry(ctx, ids[i+j], single[0]); insErr != nil {
					slog.Warn("ingest: storing embedding failed", "chunk_id", ids[i+j], "error", insErr)
					failed++
					continue
				}
				ok++
			}
			time.Sleep(delayEmbedding * 2)
			continue
		}

		for j, emb := range embeddings {
			if len(emb) == 0 {
				failed++
				continue
			}
			if insErr := p.insertEmbeddingWithRetry(ctx, ids[i+j], emb); insErr != nil {
				slog.Warn("ingest: storing embedding failed", "chunk_id", ids[i+j], "error", insErr)
				failed++
				continue
			}
			ok++
		}
		time.Sleep(delayEmbedding)
	}

	return ok, failed, nil
}

// insertEmbeddingWithRetry stores a chunk's embedding, making up to
// maxInsertRetries attempts with exponential backoff between them
// (200ms, 400ms, 800ms, ...).
func (p *Pipeline) insertEmbeddingWithRetry(ctx context.Context, chunkID int64, emb []float32) error {
	var lastErr error
	for attempt := 0; attempt < maxInsertRetries; attempt++ {
		if attempt > 0 {
			delay := insertRetryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := p.store.InsertEmbedding(ctx, chunkID, emb); err != nil {
			lastErr = err
			continue
		}
		time.Sleep(delayInsert)
		return nil
	}
	return fmt.Errorf("chunk %d: max retries exceeded: %w", chunkID, lastErr)
}

// stripNewlinesForEmbed replaces newlines with spaces before a text is
// sent to the embedding model (§4.J step 5).
func stripNewlinesForEmbed(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}

// truncateForEmbed truncates text to maxEmbedChars on a word boundary,
// matching the base engine's embedding-length guard.
func truncateForEmbed(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := strings.LastIndex(text[:maxEmbedChars], " ")
	if cut <= 0 {
		cut = maxEmbedChars
	}
	return text[:cut]
}

// fileHash returns the hex-encoded SHA-256 digest of the file at path,
// stored as the document's content_hash for change detection.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
