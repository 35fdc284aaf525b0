//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

// ---------------------------------------------------------------------------
// Document CRUD
// ---------------------------------------------------------------------------

func sampleDoc(id string) Document {
	return Document{
		DocumentID:     id,
		Title:          "Código Fiscal de la Federación",
		DocFamily:      "CFF",
		DocType:        "ley",
		ExerciseYear:   0,
		SourceFilename: "cff.pdf",
		SourcePath:     "/corpus/cff.pdf",
		ContentHash:    "abc123",
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION")
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("upserting document: %v", err)
	}

	got, err := s.GetDocument(ctx, doc.DocumentID)
	if err != nil {
		t.Fatalf("getting document: %v", err)
	}
	if got.Title != doc.Title {
		t.Errorf("got title %q, want %q", got.Title, doc.Title)
	}
	if got.ExerciseYear != 0 {
		t.Errorf("got exercise_year %d, want 0 (evergreen)", got.ExerciseYear)
	}
}

func TestUpsertDocumentUpdatesExistingRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION")
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	doc.Title = "Código Fiscal de la Federación (reformado)"
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("listing documents: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected exactly 1 document after re-upsert, got %d", len(docs))
	}
	if docs[0].Title != doc.Title {
		t.Errorf("got title %q, want updated %q", docs[0].Title, doc.Title)
	}
}

// ---------------------------------------------------------------------------
// Chunk insert / structural lookup (E1, E2)
// ---------------------------------------------------------------------------

func mustInsertDoc(t *testing.T, s *Store, doc Document) {
	t.Helper()
	if err := s.UpsertDocument(context.Background(), doc); err != nil {
		t.Fatalf("inserting document %s: %v", doc.DocumentID, err)
	}
}

func TestInsertChunksAndLookupArticle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustInsertDoc(t, s, sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION"))

	chunks := []Chunk{
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "Artículo 29. Texto del artículo 29.", NormKind: "ARTICLE", NormID: "29", PageStart: 10, PageEnd: 10},
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "Artículo 29-A. Texto del 29-A.", NormKind: "ARTICLE", NormID: "29-A", PageStart: 11, PageEnd: 11},
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "Artículo 29-A Bis. Texto del 29-A Bis.", NormKind: "ARTICLE", NormID: "29-A-BIS", PageStart: 12, PageEnd: 12},
	}
	if _, err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	got, err := s.LookupArticle(ctx, "CODIGO_FISCAL_DE_LA_FEDERACION", "29-A", false)
	if err != nil {
		t.Fatalf("looking up article: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 match for article 29-A with BIS excluded, got %d", len(got))
	}
	if got[0].NormID != "29-A" {
		t.Errorf("got norm_id %q, want 29-A", got[0].NormID)
	}
	if got[0].Origin != "article_lookup" {
		t.Errorf("got origin %q, want article_lookup", got[0].Origin)
	}

	withBis, err := s.LookupArticle(ctx, "CODIGO_FISCAL_DE_LA_FEDERACION", "29-A", true)
	if err != nil {
		t.Fatalf("looking up article with bis included: %v", err)
	}
	if len(withBis) != 2 {
		t.Fatalf("expected 2 matches (29-A and 29-A-BIS) when bis requested, got %d", len(withBis))
	}
}

func TestLookupArticleNoMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION"))

	got, err := s.LookupArticle(ctx, "CODIGO_FISCAL_DE_LA_FEDERACION", "999", false)
	if err != nil {
		t.Fatalf("looking up missing article: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestLookupRMFRulePrefersBodyOverIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := Document{DocumentID: "RMF_2024", Title: "RMF 2024", DocType: "rmf", ExerciseYear: 2024, SourceFilename: "rmf2024.pdf", SourcePath: "/corpus/rmf2024.pdf"}
	mustInsertDoc(t, s, doc)

	chunks := []Chunk{
		{DocumentID: "RMF_2024", Text: "Índice\n2.1.1. Valor probatorio del acuse de recibo ....... 12", NormKind: "RULE", NormID: "2.1.1", PageStart: 2, PageEnd: 2},
		{DocumentID: "RMF_2024", Text: "2.1.1. Valor probatorio del acuse de recibo electrónico\nPara los efectos de...", NormKind: "RULE", NormID: "2.1.1", PageStart: 12, PageEnd: 12},
	}
	if _, err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	got, err := s.LookupRMFRule(ctx, 2024, "2.1.1", "", 50)
	if err != nil {
		t.Fatalf("looking up RMF rule: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the body chunk to survive the index filter, got %d", len(got))
	}
	if got[0].PageStart != 12 {
		t.Errorf("got page_start %d, want 12 (the body chunk)", got[0].PageStart)
	}
}

func TestLookupRMFRuleWrongYearNoMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, Document{DocumentID: "RMF_2024", Title: "RMF 2024", DocType: "rmf", ExerciseYear: 2024, SourceFilename: "rmf2024.pdf", SourcePath: "/x"})
	if _, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: "RMF_2024", Text: "2.1.1. Cuerpo de la regla", NormKind: "RULE", NormID: "2.1.1", PageStart: 1, PageEnd: 1},
	}); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	got, err := s.LookupRMFRule(ctx, 2023, "2.1.1", "", 50)
	if err != nil {
		t.Fatalf("looking up RMF rule for wrong year: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches for a year with no RMF edition, got %d", len(got))
	}
}

// ---------------------------------------------------------------------------
// Keyword search
// ---------------------------------------------------------------------------

func TestKeywordSearchFindsInsertedText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION"))
	if _, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "Los comprobantes fiscales digitales por Internet", NormKind: "ARTICLE", NormID: "29", PageStart: 1, PageEnd: 1},
	}); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	results, err := s.KeywordSearch(ctx, []string{"comprobantes"}, nil, YearFilter{Year: 0, IncludeEvergreen: true, IncludeNullYear: true}, 10)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 keyword match, got %d", len(results))
	}
	if results[0].Origin != "keyword" {
		t.Errorf("got origin %q, want keyword", results[0].Origin)
	}
}

func TestKeywordSearchCaseInsensitiveSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION"))
	if _, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "plazo de cinco años", NormKind: "ARTICLE", NormID: "67", PageStart: 1, PageEnd: 1},
	}); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	got, err := s.KeywordSearch(ctx, []string{"CINCO AÑOS"}, nil, YearFilter{IncludeEvergreen: true, IncludeNullYear: true}, 10)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 case-insensitive substring match, got %d", len(got))
	}
}

func TestKeywordSearchOrdersLeyBeforeRMF(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION"))
	mustInsertDoc(t, s, Document{DocumentID: "RMF_2024", Title: "RMF 2024", DocType: "rmf", ExerciseYear: 2024, SourceFilename: "rmf2024.pdf", SourcePath: "/x"})
	if _, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: "RMF_2024", Text: "requisitos de la deduccion segun la regla", NormKind: "RULE", NormID: "3.3.1", PageStart: 1, PageEnd: 1},
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "requisitos de la deduccion segun el articulo", NormKind: "ARTICLE", NormID: "27", PageStart: 1, PageEnd: 1},
	}); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	got, err := s.KeywordSearch(ctx, []string{"requisitos"}, nil, YearFilter{Year: 2024, IncludeEvergreen: true, IncludeNullYear: true}, 10)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].DocType != "ley" {
		t.Errorf("expected ley chunk first, got doc_type %q", got[0].DocType)
	}
}

// ---------------------------------------------------------------------------
// Embeddings / vector search
// ---------------------------------------------------------------------------

func TestInsertEmbeddingAndVectorSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION"))

	ids, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "chunk a", NormKind: "ARTICLE", NormID: "1", PageStart: 1, PageEnd: 1},
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "chunk b", NormKind: "ARTICLE", NormID: "2", PageStart: 2, PageEnd: 2},
	})
	if err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	if err := s.InsertEmbedding(ctx, ids[0], []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("inserting embedding: %v", err)
	}
	if err := s.InsertEmbedding(ctx, ids[1], []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("inserting embedding: %v", err)
	}

	results, err := s.VectorSearch(ctx, []float32{1, 0, 0, 0}, nil,
		YearFilter{Year: 0, IncludeEvergreen: true, IncludeNullYear: true}, 2)
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one vector search result")
	}
	if results[0].ChunkID != ids[0] {
		t.Errorf("expected closest chunk to be %d, got %d", ids[0], results[0].ChunkID)
	}
}

func TestChunkHasEmbedding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION"))
	ids, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "chunk", NormKind: "ARTICLE", NormID: "1", PageStart: 1, PageEnd: 1},
	})
	if err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	has, err := s.ChunkHasEmbedding(ctx, ids[0])
	if err != nil {
		t.Fatalf("checking embedding presence: %v", err)
	}
	if has {
		t.Fatal("expected no embedding before InsertEmbedding")
	}

	if err := s.InsertEmbedding(ctx, ids[0], []float32{0.1, 0.2, 0.3, 0.4}); err != nil {
		t.Fatalf("inserting embedding: %v", err)
	}
	has, err = s.ChunkHasEmbedding(ctx, ids[0])
	if err != nil {
		t.Fatalf("checking embedding presence: %v", err)
	}
	if !has {
		t.Fatal("expected embedding to be present after InsertEmbedding")
	}
}

// ---------------------------------------------------------------------------
// Delete / re-ingest
// ---------------------------------------------------------------------------

func TestDeleteChunksForDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, sampleDoc("CODIGO_FISCAL_DE_LA_FEDERACION"))
	if _, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "chunk", NormKind: "ARTICLE", NormID: "1", PageStart: 1, PageEnd: 1},
	}); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	if err := s.DeleteChunksForDocument(ctx, "CODIGO_FISCAL_DE_LA_FEDERACION"); err != nil {
		t.Fatalf("deleting chunks: %v", err)
	}

	remaining, err := s.GetChunksByDocument(ctx, "CODIGO_FISCAL_DE_LA_FEDERACION")
	if err != nil {
		t.Fatalf("listing chunks: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected 0 remaining chunks after delete, got %d", len(remaining))
	}
}

// ---------------------------------------------------------------------------
// Audit logging
// ---------------------------------------------------------------------------

func TestLogIngestRunAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.LogIngestRun(ctx, "CODIGO_FISCAL_DE_LA_FEDERACION", "cff.pdf", 120, 2, false); err != nil {
		t.Fatalf("logging ingest run: %v", err)
	}
	if err := s.LogQuery(ctx, "¿qué dice el articulo 29?", 2025, 2025, "structural", 1, 240, 120); err != nil {
		t.Fatalf("logging query: %v", err)
	}
}
