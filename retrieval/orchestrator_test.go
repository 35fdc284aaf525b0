//go:build cgo

package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/fiscalis/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustInsertDoc(t *testing.T, s *store.Store, doc store.Document) {
	t.Helper()
	if err := s.UpsertDocument(context.Background(), doc); err != nil {
		t.Fatalf("inserting document %s: %v", doc.DocumentID, err)
	}
}

func TestYearChainWithinDefaultWindow(t *testing.T) {
	got := yearChain(2025)
	want := []int{2025, 2024, 2023, 2022}
	if !equalInts(got, want) {
		t.Errorf("yearChain(2025) = %v, want %v", got, want)
	}
}

func TestYearChainFutureYearDecreasesToFloor(t *testing.T) {
	// §8 boundary: year 2027 requested -> chain is [2027, 2026, ..., 2022].
	got := yearChain(2027)
	want := []int{2027, 2026, 2025, 2024, 2023, 2022}
	if !equalInts(got, want) {
		t.Errorf("yearChain(2027) = %v, want %v", got, want)
	}
}

func TestYearChainAtFloorIsSingleYear(t *testing.T) {
	got := yearChain(2022)
	want := []int{2022}
	if !equalInts(got, want) {
		t.Errorf("yearChain(2022) = %v, want %v", got, want)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRobustnessFilterPrefersCompiledOverModificacion(t *testing.T) {
	results := []store.RetrievalResult{
		{ChunkID: 1, SourceFilename: "rmf_2025_modificacion_3.pdf", Text: "parche"},
		{ChunkID: 2, SourceFilename: "rmf_2025_compilado.pdf", Text: "version compilada"},
	}
	out := robustnessFilter(results)
	if len(out) != 1 || out[0].ChunkID != 2 {
		t.Errorf("robustnessFilter = %+v, want only the compilado entry", out)
	}
}

func TestRobustnessFilterPassesThroughWhenNeitherMatches(t *testing.T) {
	results := []store.RetrievalResult{
		{ChunkID: 1, SourceFilename: "ley.pdf", Text: "texto"},
	}
	out := robustnessFilter(results)
	if len(out) != 1 {
		t.Errorf("expected results to pass through unchanged, got %+v", out)
	}
}

func TestOrchestratorArticleShortcutSetsLiteralBypass(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, store.Document{
		DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Title: "CFF", DocType: "ley", SourceFilename: "cff.pdf", SourcePath: "/x",
	})
	if _, err := s.InsertChunks(ctx, []store.Chunk{{
		DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "Texto del 29-A.",
		NormKind: "ARTICLE", NormID: "29-A", PageStart: 10, PageEnd: 10,
	}}); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	o := New(s, 8)
	result, err := o.Run(ctx, "cítame textualmente el artículo 29-A del CFF", 2025, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Evidence) == 0 {
		t.Fatal("expected the article shortcut to find evidence")
	}
	if !result.LiteralBypass {
		t.Error("expected LiteralBypass to be set on the article-shortcut path for a literal-citation question")
	}
}

func TestOrchestratorArticleShortcutWithoutLiteralIntent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, store.Document{
		DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Title: "CFF", DocType: "ley", SourceFilename: "cff.pdf", SourcePath: "/x",
	})
	if _, err := s.InsertChunks(ctx, []store.Chunk{{
		DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Text: "Texto del 29-A.",
		NormKind: "ARTICLE", NormID: "29-A", PageStart: 10, PageEnd: 10,
	}}); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	o := New(s, 8)
	result, err := o.Run(ctx, "¿qué dice el artículo 29-A del CFF?", 2025, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.LiteralBypass {
		t.Error("expected LiteralBypass to stay false without literal-citation wording")
	}
}

func TestOrchestratorBareArticleNumberRoutesToArticleLookup(t *testing.T) {
	// §8 seed scenario 4: "¿Qué dice el Artículo 27 fracción XI LISR?" ->
	// route article_lookup, norm_id=27, no hyphenated letter suffix.
	s := newTestStore(t)
	ctx := context.Background()
	mustInsertDoc(t, s, store.Document{
		DocumentID: "LEY_DEL_IMPUESTO_SOBRE_LA_RENTA", Title: "LISR", DocType: "ley", SourceFilename: "lisr.pdf", SourcePath: "/x",
	})
	if _, err := s.InsertChunks(ctx, []store.Chunk{{
		DocumentID: "LEY_DEL_IMPUESTO_SOBRE_LA_RENTA", Text: "Artículo 27. Texto de las deducciones autorizadas.",
		NormKind: "ARTICLE", NormID: "27", PageStart: 5, PageEnd: 5,
	}}); err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}

	o := New(s, 8)
	result, err := o.Run(ctx, "¿Qué dice el Artículo 27 fracción XI LISR?", 2025, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Evidence) != 1 {
		t.Fatalf("expected the article shortcut to find exactly 1 chunk, got %d", len(result.Evidence))
	}
	if result.Evidence[0].NormID != "27" {
		t.Errorf("got norm_id %q, want 27", result.Evidence[0].NormID)
	}
	if result.Evidence[0].DocumentID != "LEY_DEL_IMPUESTO_SOBRE_LA_RENTA" {
		t.Errorf("got document %q, want LEY_DEL_IMPUESTO_SOBRE_LA_RENTA", result.Evidence[0].DocumentID)
	}
}

func TestOrchestratorNoEvidenceReturnsEmptyResult(t *testing.T) {
	// §8 boundary: evidence_count == 0 after the full chain.
	s := newTestStore(t)
	o := New(s, 8)

	result, err := o.Run(context.Background(), "¿qué dice una ley que no existe en el corpus?", 2025, []float32{0, 0, 0, 0}, []string{"inexistente"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Evidence) != 0 {
		t.Errorf("expected no evidence from an empty store, got %d", len(result.Evidence))
	}
}
