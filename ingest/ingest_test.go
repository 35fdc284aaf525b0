//go:build cgo

package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/fiscalis/llm"
	"github.com/brunobiangulo/fiscalis/store"
)

// fakeEmbedder returns a fixed-dimension zero vector per text so tests
// never touch the network.
type fakeEmbedder struct {
	dim     int
	failAll bool
}

func (f *fakeEmbedder) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, nil
}

func (f *fakeEmbedder) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamDelta, error) {
	return nil, nil
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failAll {
		return nil, errFakeEmbedFailure
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

var errFakeEmbedFailure = fakeErr("embedding unavailable")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

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

func TestEmbedAndInsertStoresAllChunks(t *testing.T) {
	st := newTestStore(t)
	if err := st.UpsertDocument(context.Background(), store.Document{
		DocumentID: "DOC1", Title: "Doc 1", DocFamily: "LEYES_FEDERALES", DocType: "ley",
	}); err != nil {
		t.Fatalf("upserting document: %v", err)
	}

	p := New(st, &fakeEmbedder{dim: 4})
	chunks := []store.Chunk{
		{DocumentID: "DOC1", Text: "contenido del articulo uno", NormKind: "ARTICLE", NormID: "1", PageStart: 1, PageEnd: 1},
		{DocumentID: "DOC1", Text: "contenido del articulo dos", NormKind: "ARTICLE", NormID: "2", PageStart: 2, PageEnd: 2},
	}

	ok, failed, err := p.embedAndInsert(context.Background(), chunks)
	if err != nil {
		t.Fatalf("embedAndInsert: %v", err)
	}
	if failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if ok != len(chunks) {
		t.Errorf("ok = %d, want %d", ok, len(chunks))
	}

	stored, err := st.GetChunksByDocument(context.Background(), "DOC1")
	if err != nil {
		t.Fatalf("GetChunksByDocument: %v", err)
	}
	if len(stored) != len(chunks) {
		t.Fatalf("stored %d chunks, want %d", len(stored), len(chunks))
	}
	for _, c := range stored {
		has, err := st.ChunkHasEmbedding(context.Background(), c.ChunkID)
		if err != nil {
			t.Fatalf("ChunkHasEmbedding: %v", err)
		}
		if !has {
			t.Errorf("chunk %d has no embedding", c.ChunkID)
		}
	}
}

func TestEmbedAndInsertFallsBackPerItemOnBatchFailure(t *testing.T) {
	st := newTestStore(t)
	if err := st.UpsertDocument(context.Background(), store.Document{
		DocumentID: "DOC2", Title: "Doc 2", DocFamily: "LEYES_FEDERALES", DocType: "ley",
	}); err != nil {
		t.Fatalf("upserting document: %v", err)
	}

	// failAll means every Embed call (batch and per-item) fails, so every
	// chunk should be counted failed and none should gain an embedding.
	p := New(st, &fakeEmbedder{dim: 4, failAll: true})
	chunks := []store.Chunk{
		{DocumentID: "DOC2", Text: "texto", NormKind: "ARTICLE", NormID: "1", PageStart: 1, PageEnd: 1},
	}

	ok, failed, err := p.embedAndInsert(context.Background(), chunks)
	if err != nil {
		t.Fatalf("embedAndInsert: %v", err)
	}
	if ok != 0 {
		t.Errorf("ok = %d, want 0", ok)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestTruncateForEmbedWordBoundary(t *testing.T) {
	text := make([]byte, maxEmbedChars+100)
	for i := range text {
		text[i] = 'a'
	}
	text[maxEmbedChars-5] = ' '

	got := truncateForEmbed(string(text))
	if len(got) >= maxEmbedChars {
		t.Errorf("truncated length %d, want < %d", len(got), maxEmbedChars)
	}
	if got[len(got)-1] == ' ' {
		t.Error("truncated text should not end in the cut space")
	}
}

func TestTruncateForEmbedShortTextUnchanged(t *testing.T) {
	text := "texto corto"
	if got := truncateForEmbed(text); got != text {
		t.Errorf("got %q, want %q unchanged", got, text)
	}
}

func TestStripNewlinesForEmbedReplacesWithSpaces(t *testing.T) {
	// §4.J step 5: strip newlines in input before embedding.
	text := "Artículo 27.\nContenido\nmultilínea."
	got := stripNewlinesForEmbed(text)
	if strings.Contains(got, "\n") {
		t.Errorf("expected no newlines in %q", got)
	}
	if got != "Artículo 27. Contenido multilínea." {
		t.Errorf("got %q, want newlines replaced by spaces", got)
	}
}

// capturingEmbedder records the texts it was asked to embed.
type capturingEmbedder struct {
	dim  int
	seen []string
}

func (f *capturingEmbedder) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, nil
}

func (f *capturingEmbedder) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamDelta, error) {
	return nil, nil
}

func (f *capturingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.seen = append(f.seen, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func TestEmbedAndInsertStripsNewlinesBeforeEmbedding(t *testing.T) {
	st := newTestStore(t)
	if err := st.UpsertDocument(context.Background(), store.Document{
		DocumentID: "DOC1", Title: "Doc 1", DocFamily: "LEYES_FEDERALES", DocType: "ley",
		SourceFilename: "doc1.pdf", SourcePath: "/x",
	}); err != nil {
		t.Fatalf("inserting document: %v", err)
	}

	emb := &capturingEmbedder{dim: 4}
	p := &Pipeline{store: st, embedder: emb}

	chunks := []store.Chunk{{DocumentID: "DOC1", Text: "Artículo 1.\nContenido\nmultilínea.", NormKind: "ARTICLE", NormID: "1"}}
	if _, _, err := p.embedAndInsert(context.Background(), chunks); err != nil {
		t.Fatalf("embedAndInsert: %v", err)
	}

	if len(emb.seen) != 1 {
		t.Fatalf("expected exactly one embedded text, got %d", len(emb.seen))
	}
	if strings.Contains(emb.seen[0], "\n") {
		t.Errorf("text sent to Embed still contains newlines: %q", emb.seen[0])
	}
}
