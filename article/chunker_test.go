package article

import (
	"strings"
	"testing"
)

func TestChunkArticleFirstNoCrossBoundary(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "PREAMBULO\nTexto introductorio.\nArticulo 1.\nContenido del articulo uno.\nArticulo 2.\nContenido del articulo dos."},
	}
	chunks := ChunkArticleFirst(pages, DefaultConfig())

	seen := map[string]bool{}
	for _, c := range chunks {
		seen[c.NormID] = true
		if strings.Contains(c.Text, "articulo dos") && c.NormID != "2" {
			t.Errorf("chunk for norm_id %q unexpectedly contains article 2 text", c.NormID)
		}
	}
	for _, want := range []string{"PREAMBULO", "1", "2"} {
		if !seen[want] {
			t.Errorf("expected a block for norm_id %q, got blocks %v", want, seen)
		}
	}
}

func TestChunkArticleFirstHeaderLineSurvivesIntoText(t *testing.T) {
	// §8 invariant 1: parse_article_header on the first non-empty line of
	// text produces exactly norm_id.
	pages := []Page{
		{Number: 1, Text: "PREAMBULO\nArticulo 27.\nContenido del articulo veintisiete."},
	}
	chunks := ChunkArticleFirst(pages, DefaultConfig())

	var found bool
	for _, c := range chunks {
		if c.NormID != "27" {
			continue
		}
		found = true
		firstLine := strings.SplitN(strings.TrimSpace(c.Text), "\n", 2)[0]
		tok, ok := ParseHeader(firstLine)
		if !ok {
			t.Fatalf("first line %q of chunk does not parse as a header", firstLine)
		}
		if tok != c.NormID {
			t.Errorf("parsing the chunk's first line yields norm_id %q, want %q", tok, c.NormID)
		}
	}
	if !found {
		t.Fatal("expected a chunk for norm_id 27")
	}
}

func TestChunkArticleFirstPageRange(t *testing.T) {
	longText := strings.Repeat("palabra ", 2000)
	pages := []Page{
		{Number: 1, Text: "Articulo 1.\n" + longText},
		{Number: 2, Text: longText},
		{Number: 3, Text: longText},
	}
	chunks := ChunkArticleFirst(pages, Config{ChunkChars: 3500, OverlapChars: 400})

	if len(chunks) < 2 {
		t.Fatalf("expected multiple sub-chunks for a long article, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.PageStart > c.PageEnd {
			t.Errorf("chunk %d: page_start %d > page_end %d", c.ChunkIndex, c.PageStart, c.PageEnd)
		}
		if c.NormID != "1" {
			t.Errorf("chunk %d: norm_id = %q, want %q", c.ChunkIndex, c.NormID, "1")
		}
	}
}

func TestChunkArticleFirstOverlap(t *testing.T) {
	longText := strings.Repeat("x", 10000)
	pages := []Page{{Number: 1, Text: "Articulo 1.\n" + longText}}
	cfg := Config{ChunkChars: 3500, OverlapChars: 400}
	chunks := ChunkArticleFirst(pages, cfg)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple sub-chunks, got %d", len(chunks))
	}
	for i := 0; i < len(chunks)-1; i++ {
		got := chunks[i].CharEnd - chunks[i+1].CharStart
		if got != cfg.OverlapChars {
			t.Errorf("chunk %d/%d: overlap = %d, want %d", i, i+1, got, cfg.OverlapChars)
		}
	}
}

func TestChunkArticleFirstEmptyInput(t *testing.T) {
	chunks := ChunkArticleFirst(nil, DefaultConfig())
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestChunkWithHeaderParserRules(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "INDICE GENERAL\nResolución Miscelánea Fiscal\n2.1.1. Definiciones.\nContenido de la regla uno.\n2.1.2. Otra definición.\nContenido de la regla dos."},
	}
	chunks := ChunkWithHeaderParser(pages, DefaultConfig(), ParseRuleHeader, "INDICE")

	seen := map[string]bool{}
	for _, c := range chunks {
		seen[c.NormID] = true
	}
	for _, want := range []string{"INDICE", "2.1.1", "2.1.2"} {
		if !seen[want] {
			t.Errorf("expected a block for norm_id %q, got blocks %v", want, seen)
		}
	}
}
