package article

import (
	"sort"
	"strings"
)

// Config controls the sliding-window chunker.
type Config struct {
	ChunkChars   int // width of each sub-chunk, in characters (default 3500)
	OverlapChars int // overlap between consecutive sub-chunks (default 400)
}

// DefaultConfig returns the chunker defaults named in the ingestion spec.
func DefaultConfig() Config {
	return Config{ChunkChars: 3500, OverlapChars: 400}
}

// Page is one page of extracted PDF text.
type Page struct {
	Number int
	Text   string
}

// Chunk is a single article-first sub-chunk, ready for embedding and
// insertion as a store.Chunk.
type Chunk struct {
	NormID     string
	Text       string
	PageStart  int
	PageEnd    int
	ChunkIndex int
	CharStart  int
	CharEnd    int
}

// block accumulates the text of one article (or the PREAMBULO that
// precedes the first article) along with (offset, page) transitions so
// any character offset within the block's text can be mapped back to a
// source page.
type block struct {
	normID  string
	buf     strings.Builder
	offsets []int // byte offsets, parallel to pages
	pages   []int
}

func newBlock(normID string, startPage int) *block {
	return &block{normID: normID, offsets: []int{0}, pages: []int{startPage}}
}

func (b *block) addLine(line string, page int) {
	if len(b.pages) == 0 || b.pages[len(b.pages)-1] != page {
		b.offsets = append(b.offsets, b.buf.Len())
		b.pages = append(b.pages, page)
	}
	b.buf.WriteString(line)
	b.buf.WriteString("\n")
}

// pageFor returns the page number containing byte offset off within the
// block's text, via binary search over the recorded offset transitions.
func (b *block) pageFor(off int) int {
	if off < 0 {
		off = 0
	}
	i := sort.Search(len(b.offsets), func(i int) bool { return b.offsets[i] > off })
	i--
	if i < 0 {
		i = 0
	}
	return b.pages[i]
}

// HeaderParser recognizes a structural header at the start of a line,
// returning its canonical token. ParseHeader (statute articles) and
// ParseRuleHeader (RMF rules) are the two implementations.
type HeaderParser func(line string) (string, bool)

// iterBlocks splits a page sequence into blocks using parse to detect
// header lines, flushing the current block and opening a new one
// whenever a header matches. preambleID names the block that precedes
// the first recognized header.
func iterBlocks(pages []Page, parse HeaderParser, preambleID string) []*block {
	var blocks []*block
	cur := newBlock(preambleID, firstPageNumber(pages))

	for _, p := range pages {
		for _, line := range strings.Split(p.Text, "\n") {
			if tok, ok := parse(strings.TrimSpace(line)); ok {
				if cur.buf.Len() > 0 {
					blocks = append(blocks, cur)
				}
				cur = newBlock(tok, p.Number)
				cur.addLine(line, p.Number)
				continue
			}
			cur.addLine(line, p.Number)
		}
	}
	if cur.buf.Len() > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

func firstPageNumber(pages []Page) int {
	if len(pages) == 0 {
		return 1
	}
	return pages[0].Number
}

// ChunkArticleFirst implements the Article-First Chunker (§4.B): it
// splits pages into article blocks, then slides a character window with
// overlap over each block's text, assigning page_start/page_end per
// sub-chunk via the block's offset→page index.
func ChunkArticleFirst(pages []Page, cfg Config) []Chunk {
	return ChunkWithHeaderParser(pages, cfg, ParseHeader, "PREAMBULO")
}

// ChunkWithHeaderParser runs the same sliding-window chunker as
// ChunkArticleFirst but with parse in place of ParseHeader, so RMF rule
// ingestion (norm_kind=RULE) can reuse the window/overlap/page-mapping
// logic against rule headers instead of article headers.
func ChunkWithHeaderParser(pages []Page, cfg Config, parse HeaderParser, preambleID string) []Chunk {
	if cfg.ChunkChars <= 0 {
		cfg.ChunkChars = 3500
	}
	if cfg.OverlapChars < 0 {
		cfg.OverlapChars = 0
	}

	var out []Chunk
	for _, b := range iterBlocks(pages, parse, preambleID) {
		text := b.buf.String()
		// runeAt[i] is the byte offset of character i, so the window and
		// CharStart/CharEnd count characters and never split a UTF-8 rune.
		runeAt := make([]int, 0, len(text)+1)
		for i := range text {
			runeAt = append(runeAt, i)
		}
		l := len(runeAt)
		runeAt = append(runeAt, len(text))
		idx := 0
		start := 0
		for start < l {
			end := start + cfg.ChunkChars
			if end > l {
				end = l
			}
			chunkText := strings.TrimSpace(text[runeAt[start]:runeAt[end]])
			ps := b.pageFor(runeAt[start])
			pe := b.pageFor(runeAt[maxInt(end-1, 0)])
			if chunkText != "" {
				out = append(out, Chunk{
					NormID:     b.normID,
					Text:       chunkText,
					PageStart:  ps,
					PageEnd:    pe,
					ChunkIndex: idx,
					CharStart:  start,
					CharEnd:    end,
				})
				idx++
			}
			if end >= l {
				break
			}
			start = maxInt(0, end-cfg.OverlapChars)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
