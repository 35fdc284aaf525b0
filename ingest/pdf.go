package ingest

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/brunobiangulo/fiscalis/article"
)

// lineTolerance groups text elements into the same visual line when
// their Y coordinates differ by less than this amount.
const lineTolerance = 3.0

// ExtractPages opens path and returns its text, one article.Page per PDF
// page, numbered from 1. Pages that fail to yield text (scanned images,
// malformed content streams) are skipped rather than aborting the whole
// document.
func ExtractPages(path string) ([]article.Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]article.Page, 0, total)

	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := extractPageTextOrdered(page)
		if err != nil {
			continue
		}
		text = sanitizeText(text)
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, article.Page{Number: i, Text: text})
	}

	return pages, nil
}

// extractPageTextOrdered reconstructs a page's visual reading order from
// its raw content stream: text elements are grouped into lines by Y
// proximity and the lines are emitted top-to-bottom, preserving the
// content-stream order within each line (sorting by X would garble text
// in PDFs that use negative text matrices).
func extractPageTextOrdered(page pdf.Page) (string, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return page.GetPlainText(nil)
	}

	type visualLine struct {
		y   float64
		buf strings.Builder
	}

	var lines []*visualLine
	var cur *visualLine

	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].y > lines[j].y
	})

	var parts []string
	for _, l := range lines {
		if text := strings.TrimSpace(l.buf.String()); text != "" {
			parts = append(parts, text)
		}
	}

	result := strings.Join(parts, "\n")
	if strings.TrimSpace(result) == "" {
		return page.GetPlainText(nil)
	}
	return result, nil
}

// sanitizeText strips NUL bytes, which SQLite's TEXT columns (and FTS5)
// reject, from extracted PDF text.
func sanitizeText(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "")
}
