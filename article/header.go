// Package article implements the article-header parser and the
// article-first chunker: recognizing statute article headers in raw PDF
// text and turning a page sequence into article-bounded, overlap-sliding
// chunks.
package article

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// suffixWords are the Latin ordinal suffixes used to insert a new
// provision after an existing article number without renumbering
// (e.g. "69-B BIS").
const suffixWords = `(?:BIS|TER|QUATER|QUINQUIES|SEXIES|SEPTIES|OCTIES|NONIES|DECIES)`

// transOrdinals are the ordinal words used to number "disposiciones
// transitorias" (transitory articles).
const transOrdinals = `(?:UNICO|ÚNICO|PRIMERO|SEGUNDO|TERCERO|CUARTO|QUINTO|SEXTO|SEPTIMO|SÉPTIMO|OCTAVO|NOVENO|DECIMO|DÉCIMO)`

// headerRe recognizes an article header at the start of a line:
//
//	Artículo 27
//	Articulo 69-B Bis
//	Art. 1o-A Ter.
//	Artículo Primero (transitorio)
var headerRe = regexp.MustCompile(
	`(?i)^\s*(?:Art[ií]culo|Art\.?)\s+` +
		`(?:` +
		`(?P<num>\d+)(?P<ord>[oº])?(?:\s*[-–—]\s*(?P<lit>[A-Za-z]))?(?:\s+(?P<suf>` + suffixWords + `))?` +
		`|` +
		`(?P<trans>` + transOrdinals + `)` +
		`)` +
		`\s*(?:[.\-–—:])?`,
)

// CanonicalToken is the output of ParseHeader: either "N", "N-L",
// "N-L-SUFFIX", or "TRANS-ORDINAL".
type CanonicalToken = string

// ParseHeader returns the canonical article token for line, or ("", false)
// if line is not an article header.
func ParseHeader(line string) (CanonicalToken, bool) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	names := headerRe.SubexpNames()
	group := func(name string) string {
		for i, n := range names {
			if n == name && i < len(m) {
				return m[i]
			}
		}
		return ""
	}

	if trans := group("trans"); trans != "" {
		return "TRANS-" + stripAccents(strings.ToUpper(trans)), true
	}

	num := group("num")
	if num == "" {
		return "", false
	}
	lit := strings.ToUpper(group("lit"))
	suf := strings.ToUpper(group("suf"))

	var b strings.Builder
	b.WriteString(num)
	if lit != "" {
		b.WriteString("-")
		b.WriteString(lit)
	}
	if suf != "" {
		b.WriteString("-")
		b.WriteString(suf)
	}
	return b.String(), true
}

// ruleHeaderRe recognizes an RMF rule header at the start of a line: a
// dotted rule number (e.g. "2.1.1.", "3.10.25") optionally preceded by
// the word "Regla", as printed at the start of the rule's body text.
var ruleHeaderRe = regexp.MustCompile(`(?i)^\s*(?:Regla\s+)?(\d{1,2}(?:\.\d{1,3}){1,4})\.?\s`)

// ParseRuleHeader returns the canonical rule token (the dotted number,
// e.g. "2.1.1") for line, or ("", false) if line is not an RMF rule
// header.
func ParseRuleHeader(line string) (CanonicalToken, bool) {
	m := ruleHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// stripAccents removes combining diacritical marks via NFKD
// decomposition, matching Python's
// unicodedata.normalize("NFKD", s) + drop combining runes.
func stripAccents(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
