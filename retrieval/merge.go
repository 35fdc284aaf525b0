// Package retrieval implements the Fallback Orchestrator (§4.G) and the
// Evidence Assembler & Prompt Builder (§4.H): it sits between the
// router/store layer and the LLM bridge, turning a question and a query
// vector into an ordered evidence list and the prompts sent downstream.
package retrieval

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/brunobiangulo/fiscalis/store"
)

const prefixHashLen = 200

// contentPrefixHash hashes the first prefixHashLen characters (runes) of
// text, used to deduplicate near-identical chunks across vector and
// keyword result sets.
func contentPrefixHash(text string) string {
	r := []rune(text)
	if len(r) > prefixHashLen {
		r = r[:prefixHashLen]
	}
	sum := sha256.Sum256([]byte(string(r)))
	return hex.EncodeToString(sum[:])
}

// Merge implements the Vector + Keyword Retriever's merge operation
// (§4.F): vector-first deduplication by content-prefix hash, with
// keyword results filling any remaining slots up to topK.
func Merge(vectorResults, keywordResults []store.RetrievalResult, topK int) []store.RetrievalResult {
	seen := make(map[string]bool, len(vectorResults)+len(keywordResults))
	merged := make([]store.RetrievalResult, 0, topK)

	for _, r := range vectorResults {
		if len(merged) >= topK {
			break
		}
		h := contentPrefixHash(r.Text)
		if seen[h] {
			continue
		}
		seen[h] = true
		merged = append(merged, r)
	}

	for _, r := range keywordResults {
		if len(merged) >= topK {
			break
		}
		h := contentPrefixHash(r.Text)
		if seen[h] {
			continue
		}
		seen[h] = true
		merged = append(merged, r)
	}

	return merged
}
