package store

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
)

// LookupArticle implements the deterministic statute-article lookup
// (§4.E, E1): structural match on document_id + norm_kind=ARTICLE against
// articleToken (the canonical token produced by article.ParseHeader, e.g.
// "29-A" or "69-B-BIS"), ordered by chunk_id ascending. The SQL match also
// accepts norm_id values that extend articleToken with a further suffix
// (e.g. a lookup for "29-A" also surfaces a stored "29-A-BIS" row); of
// those, only articleToken+"-BIS" is kept, and only when includeBis is set,
// so other extensions (e.g. "29-A" for a lookup of "29") are dropped here
// rather than silently returned under a different article.
func (s *Store) LookupArticle(ctx context.Context, documentID, articleToken string, includeBis bool) ([]RetrievalResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.document_id, c.text, c.norm_kind, c.norm_id,
			c.page_start, c.page_end, d.doc_type, d.exercise_year, d.source_filename, d.published_date
		FROM chunks c
		JOIN documents d ON d.document_id = c.document_id
		WHERE c.document_id = ? AND c.norm_kind = 'ARTICLE'
			AND (c.norm_id = ? OR c.norm_id LIKE ?)
		ORDER BY c.chunk_id
	`, documentID, articleToken, articleToken+"-%")
	if err != nil {
		return nil, err
	}

	results, err := scanRetrievalResults(rows, "article_lookup")
	if err != nil {
		return nil, err
	}
	filtered := results[:0]
	for _, r := range results {
		ext := strings.TrimPrefix(strings.ToUpper(r.NormID), strings.ToUpper(articleToken))
		if ext == "" || (includeBis && ext == "-BIS") {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

var rmfBodyPattern = func(ruleID string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*` + regexp.QuoteMeta(ruleID) + `\.\s`)
}

// LookupRMFRule implements the deterministic RMF (Resolución Miscelánea
// Fiscal) rule lookup (§4.E, E2): exact match on doc_type='rmf',
// exercise_year, norm_kind='RULE', norm_id=ruleID, with preference given
// to preferDocumentID when multiple RMF editions exist for the year, and
// a body-vs-index post-filter that prefers chunks beginning with the
// rule number itself over index/table-of-contents mentions.
func (s *Store) LookupRMFRule(ctx context.Context, exerciseYear int, ruleID, preferDocumentID string, limit int) ([]RetrievalResult, error) {
	ruleID = strings.TrimSpace(ruleID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.document_id, c.text, c.norm_kind, c.norm_id,
			c.page_start, c.page_end, d.doc_type, d.exercise_year, d.source_filename, d.published_date
		FROM chunks c
		JOIN documents d ON d.document_id = c.document_id
		WHERE d.doc_type = 'rmf' AND d.exercise_year = ? AND c.norm_kind = 'RULE' AND c.norm_id = ?
		ORDER BY
			CASE WHEN ? != '' AND c.document_id = ? THEN 0 ELSE 1 END,
			c.page_start IS NULL, c.page_start, c.chunk_id
		LIMIT ?
	`, exerciseYear, ruleID, preferDocumentID, preferDocumentID, limit)
	if err != nil {
		return nil, err
	}

	results, err := scanRetrievalResults(rows, "rmf_rule_lookup")
	if err != nil {
		return nil, err
	}

	bodyPat := rmfBodyPattern(ruleID)
	var body []RetrievalResult
	for _, r := range results {
		if bodyPat.MatchString(r.Text) {
			body = append(body, r)
		}
	}
	if len(body) > 0 {
		return body, nil
	}
	return results, nil
}

func scanRetrievalResults(rows *sql.Rows, origin string) ([]RetrievalResult, error) {
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var r RetrievalResult
		var pageStart, pageEnd sql.NullInt64
		var published sql.NullString
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Text, &r.NormKind, &r.NormID,
			&pageStart, &pageEnd, &r.DocType, &r.ExerciseYear, &r.SourceFilename, &published); err != nil {
			return nil, err
		}
		r.PageStart = int(pageStart.Int64)
		r.PageEnd = int(pageEnd.Int64)
		if published.Valid {
			r.PublishedDate = published.String
		} else {
			r.PublishedDate = "S/F"
		}
		r.Score = 1.0
		r.Origin = origin
		results = append(results, r)
	}
	return results, rows.Err()
}
