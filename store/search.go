package store

import (
	"context"
	"database/sql"
	"strings"
)

// YearFilter controls which exercise_year rows a vector or keyword search
// considers, mirroring the year-disjunction logic of the original
// retrieval query: a document pinned to a specific fiscal year, plus
// evergreen documents (exercise_year = 0) and documents with no
// assigned year, are both eligible alongside the target year.
type YearFilter struct {
	Year             int
	IncludeEvergreen bool
	IncludeNullYear  bool
	PreferDocType    string
	ExcludeDocType   string
}

func (f YearFilter) whereClause() (string, []any) {
	clause := "d.exercise_year = ?"
	args := []any{f.Year}
	switch {
	case f.IncludeEvergreen && f.IncludeNullYear:
		clause = "(d.exercise_year = ? OR d.exercise_year = 0 OR d.exercise_year IS NULL)"
	case f.IncludeEvergreen:
		clause = "(d.exercise_year = ? OR d.exercise_year = 0)"
	case f.IncludeNullYear:
		clause = "(d.exercise_year = ? OR d.exercise_year IS NULL)"
	}

	if f.PreferDocType != "" {
		clause += " AND d.doc_type = ?"
		args = append(args, f.PreferDocType)
	}
	if f.ExcludeDocType != "" {
		clause += " AND d.doc_type <> ?"
		args = append(args, f.ExcludeDocType)
	}
	return clause, args
}

// VectorSearch performs a cosine-distance KNN search over vec_chunks,
// restricted to candidate document IDs and the year filter (§4.F).
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, documentIDs []string, filter YearFilter, topK int) ([]RetrievalResult, error) {
	yearClause, yearArgs := filter.whereClause()

	docClause := ""
	var docArgs []any
	if len(documentIDs) > 0 {
		docClause = " AND c.document_id IN (" + placeholders(len(documentIDs)) + ")"
		for _, id := range documentIDs {
			docArgs = append(docArgs, id)
		}
	}

	args := []any{serializeFloat32(queryEmbedding), topK}
	args = append(args, yearArgs...)
	args = append(args, docArgs...)
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.document_id, c.text, c.norm_kind, c.norm_id,
			c.page_start, c.page_end, d.doc_type, d.exercise_year, d.source_filename, d.published_date, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.chunk_id = v.chunk_id
		JOIN documents d ON d.document_id = c.document_id
		WHERE v.embedding MATCH ? AND k = ?
		AND `+yearClause+docClause+`
		ORDER BY v.distance
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var r RetrievalResult
		var pageStart, pageEnd sql.NullInt64
		var published sql.NullString
		var distance float64
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Text, &r.NormKind, &r.NormID,
			&pageStart, &pageEnd, &r.DocType, &r.ExerciseYear, &r.SourceFilename, &published, &distance); err != nil {
			return nil, err
		}
		r.PageStart = int(pageStart.Int64)
		r.PageEnd = int(pageEnd.Int64)
		if published.Valid {
			r.PublishedDate = published.String
		} else {
			r.PublishedDate = "S/F"
		}
		r.Score = 1.0 - distance
		r.Origin = "vector"
		results = append(results, r)
	}
	return results, rows.Err()
}

// docTypePriority mirrors KeywordSearch's "ley > rmf > other" ordering
// (§4.F): lower sorts first.
func docTypePriority(docType string) int {
	switch docType {
	case "ley":
		return 0
	case "rmf":
		return 1
	default:
		return 2
	}
}

// KeywordSearch implements the Keyword Retriever (§4.F): chunks whose
// text contains any of keywords as a case-insensitive substring,
// restricted to candidate document IDs and the year filter, ordered by
// doc_type priority (ley > rmf > other) then exercise_year descending.
// Keywords are lower-cased in Go; the chunk text goes through SQLite's
// LOWER, which folds ASCII letters only, so capital accented letters in
// the stored text (e.g. "Ñ") are not folded.
func (s *Store) KeywordSearch(ctx context.Context, keywords []string, documentIDs []string, filter YearFilter, limit int) ([]RetrievalResult, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	yearClause, yearArgs := filter.whereClause()

	docClause := ""
	var docArgs []any
	if len(documentIDs) > 0 {
		docClause = " AND c.document_id IN (" + placeholders(len(documentIDs)) + ")"
		for _, id := range documentIDs {
			docArgs = append(docArgs, id)
		}
	}

	keywordClauses := make([]string, len(keywords))
	var keywordArgs []any
	for i, kw := range keywords {
		keywordClauses[i] = "LOWER(c.text) LIKE '%' || ? || '%'"
		keywordArgs = append(keywordArgs, strings.ToLower(kw))
	}
	keywordClause := "(" + strings.Join(keywordClauses, " OR ") + ")"

	args := append([]any{}, keywordArgs...)
	args = append(args, yearArgs...)
	args = append(args, docArgs...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.document_id, c.text, c.norm_kind, c.norm_id,
			c.page_start, c.page_end, d.doc_type, d.exercise_year, d.source_filename, d.published_date
		FROM chunks c
		JOIN documents d ON d.document_id = c.document_id
		WHERE `+keywordClause+` AND `+yearClause+docClause+`
		ORDER BY
			CASE d.doc_type WHEN 'ley' THEN 0 WHEN 'rmf' THEN 1 ELSE 2 END,
			d.exercise_year DESC,
			c.chunk_id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}
	results, err := scanRetrievalResults(rows, "keyword")
	if err != nil {
		return nil, err
	}
	for i := range results {
		// Score reflects rank order only; keyword hits carry no distance
		// metric, unlike vector results.
		results[i].Score = 1.0 / float64(1+docTypePriority(results[i].DocType))
	}
	return results, nil
}

func placeholders(n int) string {
	return strings.TrimPrefix(strings.Repeat(",?", n), ",")
}
