package kb

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

// SearchRequest composes the supplied predicates with AND:
//
//   - Query restricts to entries whose indexed text matches (all terms).
//   - Categories keeps an entry when ANY supplied label is one of its
//     categories (OR within the filter).
//   - Product is an exact, case-sensitive match.
//   - Tags keeps an entry only when EVERY supplied label appears as a
//     substring of its normalized tag string (AND within the filter;
//     deliberately looser than the category match).
//
// Limit <= 0 means the default of 20.
type SearchRequest struct {
	Query      string
	Categories []string
	Product    string
	Tags       []string
	Limit      int
}

// Search returns matching entries, most-recent-first, except that a text
// query switches the primary order to index relevance (ties broken by
// recency). The limit is applied after ordering. Unknown category or
// product values yield an empty result, not an error.
func (s *Store) Search(ctx context.Context, req SearchRequest) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	matchExpr := ftsMatchExpr(req.Query)

	// The fts table shares column names with kb_entries, so the join
	// must select fully qualified columns.
	qualified := qualifyEntryColumns("e")

	var b strings.Builder
	args := make([]any, 0, 8)

	if matchExpr != "" {
		b.WriteString(`SELECT ` + qualified + `
FROM kb_entries e
JOIN kb_entries_fts f ON e.id = f.rowid
WHERE kb_entries_fts MATCH ?`)
		args = append(args, matchExpr)
	} else {
		b.WriteString(`SELECT ` + qualified + `
FROM kb_entries e
WHERE 1 = 1`)
	}

	if categories := normalizeTags(req.Categories); len(categories) > 0 {
		conds := make([]string, 0, len(categories))
		for _, c := range categories {
			conds = append(conds, `EXISTS (SELECT 1 FROM json_each(e.categories) jc WHERE jc.value = ?)`)
			args = append(args, c)
		}
		b.WriteString("\nAND (" + strings.Join(conds, " OR ") + ")")
	}

	if product := strings.TrimSpace(req.Product); product != "" {
		b.WriteString("\nAND e.product = ?")
		args = append(args, product)
	}

	for _, tag := range normalizeTags(req.Tags) {
		b.WriteString("\nAND instr(e.tags, ?) > 0")
		args = append(args, tag)
	}

	if matchExpr != "" {
		b.WriteString("\nORDER BY f.rank ASC, e.created_at_unix_ms DESC, e.id DESC")
	} else {
		b.WriteString("\nORDER BY e.created_at_unix_ms DESC, e.id DESC")
	}
	b.WriteString("\nLIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ftsMatchExpr turns free-form query text into an FTS5 MATCH expression.
// Each term is double-quoted so user punctuation cannot break the query
// syntax; terms combine with implicit AND. Empty or all-whitespace input
// yields "" and the caller falls back to unfiltered recency order.
func ftsMatchExpr(query string) string {
	terms := tokenize(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

func qualifyEntryColumns(alias string) string {
	cols := strings.Split(entryColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func tokenize(input string) []string {
	return strings.FieldsFunc(strings.TrimSpace(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
