package kb

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// recentWindow is the lookback used for the recent-additions count.
const recentWindow = 7 * 24 * time.Hour

const mostUsedLimit = 5

// Stats computes the aggregate summary. Category counts fan out: an entry
// contributes once to every category bucket it holds.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.db == nil {
		return Stats{}, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	out := Stats{Categories: make(map[string]int64)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kb_entries`).Scan(&out.TotalCount); err != nil {
		return Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT jc.value, COUNT(*)
FROM kb_entries e, json_each(e.categories) jc
GROUP BY jc.value
`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var count int64
		if err := rows.Scan(&label, &count); err != nil {
			return Stats{}, err
		}
		out.Categories[label] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	usedRows, err := s.db.QueryContext(ctx, `
SELECT title, usage_count
FROM kb_entries
ORDER BY usage_count DESC, created_at_unix_ms DESC, id DESC
LIMIT ?
`, mostUsedLimit)
	if err != nil {
		return Stats{}, err
	}
	defer usedRows.Close()
	for usedRows.Next() {
		var r UsageRank
		if err := usedRows.Scan(&r.Title, &r.UsageCount); err != nil {
			return Stats{}, err
		}
		out.MostUsed = append(out.MostUsed, r)
	}
	if err := usedRows.Err(); err != nil {
		return Stats{}, err
	}

	cutoff := s.now().Add(-recentWindow).UnixMilli()
	if err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM kb_entries WHERE created_at_unix_ms >= ?
`, cutoff).Scan(&out.RecentAdditions); err != nil {
		return Stats{}, err
	}

	return out, nil
}

// AllTags returns every tag with its occurrence count across all entries,
// sorted by count descending, then case-insensitively by tag ascending.
func (s *Store) AllTags(ctx context.Context) ([]TagCount, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tags FROM kb_entries WHERE tags != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		for _, tag := range splitTags(raw) {
			counts[tag]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		li, lj := strings.ToLower(out[i].Tag), strings.ToLower(out[j].Tag)
		if li != lj {
			return li < lj
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}
