package kb

import (
	"fmt"
	"strings"
)

// DefaultCategory is assigned when an entry is created or updated with no
// categories at all.
const DefaultCategory = "general"

// tagDelimiter is the single delimiter used for the normalized on-disk tag
// string. Tag order is preserved for display; matching does not depend on it.
const tagDelimiter = ","

// Entry is one knowledge record. ID is the internal surrogate key (join key
// for the usage log and the text index); PublicID is the stable external
// identifier handed to callers.
type Entry struct {
	ID       int64  `json:"id"`
	PublicID string `json:"public_id"`

	Title    string `json:"title"`
	Problem  string `json:"problem"`
	Solution string `json:"solution"`

	Categories []string `json:"categories"`

	Product      string   `json:"product,omitempty"`
	APIVersion   string   `json:"api_version,omitempty"`
	CodeExamples string   `json:"code_examples,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Notes        string   `json:"notes,omitempty"`

	Source string `json:"source"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
	UpdatedAtUnixMs int64 `json:"updated_at_unix_ms"`

	UsageCount int64 `json:"usage_count"`

	// EffectivenessScore is persisted for forward compatibility; no
	// operation computes or ranks by it yet.
	EffectivenessScore float64 `json:"effectiveness_score"`
}

// Draft carries the caller-supplied fields for Create and Update. Identity,
// timestamps and counters are owned by the store and never come from a Draft.
type Draft struct {
	Title    string `json:"title"`
	Problem  string `json:"problem"`
	Solution string `json:"solution"`

	Categories []string `json:"categories,omitempty"`

	Product      string   `json:"product,omitempty"`
	APIVersion   string   `json:"api_version,omitempty"`
	CodeExamples string   `json:"code_examples,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Notes        string   `json:"notes,omitempty"`

	// Source is a provenance label ("manual", "interactive", "web",
	// "import"). Empty means "manual". Ignored by Update.
	Source string `json:"source,omitempty"`
}

// UsageEvent is one append-only usage log record for an entry.
type UsageEvent struct {
	ID           int64  `json:"id"`
	EntryID      int64  `json:"entry_id"`
	UsedAtUnixMs int64  `json:"used_at_unix_ms"`
	Context      string `json:"context"`
	Helpful      *bool  `json:"helpful,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// UsageRank is one row of the most-used ranking.
type UsageRank struct {
	Title      string `json:"title"`
	UsageCount int64  `json:"usage_count"`
}

// Stats is the aggregate summary over the whole store. Categories is a
// fan-out count: an entry with three categories increments three buckets,
// so the bucket sum may exceed TotalCount.
type Stats struct {
	TotalCount      int64            `json:"total_count"`
	Categories      map[string]int64 `json:"categories"`
	MostUsed        []UsageRank      `json:"most_used"`
	RecentAdditions int64            `json:"recent_additions"`
}

// TagCount is one row of the tag-frequency ranking.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// Snapshot is a full export of both relations, entries ordered by creation
// time ascending and usage events by usage time ascending.
type Snapshot struct {
	Knowledge        []Entry      `json:"knowledge"`
	Usage            []UsageEvent `json:"usage"`
	ExportedAtUnixMs int64        `json:"exported_at_unix_ms"`
}

// ValidationError reports a missing required field on Create or Update.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func validateDraft(d Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title"}
	}
	if strings.TrimSpace(d.Problem) == "" {
		return &ValidationError{Field: "problem"}
	}
	if strings.TrimSpace(d.Solution) == "" {
		return &ValidationError{Field: "solution"}
	}
	return nil
}

// normalizeCategories trims labels, drops empties and duplicates (keeping
// first-seen order) and falls back to the default category when nothing
// remains.
func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return []string{DefaultCategory}
	}
	return out
}

// normalizeTags trims labels and drops empties, preserving order.
func normalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func joinTags(tags []string) string {
	return strings.Join(normalizeTags(tags), tagDelimiter)
}

func splitTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return normalizeTags(strings.Split(raw, tagDelimiter))
}
