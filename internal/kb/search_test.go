package kb

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// seedEntry creates an entry at the store's current clock and returns its
// internal id.
func seedEntry(t *testing.T, s *Store, d Draft) int64 {
	t.Helper()
	publicID, err := s.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create %q: %v", d.Title, err)
	}
	e, err := s.Get(context.Background(), 0, publicID)
	if err != nil || e == nil {
		t.Fatalf("Get %q: %v", d.Title, err)
	}
	return e.ID
}

func TestSearch_NoPredicatesReturnsMostRecentFirst(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	base := time.Now()

	for i := 0; i < 3; i++ {
		i := i
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		seedEntry(t, s, Draft{Title: fmt.Sprintf("entry %d", i), Problem: "p", Solution: "s"})
	}

	got, err := s.Search(context.Background(), SearchRequest{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	for i, want := range []string{"entry 2", "entry 1", "entry 0"} {
		if got[i].Title != want {
			t.Fatalf("got[%d].Title=%q, want %q", i, got[i].Title, want)
		}
	}
}

func TestSearch_CategoryORSemantics(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	a := seedEntry(t, s, Draft{Title: "only A", Problem: "p", Solution: "s", Categories: []string{"webhooks"}})
	b := seedEntry(t, s, Draft{Title: "only B", Problem: "p", Solution: "s", Categories: []string{"orders-api"}})
	ab := seedEntry(t, s, Draft{Title: "both", Problem: "p", Solution: "s", Categories: []string{"webhooks", "orders-api"}})

	got, err := s.Search(ctx, SearchRequest{Categories: []string{"webhooks", "orders-api"}})
	if err != nil {
		t.Fatalf("Search both: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("categories OR: len=%d, want 3", len(got))
	}

	got, err = s.Search(ctx, SearchRequest{Categories: []string{"webhooks"}})
	if err != nil {
		t.Fatalf("Search one: %v", err)
	}
	ids := map[int64]bool{}
	for _, e := range got {
		ids[e.ID] = true
	}
	if len(got) != 2 || !ids[a] || !ids[ab] || ids[b] {
		t.Fatalf("categories=[webhooks]: got ids %v, want {%d,%d}", ids, a, ab)
	}

	// A label that happens to be a substring of a stored one must not match.
	got, err = s.Search(ctx, SearchRequest{Categories: []string{"orders"}})
	if err != nil {
		t.Fatalf("Search substring label: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("substring category matched %d entries, want 0", len(got))
	}
}

func TestSearch_TagANDSemantics(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	seedEntry(t, s, Draft{Title: "tagged", Problem: "p", Solution: "s", Tags: []string{"x", "y"}})

	got, err := s.Search(ctx, SearchRequest{Tags: []string{"x", "y"}})
	if err != nil {
		t.Fatalf("Search x,y: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("tags=[x y]: len=%d, want 1", len(got))
	}

	got, err = s.Search(ctx, SearchRequest{Tags: []string{"x", "z"}})
	if err != nil {
		t.Fatalf("Search x,z: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("tags=[x z]: len=%d, want 0", len(got))
	}
}

func TestSearch_TagSubstringContainment(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	seedEntry(t, s, Draft{Title: "tagged", Problem: "p", Solution: "s", Tags: []string{"rate-limiting"}})

	// Tag filtering is a containment check, looser than category matching.
	got, err := s.Search(context.Background(), SearchRequest{Tags: []string{"rate"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("substring tag: len=%d, want 1", len(got))
	}
}

func TestSearch_ProductExactMatch(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	seedEntry(t, s, Draft{Title: "a", Problem: "p", Solution: "s", Product: "checkout"})

	got, err := s.Search(ctx, SearchRequest{Product: "checkout"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("product match: len=%d, want 1", len(got))
	}

	got, err = s.Search(ctx, SearchRequest{Product: "Checkout"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("product match is case-sensitive: len=%d, want 0", len(got))
	}

	got, err = s.Search(ctx, SearchRequest{Product: "unknown-product"})
	if err != nil {
		t.Fatalf("Search unknown product: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unknown product: len=%d, want 0", len(got))
	}
}

func TestSearch_LimitAppliedAfterOrdering(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	base := time.Now()

	for i := 0; i < 30; i++ {
		i := i
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		seedEntry(t, s, Draft{Title: fmt.Sprintf("entry %d", i), Problem: "p", Solution: "s"})
	}

	got, err := s.Search(context.Background(), SearchRequest{Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len=%d, want 5", len(got))
	}
	if got[0].Title != "entry 29" {
		t.Fatalf("truncation happened before ordering: got[0]=%q", got[0].Title)
	}

	// Zero limit means unset and falls back to the default cap of 20.
	got, err = s.Search(context.Background(), SearchRequest{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != defaultSearchLimit {
		t.Fatalf("default limit: len=%d, want %d", len(got), defaultSearchLimit)
	}
}

func TestSearch_QueryRelevanceAndIndexedFields(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	want := seedEntry(t, s, Draft{
		Title:      "Webhook delivery failing",
		Problem:    "delivery intermittently drops",
		Solution:   "verify delivery endpoint responds within 5s",
		Categories: []string{"webhooks", "bulk-operations"},
	})
	// "delivery" appears only in notes here, and notes is not indexed.
	seedEntry(t, s, Draft{
		Title:    "Unrelated CSV import issue",
		Problem:  "import stalls",
		Solution: "split the file",
		Notes:    "customer also asked about delivery",
	})

	got, err := s.Search(ctx, SearchRequest{Query: "delivery"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != want {
		t.Fatalf("query=delivery: got %d entries, want exactly the webhook entry", len(got))
	}

	got, err = s.Search(ctx, SearchRequest{Categories: []string{"webhooks"}})
	if err != nil {
		t.Fatalf("Search by category: %v", err)
	}
	if len(got) != 1 || got[0].ID != want {
		t.Fatalf("categories=[webhooks]: got %d entries", len(got))
	}

	got, err = s.Search(ctx, SearchRequest{Categories: []string{"orders-api"}})
	if err != nil {
		t.Fatalf("Search wrong category: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("categories=[orders-api]: got %d entries, want 0", len(got))
	}
}

func TestSearch_QueryCombinesWithFilters(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	seedEntry(t, s, Draft{Title: "timeout in checkout", Problem: "p", Solution: "s", Categories: []string{"payments-api"}})
	want := seedEntry(t, s, Draft{Title: "timeout in webhooks", Problem: "p", Solution: "s", Categories: []string{"webhooks"}})

	got, err := s.Search(ctx, SearchRequest{Query: "timeout", Categories: []string{"webhooks"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != want {
		t.Fatalf("query+category AND: got %d entries", len(got))
	}
}

func TestSearch_WhitespaceQueryFallsBackToRecency(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	seedEntry(t, s, Draft{Title: "a", Problem: "p", Solution: "s"})
	seedEntry(t, s, Draft{Title: "b", Problem: "p", Solution: "s"})

	got, err := s.Search(context.Background(), SearchRequest{Query: "   "})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("whitespace query: len=%d, want 2 (unfiltered)", len(got))
	}
}

func TestSearch_QueryPunctuationDoesNotBreakMatchSyntax(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	seedEntry(t, s, Draft{Title: "GraphQL cost limit", Problem: "p", Solution: "s"})

	for _, q := range []string{`"cost`, `cost-limit)`, `cost AND`, `(((`} {
		if _, err := s.Search(context.Background(), SearchRequest{Query: q}); err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
	}
}
