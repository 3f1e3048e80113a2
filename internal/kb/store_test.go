package kb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kb.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CreateGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	publicID, err := s.Create(ctx, Draft{
		Title:      "Webhook delivery failing",
		Problem:    "Deliveries time out after 5 seconds",
		Solution:   "Respond 200 immediately and process async",
		Categories: []string{" webhooks ", "", "bulk-operations", "webhooks"},
		Product:    "checkout",
		APIVersion: "2025-07",
		Tags:       []string{" retry ", "", "timeout"},
		Notes:      "seen on three merchants",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if publicID == "" {
		t.Fatalf("empty public id")
	}

	e, err := s.Get(ctx, 0, publicID)
	if err != nil {
		t.Fatalf("Get by public id: %v", err)
	}
	if e == nil {
		t.Fatalf("entry missing")
	}
	if e.Title != "Webhook delivery failing" {
		t.Fatalf("Title=%q", e.Title)
	}
	if got, want := len(e.Categories), 2; got != want {
		t.Fatalf("Categories=%v, want 2 deduplicated labels", e.Categories)
	}
	if e.Categories[0] != "webhooks" || e.Categories[1] != "bulk-operations" {
		t.Fatalf("Categories=%v", e.Categories)
	}
	if len(e.Tags) != 2 || e.Tags[0] != "retry" || e.Tags[1] != "timeout" {
		t.Fatalf("Tags=%v", e.Tags)
	}
	if e.Source != "manual" {
		t.Fatalf("Source=%q, want manual", e.Source)
	}
	if e.CreatedAtUnixMs <= 0 || e.UpdatedAtUnixMs != e.CreatedAtUnixMs {
		t.Fatalf("timestamps: created=%d updated=%d", e.CreatedAtUnixMs, e.UpdatedAtUnixMs)
	}
	if e.UsageCount != 0 {
		t.Fatalf("UsageCount=%d, want 0", e.UsageCount)
	}

	byID, err := s.Get(ctx, e.ID, "")
	if err != nil {
		t.Fatalf("Get by internal id: %v", err)
	}
	if byID == nil || byID.PublicID != publicID {
		t.Fatalf("lookup by internal id mismatch")
	}
}

func TestStore_CreateDefaultsCategoryToGeneral(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	publicID, err := s.Create(ctx, Draft{Title: "t", Problem: "p", Solution: "s", Categories: []string{"  ", ""}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	e, err := s.Get(ctx, 0, publicID)
	if err != nil || e == nil {
		t.Fatalf("Get: %v, entry=%v", err, e)
	}
	if len(e.Categories) != 1 || e.Categories[0] != DefaultCategory {
		t.Fatalf("Categories=%v, want [%s]", e.Categories, DefaultCategory)
	}
}

func TestStore_CreateValidation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		draft Draft
		field string
	}{
		{"missing title", Draft{Problem: "p", Solution: "s"}, "title"},
		{"blank problem", Draft{Title: "t", Problem: "   ", Solution: "s"}, "problem"},
		{"missing solution", Draft{Title: "t", Problem: "p"}, "solution"},
	}
	for _, tc := range cases {
		_, err := s.Create(ctx, tc.draft)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: err=%v, want ValidationError", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: Field=%q, want %q", tc.name, verr.Field, tc.field)
		}
	}
}

func TestStore_UpdateUnknownIDReturnsFalse(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	ok, err := s.Update(context.Background(), 9999, Draft{Title: "t", Problem: "p", Solution: "s"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if ok {
		t.Fatalf("Update of unknown id reported success")
	}
}

func TestStore_UpdateRewritesRowAndIndex(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base }

	publicID, err := s.Create(ctx, Draft{Title: "Checkout 500s", Problem: "p", Solution: "restart the zebrafish worker"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	e, err := s.Get(ctx, 0, publicID)
	if err != nil || e == nil {
		t.Fatalf("Get: %v", err)
	}

	s.now = func() time.Time { return base.Add(time.Minute) }
	ok, err := s.Update(ctx, e.ID, Draft{
		Title:    "Checkout 500s",
		Problem:  "p",
		Solution: "rotate the quokka credentials instead",
		Tags:     []string{"credentials"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !ok {
		t.Fatalf("Update reported not found")
	}

	updated, err := s.Get(ctx, e.ID, "")
	if err != nil || updated == nil {
		t.Fatalf("Get after update: %v", err)
	}
	if updated.UpdatedAtUnixMs <= updated.CreatedAtUnixMs {
		t.Fatalf("updated_at=%d not refreshed past created_at=%d", updated.UpdatedAtUnixMs, updated.CreatedAtUnixMs)
	}

	// The index must follow the row in the same unit of work.
	if got, err := s.Search(ctx, SearchRequest{Query: "zebrafish"}); err != nil || len(got) != 0 {
		t.Fatalf("stale index text still matches: %v entries, err=%v", len(got), err)
	}
	got, err := s.Search(ctx, SearchRequest{Query: "quokka"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("new index text not matched: %v", got)
	}
}

func TestStore_GetPermissiveLookup(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.Get(ctx, 0, "")
	if err != nil {
		t.Fatalf("Get with no identifiers: %v", err)
	}
	if e != nil {
		t.Fatalf("Get with no identifiers returned an entry")
	}

	e, err = s.Get(ctx, 42, "")
	if err != nil {
		t.Fatalf("Get unknown id: %v", err)
	}
	if e != nil {
		t.Fatalf("Get unknown id returned an entry")
	}
}

func TestStore_RecordUsage(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	publicID, err := s.Create(ctx, Draft{Title: "t", Problem: "p", Solution: "s"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	e, err := s.Get(ctx, 0, publicID)
	if err != nil || e == nil {
		t.Fatalf("Get: %v", err)
	}

	helpful := true
	for i := 0; i < 3; i++ {
		if err := s.RecordUsage(ctx, e.ID, "ticket-123", &helpful, "worked"); err != nil {
			t.Fatalf("RecordUsage %d: %v", i, err)
		}
	}

	after, err := s.Get(ctx, e.ID, "")
	if err != nil || after == nil {
		t.Fatalf("Get after usage: %v", err)
	}
	if after.UsageCount != 3 {
		t.Fatalf("UsageCount=%d, want 3", after.UsageCount)
	}

	snap, err := s.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(snap.Usage) != 3 {
		t.Fatalf("usage events=%d, want 3", len(snap.Usage))
	}
	if snap.Usage[0].Helpful == nil || !*snap.Usage[0].Helpful {
		t.Fatalf("helpful flag not persisted: %+v", snap.Usage[0])
	}
	if snap.Usage[0].Context != "ticket-123" {
		t.Fatalf("Context=%q", snap.Usage[0].Context)
	}
}

func TestStore_RecordUsageUnknownID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	err := s.RecordUsage(context.Background(), 777, "manual", nil, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	// The failed usage must not leave a dangling log row behind.
	snap, err := s.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(snap.Usage) != 0 {
		t.Fatalf("usage events=%d, want 0", len(snap.Usage))
	}
}
