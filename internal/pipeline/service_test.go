package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/feedsift/internal/dedup"
	"horse.fit/feedsift/internal/globaltime"
)

type fakeStore struct {
	items     []dedup.HashedItem
	from, to  time.Time
	links     map[string][]string
	linkCalls int
}

func (f *fakeStore) ListHashedItems(_ context.Context, _ string, from, to time.Time) ([]dedup.HashedItem, error) {
	f.from, f.to = from, to
	return f.items, nil
}

func (f *fakeStore) LinkDuplicates(_ context.Context, itemUUID string, duplicateUUIDs []string) error {
	if f.links == nil {
		f.links = map[string][]string{}
	}
	f.linkCalls++
	f.links[itemUUID] = append(f.links[itemUUID], duplicateUUIDs...)
	return nil
}

func sampleItems(base time.Time) []dedup.HashedItem {
	return []dedup.HashedItem{
		{ID: "a", PostTime: base, SemanticHash: "1111"},
		{ID: "b", PostTime: base.Add(10 * time.Minute), SemanticHash: "1110"},
		{ID: "c", PostTime: base.Add(20 * time.Minute), SemanticHash: "0000"},
		{ID: "d", PostTime: base.Add(30 * time.Minute), SemanticHash: "1111"},
		{ID: "e", PostTime: base.Add(5 * time.Hour), SemanticHash: "1111"},
	}
}

func TestDedupFeedLinksPairs(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{items: sampleItems(base)}
	svc := NewService(store, dedup.Classifier{MaxDistance: 1, Window: time.Hour}, zerolog.Nop())

	result, err := svc.DedupFeed(context.Background(), "feed-1", DedupOptions{
		Since: base.Add(-time.Hour),
		Until: base.Add(6 * time.Hour),
	})
	if err != nil {
		t.Fatalf("dedup feed: %v", err)
	}
	if result.Scanned != 5 {
		t.Fatalf("unexpected scanned count: %d", result.Scanned)
	}
	if len(result.Pairs) != 3 || result.Linked != 3 {
		t.Fatalf("unexpected pairs: %+v", result)
	}
	if got := store.links["a"]; len(got) != 2 || got[0] != "b" || got[1] != "d" {
		t.Fatalf("unexpected links for a: %v", got)
	}
	if got := store.links["b"]; len(got) != 1 || got[0] != "d" {
		t.Fatalf("unexpected links for b: %v", got)
	}
	if store.linkCalls != 2 {
		t.Fatalf("expected one link call per older item, got %d", store.linkCalls)
	}
}

func TestDedupFeedDryRun(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{items: sampleItems(base)}
	svc := NewService(store, dedup.Classifier{MaxDistance: 1, Window: time.Hour}, zerolog.Nop())

	result, err := svc.DedupFeed(context.Background(), "feed-1", DedupOptions{Since: base, Until: base.Add(time.Hour), DryRun: true})
	if err != nil {
		t.Fatalf("dedup feed: %v", err)
	}
	if len(result.Pairs) == 0 || result.Linked != 0 || store.linkCalls != 0 {
		t.Fatalf("dry run must not link: %+v calls=%d", result, store.linkCalls)
	}
}

func TestDedupFeedDefaultRange(t *testing.T) {
	now := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(now)
	defer globaltime.ResetTime()

	store := &fakeStore{}
	svc := NewService(store, dedup.Classifier{MaxDistance: 1, Window: time.Hour}, zerolog.Nop())
	if _, err := svc.DedupFeed(context.Background(), "feed-1", DedupOptions{}); err != nil {
		t.Fatalf("dedup feed: %v", err)
	}
	if !store.to.Equal(now) || !store.from.Equal(now.Add(-DefaultDedupLookback)) {
		t.Fatalf("unexpected range: %s .. %s", store.from, store.to)
	}
}

func TestDedupFeedRejectsBadInput(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeStore{}, dedup.Classifier{MaxDistance: 1, Window: time.Hour}, zerolog.Nop())
	if _, err := svc.DedupFeed(context.Background(), " ", DedupOptions{}); err == nil {
		t.Fatalf("expected missing feed id to fail")
	}

	base := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	if _, err := svc.DedupFeed(context.Background(), "feed-1", DedupOptions{Since: base, Until: base.Add(-time.Hour)}); err == nil {
		t.Fatalf("expected inverted range to fail")
	}
}
