// Package pipeline rescans stored feed items for near duplicates, for items
// ingested before a hash was available or after the similarity settings
// changed.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/feedsift/internal/dedup"
	"horse.fit/feedsift/internal/globaltime"
)

const DefaultDedupLookback = 7 * 24 * time.Hour

// Store is what a rescan reads and writes. *db.Pool implements it.
type Store interface {
	ListHashedItems(ctx context.Context, feedUUID string, from, to time.Time) ([]dedup.HashedItem, error)
	LinkDuplicates(ctx context.Context, itemUUID string, duplicateUUIDs []string) error
}

type Service struct {
	store      Store
	classifier dedup.Classifier
	logger     zerolog.Logger
}

type DedupOptions struct {
	// Since and Until bound the post times scanned. A zero Until means now;
	// a zero Since means DefaultDedupLookback before Until.
	Since time.Time
	Until time.Time
	// DryRun reports pairs without recording them.
	DryRun bool
}

type DedupResult struct {
	Scanned int          `json:"scanned"`
	Pairs   []dedup.Pair `json:"pairs"`
	Linked  int          `json:"linked"`
}

func NewService(store Store, classifier dedup.Classifier, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		logger:     logger,
	}
}

// DedupFeed finds every duplicate pair among a feed's items posted in the
// scan range and links them. Existing links are kept.
func (s *Service) DedupFeed(ctx context.Context, feedUUID string, opts DedupOptions) (DedupResult, error) {
	if s == nil || s.store == nil {
		return DedupResult{}, fmt.Errorf("pipeline service is not initialized")
	}
	feedUUID = strings.TrimSpace(feedUUID)
	if feedUUID == "" {
		return DedupResult{}, fmt.Errorf("feed id is required")
	}

	started := globaltime.Now()
	until := opts.Until
	if until.IsZero() {
		until = globaltime.UTC()
	}
	since := opts.Since
	if since.IsZero() {
		since = until.Add(-DefaultDedupLookback)
	}
	if since.After(until) {
		return DedupResult{}, fmt.Errorf("since (%s) is after until (%s)", since.Format(time.RFC3339), until.Format(time.RFC3339))
	}

	items, err := s.store.ListHashedItems(ctx, feedUUID, since, until)
	if err != nil {
		return DedupResult{}, fmt.Errorf("load items: %w", err)
	}

	window := dedup.NewWindow(s.classifier, items)
	result := DedupResult{
		Scanned: window.Len(),
		Pairs:   window.Pairs(),
	}
	if opts.DryRun || len(result.Pairs) == 0 {
		return result, nil
	}

	// Links are stored on both sides, so grouping by the older item of
	// each pair is enough.
	order := make([]string, 0, len(result.Pairs))
	byLeft := make(map[string][]string)
	for _, pair := range result.Pairs {
		if _, ok := byLeft[pair.Left]; !ok {
			order = append(order, pair.Left)
		}
		byLeft[pair.Left] = append(byLeft[pair.Left], pair.Right)
	}

	for _, left := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.store.LinkDuplicates(ctx, left, byLeft[left]); err != nil {
			return result, fmt.Errorf("link duplicates of %s: %w", left, err)
		}
		result.Linked += len(byLeft[left])
	}

	s.logger.Info().
		Str("feed_id", feedUUID).
		Time("since", since).
		Time("until", until).
		Int("scanned", result.Scanned).
		Int("linked", result.Linked).
		Dur("elapsed", globaltime.Since(started)).
		Msg("feed dedup completed")

	return result, nil
}
