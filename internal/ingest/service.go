// Package ingest stores inbound feed items and tags their near duplicates.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/feedsift/internal/db"
	"horse.fit/feedsift/internal/dedup"
	"horse.fit/feedsift/internal/language"
	"horse.fit/feedsift/internal/reader"
	payloadschema "horse.fit/feedsift/schema"
)

// ItemStore is the storage the service needs. *db.Pool implements it.
type ItemStore interface {
	InsertFeedItem(ctx context.Context, in db.InsertFeedItemInput) (*db.FeedItemRecord, bool, error)
	ListHashedItems(ctx context.Context, feedUUID string, from, to time.Time) ([]dedup.HashedItem, error)
	LinkDuplicates(ctx context.Context, itemUUID string, duplicateUUIDs []string) error
}

// TextExtractor turns item HTML or an item URL into plain text.
// reader.Extractor implements it.
type TextExtractor interface {
	FromHTML(html, pageURL string) (string, error)
	FetchText(ctx context.Context, pageURL string) (string, error)
}

type Options struct {
	// FetchPages allows fetching the item URL when the payload carries
	// neither body text nor HTML.
	FetchPages bool
	Extractor  TextExtractor
}

type Service struct {
	store      ItemStore
	classifier dedup.Classifier
	extractor  TextExtractor
	fetchPages bool
	logger     zerolog.Logger
}

type Result struct {
	Item         *db.FeedItemRecord `json:"item"`
	Inserted     bool               `json:"inserted"`
	DuplicateIDs []string           `json:"duplicate_ids"`
}

func NewService(store ItemStore, classifier dedup.Classifier, opts Options, logger zerolog.Logger) *Service {
	extractor := opts.Extractor
	if extractor == nil {
		extractor = reader.Extractor{}
	}
	return &Service{
		store:      store,
		classifier: classifier,
		extractor:  extractor,
		fetchPages: opts.FetchPages,
		logger:     logger,
	}
}

// IngestPayload validates a raw item payload and ingests it.
func (s *Service) IngestPayload(ctx context.Context, feedUUID string, payload json.RawMessage) (Result, error) {
	item, err := payloadschema.ValidateFeedItemPayload(payload)
	if err != nil {
		return Result{}, &ValidationError{Err: err}
	}
	return s.IngestItem(ctx, feedUUID, item)
}

// IngestItem stores item in the feed and links it with the stored items the
// classifier marks as its duplicates. Re-ingesting an external id returns the
// stored item untouched.
func (s *Service) IngestItem(ctx context.Context, feedUUID string, item *payloadschema.FeedItem) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}
	if item == nil {
		return Result{}, &ValidationError{Err: fmt.Errorf("item is nil")}
	}
	feedUUID = strings.TrimSpace(feedUUID)
	if feedUUID == "" {
		return Result{}, &ValidationError{Err: fmt.Errorf("feed id is required")}
	}

	input := s.buildInput(ctx, feedUUID, item)
	rec, inserted, err := s.store.InsertFeedItem(ctx, input)
	if err != nil {
		return Result{}, fmt.Errorf("store item: %w", err)
	}
	itemsIngested.WithLabelValues(insertOutcome(inserted)).Inc()

	result := Result{Item: rec, Inserted: inserted, DuplicateIDs: rec.DuplicateIDs}
	if !inserted {
		s.logger.Debug().
			Str("feed_id", feedUUID).
			Str("external_id", input.ExternalID).
			Msg("item already stored")
		return result, nil
	}

	candidate := rec.Hashed()
	if !candidate.Comparable() {
		return result, nil
	}

	reach := s.classifier.Reach()
	from := candidate.PostTime.Add(-reach)
	to := candidate.PostTime.Add(reach)
	pool, err := s.store.ListHashedItems(ctx, feedUUID, from, to)
	if err != nil {
		return result, fmt.Errorf("load duplicate candidates: %w", err)
	}

	matches := dedup.NewWindow(s.classifier, pool).Match(candidate)
	if len(matches) == 0 {
		return result, nil
	}
	if err := s.store.LinkDuplicates(ctx, rec.ItemUUID, matches); err != nil {
		return result, fmt.Errorf("link duplicates: %w", err)
	}
	duplicatesLinked.Add(float64(len(matches)))

	merged := slices.Concat(rec.DuplicateIDs, matches)
	slices.Sort(merged)
	result.DuplicateIDs = slices.Compact(merged)
	rec.DuplicateIDs = result.DuplicateIDs

	s.logger.Info().
		Str("feed_id", feedUUID).
		Str("item_id", rec.ItemUUID).
		Int("duplicates", len(matches)).
		Msg("duplicates linked")

	return result, nil
}

func (s *Service) buildInput(ctx context.Context, feedUUID string, item *payloadschema.FeedItem) db.InsertFeedItemInput {
	title := strings.TrimSpace(item.Title)
	pageURL := derefTrimmed(item.URL)
	body := s.resolveBody(ctx, item, pageURL)

	content := strings.TrimSpace(title + "\n\n" + body)

	hash := derefTrimmed(item.SemanticHash)
	if hash == "" {
		hash = dedup.SemanticHash(content)
	}

	input := db.InsertFeedItemInput{
		FeedUUID:     feedUUID,
		ExternalID:   strings.TrimSpace(item.ExternalID),
		Title:        title,
		BodyText:     body,
		Author:       normalizeNullableString(derefTrimmed(item.Author)),
		Language:     language.Resolve(derefTrimmed(item.Language), content),
		Tags:         item.Tags,
		SemanticHash: normalizeNullableString(hash),
	}
	if pageURL != "" {
		canonical, _ := normalizeURL(pageURL)
		if canonical == "" {
			canonical = pageURL
		}
		input.URL = &canonical
	}
	if posted := item.PostedAt(); !posted.IsZero() {
		input.PostTime = &posted
	}
	return input
}

// resolveBody prefers the payload's body text, then text extracted from its
// HTML, then the fetched page when fetching is enabled.
func (s *Service) resolveBody(ctx context.Context, item *payloadschema.FeedItem, pageURL string) string {
	if body := reader.CleanText(derefTrimmed(item.BodyText)); body != "" {
		return body
	}

	if html := derefTrimmed(item.HTML); html != "" {
		text, err := s.extractor.FromHTML(html, pageURL)
		if err == nil {
			return text
		}
		s.logger.Warn().Err(err).Str("external_id", item.ExternalID).Msg("html extraction failed")
	}

	if s.fetchPages && pageURL != "" {
		text, err := s.extractor.FetchText(ctx, pageURL)
		if err == nil {
			return text
		}
		s.logger.Warn().Err(err).Str("external_id", item.ExternalID).Str("url", pageURL).Msg("page fetch failed")
	}
	return ""
}

// ValidationError marks a rejected payload, as opposed to a storage failure.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid feed item: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func insertOutcome(inserted bool) string {
	if inserted {
		return "inserted"
	}
	return "existing"
}

func derefTrimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func normalizeNullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
