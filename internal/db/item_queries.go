package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"horse.fit/feedsift/internal/dedup"
)

const (
	defaultItemListLimit = 50
	maxItemListLimit     = 500
)

type FeedItemRecord struct {
	ItemID            int64      `json:"-"`
	ItemUUID          string     `json:"item_id"`
	FeedUUID          string     `json:"feed_id"`
	ExternalID        string     `json:"external_id"`
	Title             string     `json:"title"`
	BodyText          string     `json:"body_text,omitempty"`
	URL               *string    `json:"url,omitempty"`
	Author            *string    `json:"author,omitempty"`
	Language          string     `json:"language"`
	Tags              []string   `json:"tags"`
	PostTime          *time.Time `json:"post_time,omitempty"`
	SemanticHash      *string    `json:"semantic_hash,omitempty"`
	DuplicateIDs      []string   `json:"duplicate_ids"`
	IsRead            bool       `json:"is_read"`
	IsDuplicationRead bool       `json:"is_duplication_read"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Hashed returns the view of the item the duplicate classifier needs.
func (r FeedItemRecord) Hashed() dedup.HashedItem {
	item := dedup.HashedItem{ID: r.ItemUUID}
	if r.PostTime != nil {
		item.PostTime = *r.PostTime
	}
	if r.SemanticHash != nil {
		item.SemanticHash = *r.SemanticHash
	}
	return item
}

type InsertFeedItemInput struct {
	FeedUUID     string
	ExternalID   string
	Title        string
	BodyText     string
	URL          *string
	Author       *string
	Language     string
	Tags         []string
	PostTime     *time.Time
	SemanticHash *string
}

type ListFeedItemsOptions struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

const itemColumns = `
	fi.item_id,
	fi.item_uuid::text,
	f.feed_uuid::text,
	fi.external_id,
	fi.title,
	fi.body_text,
	fi.url,
	fi.author,
	fi.language,
	fi.tags,
	fi.post_time,
	fi.semantic_hash,
	fi.duplicate_ids,
	fi.is_read,
	fi.is_duplication_read,
	fi.created_at
`

func scanFeedItem(row rowScanner) (*FeedItemRecord, error) {
	var (
		rec        FeedItemRecord
		tags       []byte
		duplicates []byte
	)
	if err := row.Scan(
		&rec.ItemID,
		&rec.ItemUUID,
		&rec.FeedUUID,
		&rec.ExternalID,
		&rec.Title,
		&rec.BodyText,
		&rec.URL,
		&rec.Author,
		&rec.Language,
		&tags,
		&rec.PostTime,
		&rec.SemanticHash,
		&duplicates,
		&rec.IsRead,
		&rec.IsDuplicationRead,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.Tags, err = decodeStringList(tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if rec.DuplicateIDs, err = decodeStringList(duplicates); err != nil {
		return nil, fmt.Errorf("decode duplicate_ids: %w", err)
	}
	if rec.PostTime != nil {
		utc := rec.PostTime.UTC()
		rec.PostTime = &utc
	}
	return &rec, nil
}

// InsertFeedItem stores an item unless the feed already has one with the
// same external id, in which case the stored item is returned with
// inserted=false.
func (p *Pool) InsertFeedItem(ctx context.Context, in InsertFeedItemInput) (rec *FeedItemRecord, inserted bool, err error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, false, fmt.Errorf("external_id is required")
	}
	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = "und"
	}
	tags, err := encodeStringList(in.Tags)
	if err != nil {
		return nil, false, fmt.Errorf("encode tags: %w", err)
	}

	q := `
WITH feed AS (
	SELECT feed_id, feed_uuid FROM feedsift.feeds WHERE feed_uuid::text = $1
), inserted AS (
	INSERT INTO feedsift.feed_items (
		feed_id,
		external_id,
		title,
		body_text,
		url,
		author,
		language,
		tags,
		post_time,
		semantic_hash,
		created_at
	)
	SELECT feed.feed_id, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, now()
	FROM feed
	ON CONFLICT (feed_id, external_id) DO NOTHING
	RETURNING *
)
SELECT` + itemColumns + `
FROM inserted fi
JOIN feed f ON f.feed_id = fi.feed_id
`

	rec, err = scanFeedItem(p.QueryRow(ctx, q,
		strings.TrimSpace(in.FeedUUID),
		externalID,
		strings.TrimSpace(in.Title),
		in.BodyText,
		in.URL,
		in.Author,
		language,
		tags,
		in.PostTime,
		in.SemanticHash,
	))
	if err == nil {
		return rec, true, nil
	}
	if !IsNoRows(err) {
		return nil, false, fmt.Errorf("insert feed item %s: %w", externalID, err)
	}

	// Either the feed is missing or the item already exists.
	existing, err := p.GetFeedItemByExternalID(ctx, in.FeedUUID, externalID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (p *Pool) GetFeedItemByExternalID(ctx context.Context, feedUUID, externalID string) (*FeedItemRecord, error) {
	q := `SELECT` + itemColumns + `
FROM feedsift.feed_items fi
JOIN feedsift.feeds f ON f.feed_id = fi.feed_id
WHERE f.feed_uuid::text = $1
  AND fi.external_id = $2
LIMIT 1
`
	rec, err := scanFeedItem(p.QueryRow(ctx, q, strings.TrimSpace(feedUUID), strings.TrimSpace(externalID)))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query feed item %s: %w", externalID, err)
	}
	return rec, nil
}

func (p *Pool) GetFeedItem(ctx context.Context, feedUUID, itemUUID string) (*FeedItemRecord, error) {
	q := `SELECT` + itemColumns + `
FROM feedsift.feed_items fi
JOIN feedsift.feeds f ON f.feed_id = fi.feed_id
WHERE f.feed_uuid::text = $1
  AND fi.item_uuid::text = $2
LIMIT 1
`
	rec, err := scanFeedItem(p.QueryRow(ctx, q, strings.TrimSpace(feedUUID), strings.TrimSpace(itemUUID)))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query feed item %s: %w", itemUUID, err)
	}
	return rec, nil
}

func (p *Pool) ListFeedItems(ctx context.Context, feedUUID string, opts ListFeedItemsOptions) ([]FeedItemRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultItemListLimit
	}
	if limit > maxItemListLimit {
		limit = maxItemListLimit
	}
	offset := max(opts.Offset, 0)

	q := `SELECT` + itemColumns + `
FROM feedsift.feed_items fi
JOIN feedsift.feeds f ON f.feed_id = fi.feed_id
WHERE f.feed_uuid::text = $1
  AND ($2::boolean = false OR NOT fi.is_read)
ORDER BY COALESCE(fi.post_time, fi.created_at) DESC, fi.item_id DESC
LIMIT $3
OFFSET $4
`
	rows, err := p.Query(ctx, q, strings.TrimSpace(feedUUID), opts.UnreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query feed items: %w", err)
	}
	defer rows.Close()

	out := make([]FeedItemRecord, 0, limit)
	for rows.Next() {
		rec, err := scanFeedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feed item row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed items: %w", err)
	}
	return out, nil
}

// ListHashedItems returns the comparable items of a feed posted within
// [from, to], oldest first.
func (p *Pool) ListHashedItems(ctx context.Context, feedUUID string, from, to time.Time) ([]dedup.HashedItem, error) {
	const q = `
SELECT
	fi.item_uuid::text,
	fi.post_time,
	fi.semantic_hash
FROM feedsift.feed_items fi
JOIN feedsift.feeds f ON f.feed_id = fi.feed_id
WHERE f.feed_uuid::text = $1
  AND fi.post_time BETWEEN $2 AND $3
  AND COALESCE(fi.semantic_hash, '') <> ''
ORDER BY fi.post_time ASC, fi.item_id ASC
`
	rows, err := p.Query(ctx, q, strings.TrimSpace(feedUUID), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query hashed items: %w", err)
	}
	defer rows.Close()

	var out []dedup.HashedItem
	for rows.Next() {
		var item dedup.HashedItem
		if err := rows.Scan(&item.ID, &item.PostTime, &item.SemanticHash); err != nil {
			return nil, fmt.Errorf("scan hashed item row: %w", err)
		}
		item.PostTime = item.PostTime.UTC()
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hashed items: %w", err)
	}
	return out, nil
}

// LinkDuplicates records itemUUID and duplicateUUIDs as duplicates of each
// other on both sides. Existing links are kept.
func (p *Pool) LinkDuplicates(ctx context.Context, itemUUID string, duplicateUUIDs []string) error {
	if len(duplicateUUIDs) == 0 {
		return nil
	}

	return p.inTx(ctx, func(tx Tx) error {
		if err := appendDuplicatesTx(ctx, tx, itemUUID, duplicateUUIDs); err != nil {
			return err
		}
		for _, other := range duplicateUUIDs {
			if err := appendDuplicatesTx(ctx, tx, other, []string{itemUUID}); err != nil {
				return err
			}
		}
		return nil
	})
}

func appendDuplicatesTx(ctx context.Context, tx Tx, itemUUID string, ids []string) error {
	const q = `
UPDATE feedsift.feed_items AS fi
SET duplicate_ids = (
	SELECT COALESCE(jsonb_agg(merged.value ORDER BY merged.value), '[]'::jsonb)
	FROM (
		SELECT jsonb_array_elements_text(fi.duplicate_ids) AS value
		UNION
		SELECT jsonb_array_elements_text($2::jsonb)
	) AS merged
	WHERE merged.value <> fi.item_uuid::text
)
WHERE fi.item_uuid::text = $1
`
	encoded, err := encodeStringList(ids)
	if err != nil {
		return fmt.Errorf("encode duplicate ids: %w", err)
	}
	if _, err := tx.Exec(ctx, q, strings.TrimSpace(itemUUID), encoded); err != nil {
		return fmt.Errorf("link duplicates of %s: %w", itemUUID, err)
	}
	return nil
}

// MarkItemRead marks an item read. With includeDuplicates its duplicates are
// marked read as well and the item remembers that it did so. It returns the
// number of items updated.
func (p *Pool) MarkItemRead(ctx context.Context, feedUUID, itemUUID string, includeDuplicates bool) (int64, error) {
	const q = `
WITH target AS (
	SELECT fi.item_id, fi.feed_id, fi.duplicate_ids
	FROM feedsift.feed_items fi
	JOIN feedsift.feeds f ON f.feed_id = fi.feed_id
	WHERE f.feed_uuid::text = $1
	  AND fi.item_uuid::text = $2
)
UPDATE feedsift.feed_items AS fi
SET
	is_read = true,
	is_duplication_read = CASE
		WHEN fi.item_id = target.item_id THEN fi.is_duplication_read OR $3::boolean
		ELSE fi.is_duplication_read
	END
FROM target
WHERE fi.feed_id = target.feed_id
  AND (
	fi.item_id = target.item_id
	OR ($3::boolean AND fi.item_uuid::text IN (SELECT jsonb_array_elements_text(target.duplicate_ids)))
  )
`
	updated, err := p.Exec(ctx, q, strings.TrimSpace(feedUUID), strings.TrimSpace(itemUUID), includeDuplicates)
	if err != nil {
		return 0, fmt.Errorf("mark item %s read: %w", itemUUID, err)
	}
	if updated == 0 {
		return 0, ErrNoRows
	}
	return updated, nil
}

func decodeStringList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func encodeStringList(values []string) (string, error) {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	encoded, err := json.Marshal(cleaned)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
