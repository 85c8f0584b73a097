package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	VisibilityPrivate = "PRIVATE"
	VisibilityGlobal  = "GLOBAL"

	defaultFeedListLimit = 100
	maxFeedListLimit     = 500
)

type FeedRecord struct {
	FeedID         int64           `json:"-"`
	FeedUUID       string          `json:"feed_id"`
	Name           string          `json:"name"`
	Visibility     string          `json:"visibility"`
	FilterQuery    string          `json:"filter_query"`
	DataExpression json.RawMessage `json:"data_expression"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type CreateFeedInput struct {
	Name           string
	Visibility     string
	FilterQuery    string
	DataExpression json.RawMessage
}

// ExpressionEdit rewrites a stored filter expression. It receives nil when
// the feed has no expression and may return nil to clear it.
type ExpressionEdit func(current json.RawMessage) (json.RawMessage, error)

const feedColumns = `
	feed_id,
	feed_uuid::text,
	name,
	visibility::text,
	filter_query,
	data_expression,
	created_at,
	updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*FeedRecord, error) {
	var (
		rec        FeedRecord
		expression []byte
	)
	if err := row.Scan(
		&rec.FeedID,
		&rec.FeedUUID,
		&rec.Name,
		&rec.Visibility,
		&rec.FilterQuery,
		&expression,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.DataExpression = nullableJSON(expression)
	return &rec, nil
}

func NormalizeVisibility(raw string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", VisibilityPrivate:
		return VisibilityPrivate, nil
	case VisibilityGlobal:
		return VisibilityGlobal, nil
	default:
		return "", fmt.Errorf("visibility must be %s or %s", VisibilityPrivate, VisibilityGlobal)
	}
}

func (p *Pool) CreateFeed(ctx context.Context, in CreateFeedInput) (*FeedRecord, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("feed name is required")
	}
	visibility, err := NormalizeVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}

	q := `
INSERT INTO feedsift.feeds (
	name,
	visibility,
	filter_query,
	data_expression,
	created_at,
	updated_at
)
VALUES ($1, $2::feedsift.feed_visibility, $3, $4::jsonb, now(), now())
RETURNING` + feedColumns

	rec, err := scanFeed(p.QueryRow(ctx, q, name, visibility, strings.TrimSpace(in.FilterQuery), jsonArg(in.DataExpression)))
	if err != nil {
		return nil, fmt.Errorf("insert feed: %w", err)
	}
	return rec, nil
}

func (p *Pool) GetFeed(ctx context.Context, feedUUID string) (*FeedRecord, error) {
	q := `SELECT` + feedColumns + `
FROM feedsift.feeds
WHERE feed_uuid::text = $1
LIMIT 1
`

	rec, err := scanFeed(p.QueryRow(ctx, q, strings.TrimSpace(feedUUID)))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query feed %s: %w", feedUUID, err)
	}
	return rec, nil
}

func (p *Pool) ListFeeds(ctx context.Context, limit int) ([]FeedRecord, error) {
	if limit <= 0 {
		limit = defaultFeedListLimit
	}
	if limit > maxFeedListLimit {
		limit = maxFeedListLimit
	}

	q := `SELECT` + feedColumns + `
FROM feedsift.feeds
ORDER BY created_at DESC, feed_id DESC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	out := make([]FeedRecord, 0, limit)
	for rows.Next() {
		rec, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feed row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}
	return out, nil
}

// UpdateFeedFilter stores a new expression and, when filterQuery is not nil,
// the query text it was built from.
func (p *Pool) UpdateFeedFilter(ctx context.Context, feedUUID string, filterQuery *string, expression json.RawMessage) (*FeedRecord, error) {
	var query any
	if filterQuery != nil {
		query = strings.TrimSpace(*filterQuery)
	}

	q := `
UPDATE feedsift.feeds
SET
	data_expression = $2::jsonb,
	filter_query = COALESCE($3, filter_query),
	updated_at = now()
WHERE feed_uuid::text = $1
RETURNING` + feedColumns

	rec, err := scanFeed(p.QueryRow(ctx, q, strings.TrimSpace(feedUUID), jsonArg(expression), query))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("update feed %s filter: %w", feedUUID, err)
	}
	return rec, nil
}

// EditFeedExpression applies edit to the stored expression under a row lock
// so concurrent edits of one feed serialize.
func (p *Pool) EditFeedExpression(ctx context.Context, feedUUID string, edit ExpressionEdit) (*FeedRecord, error) {
	if edit == nil {
		return nil, fmt.Errorf("expression edit is nil")
	}

	const selectQ = `
SELECT feed_id, data_expression
FROM feedsift.feeds
WHERE feed_uuid::text = $1
FOR UPDATE
`
	updateQ := `
UPDATE feedsift.feeds
SET data_expression = $2::jsonb, updated_at = now()
WHERE feed_id = $1
RETURNING` + feedColumns

	var rec *FeedRecord
	err := p.inTx(ctx, func(tx Tx) error {
		var (
			feedID  int64
			current []byte
		)
		if err := tx.QueryRow(ctx, selectQ, strings.TrimSpace(feedUUID)).Scan(&feedID, &current); err != nil {
			if IsNoRows(err) {
				return ErrNoRows
			}
			return fmt.Errorf("lock feed %s: %w", feedUUID, err)
		}

		next, err := edit(nullableJSON(current))
		if err != nil {
			return err
		}

		rec, err = scanFeed(tx.QueryRow(ctx, updateQ, feedID, jsonArg(next)))
		if err != nil {
			return fmt.Errorf("update feed %s expression: %w", feedUUID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func nullableJSON(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.RawMessage(trimmed)
}

// jsonArg passes a JSON document as a query argument; nil becomes SQL NULL.
func jsonArg(raw json.RawMessage) any {
	normalized := nullableJSON(raw)
	if normalized == nil {
		return nil
	}
	return string(normalized)
}
