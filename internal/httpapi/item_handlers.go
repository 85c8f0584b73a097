package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/feedsift/internal/db"
	"horse.fit/feedsift/internal/ingest"
)

type markReadRequest struct {
	IncludeDuplicates bool `json:"include_duplicates"`
}

func (s *Server) handleIngestItem(c echo.Context) error {
	feedID := strings.TrimSpace(c.Param("feed_id"))
	if feedID == "" {
		return failField(c, "feed_id", "is required")
	}
	body, err := readRawBody(c)
	if err != nil {
		return failField(c, "body", err.Error())
	}

	result, err := s.ingester.IngestPayload(c.Request().Context(), feedID, body)
	if err != nil {
		var validationErr *ingest.ValidationError
		switch {
		case errors.As(err, &validationErr):
			return failField(c, "item", validationErr.Error())
		case errors.Is(err, db.ErrNoRows):
			return failNotFound(c, "Feed not found")
		}
		s.logger.Error().Err(err).Str("feed_id", feedID).Msg("ingest item failed")
		return internalError(c, "Failed to ingest item")
	}

	status := http.StatusOK
	if result.Inserted {
		status = http.StatusCreated
	}
	return successWithStatus(c, status, map[string]any{
		"item":          result.Item,
		"inserted":      result.Inserted,
		"duplicate_ids": nonNilStrings(result.DuplicateIDs),
	})
}

func (s *Server) handleListItems(c echo.Context) error {
	feedID := strings.TrimSpace(c.Param("feed_id"))
	if feedID == "" {
		return failField(c, "feed_id", "is required")
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failField(c, "limit", err.Error())
	}
	offset, err := parsePositiveInt(c.QueryParam("offset"), 0, 0, 1_000_000)
	if err != nil {
		return failField(c, "offset", err.Error())
	}
	unreadOnly, err := parseBool(c.QueryParam("unread"))
	if err != nil {
		return failField(c, "unread", err.Error())
	}

	ctx := c.Request().Context()
	if _, err := s.store.GetFeed(ctx, feedID); err != nil {
		return s.storeFailure(c, err, "Failed to load feed", feedID)
	}

	items, err := s.store.ListFeedItems(ctx, feedID, db.ListFeedItemsOptions{
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("feed_id", feedID).Msg("list feed items failed")
		return internalError(c, "Failed to load items")
	}
	if items == nil {
		items = []db.FeedItemRecord{}
	}

	return success(c, map[string]any{
		"items": items,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
		},
		"filters": map[string]any{
			"unread": unreadOnly,
		},
	})
}

func (s *Server) handleMarkRead(c echo.Context) error {
	feedID := strings.TrimSpace(c.Param("feed_id"))
	itemID := strings.TrimSpace(c.Param("item_id"))
	if feedID == "" || itemID == "" {
		return failField(c, "item_id", "is required")
	}

	var req markReadRequest
	if err := decodeJSONBody(c, &req); err != nil && !errors.Is(err, io.EOF) {
		return failField(c, "body", err.Error())
	}

	ctx := c.Request().Context()
	updated, err := s.store.MarkItemRead(ctx, feedID, itemID, req.IncludeDuplicates)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Item not found")
		}
		s.logger.Error().Err(err).Str("feed_id", feedID).Str("item_id", itemID).Msg("mark item read failed")
		return internalError(c, "Failed to mark item read")
	}

	item, err := s.store.GetFeedItem(ctx, feedID, itemID)
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", itemID).Msg("reload item failed")
		return internalError(c, "Failed to load item")
	}

	return success(c, map[string]any{
		"item":    item,
		"updated": updated,
	})
}

func readRawBody(c echo.Context) ([]byte, error) {
	body := c.Request().Body
	if body == nil {
		return nil, fmt.Errorf("request body is required")
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("request body is required")
	}
	return raw, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
