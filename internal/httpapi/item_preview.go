package httpapi

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"horse.fit/feedsift/internal/db"
)

const (
	defaultItemPreviewMaxChars = 1000
	minItemPreviewMaxChars     = 200
	maxItemPreviewMaxChars     = 4000
)

type itemPreview struct {
	PreviewText string `json:"preview_text"`
	CharCount   int    `json:"char_count"`
	Truncated   bool   `json:"truncated"`
}

func (s *Server) handleGetItem(c echo.Context) error {
	feedID := strings.TrimSpace(c.Param("feed_id"))
	itemID := strings.TrimSpace(c.Param("item_id"))
	if feedID == "" || itemID == "" {
		return failField(c, "item_id", "is required")
	}

	maxChars, err := parsePositiveInt(
		c.QueryParam("max_chars"),
		defaultItemPreviewMaxChars,
		minItemPreviewMaxChars,
		maxItemPreviewMaxChars,
	)
	if err != nil {
		return failField(c, "max_chars", err.Error())
	}

	item, err := s.store.GetFeedItem(c.Request().Context(), feedID, itemID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Item not found")
		}
		s.logger.Error().Err(err).Str("feed_id", feedID).Str("item_id", itemID).Msg("load item failed")
		return internalError(c, "Failed to load item")
	}

	return success(c, map[string]any{
		"item":    item,
		"preview": buildItemPreview(item, maxChars),
	})
}

// buildItemPreview clips the item body, falling back to the title for items
// stored without one.
func buildItemPreview(item *db.FeedItemRecord, maxChars int) itemPreview {
	text := strings.TrimSpace(item.BodyText)
	if text == "" {
		text = strings.TrimSpace(item.Title)
	}
	clipped, truncated := truncatePreviewText(text, maxChars)
	return itemPreview{
		PreviewText: clipped,
		CharCount:   utf8.RuneCountInString(clipped),
		Truncated:   truncated,
	}
}

func truncatePreviewText(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	limit := maxChars
	if limit <= 0 {
		limit = defaultItemPreviewMaxChars
	}

	runes := []rune(trimmed)
	if len(runes) <= limit {
		return trimmed, false
	}
	if limit == 1 {
		return "…", true
	}

	clipped := strings.TrimSpace(string(runes[:limit-1]))
	if clipped == "" {
		return "…", true
	}
	return clipped + "…", true
}
