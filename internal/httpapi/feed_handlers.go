package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/feedsift/internal/db"
	"horse.fit/feedsift/internal/expr"
	"horse.fit/feedsift/internal/query"
	payloadschema "horse.fit/feedsift/schema"
)

// errStoredExpression marks a stored expression that no longer decodes. It
// is a server fault, unlike malformed input.
var errStoredExpression = errors.New("stored expression is unreadable")

var errRootExists = errors.New("feed already has an expression; parent_id is required")

type feedView struct {
	*db.FeedRecord
	ExpressionValid bool `json:"expression_valid"`
}

type createFeedRequest struct {
	Name       string          `json:"name"`
	Visibility string          `json:"visibility"`
	Query      string          `json:"query"`
	Expression json.RawMessage `json:"expression"`
}

type placeholderRequest struct {
	ParentID string `json:"parent_id"`
}

func newFeedView(rec *db.FeedRecord) feedView {
	view := feedView{FeedRecord: rec}
	if rec == nil {
		return view
	}
	if root, err := expr.Parse(rec.DataExpression); err == nil {
		view.ExpressionValid = expr.IsValid(root)
	}
	return view
}

func (s *Server) handleListFeeds(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failField(c, "limit", err.Error())
	}

	rows, err := s.store.ListFeeds(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list feeds failed")
		return internalError(c, "Failed to load feeds")
	}

	items := make([]feedView, 0, len(rows))
	for i := range rows {
		items = append(items, newFeedView(&rows[i]))
	}
	return success(c, map[string]any{
		"items": items,
		"limit": limit,
	})
}

func (s *Server) handleGetFeed(c echo.Context) error {
	feedID := strings.TrimSpace(c.Param("feed_id"))
	if feedID == "" {
		return failField(c, "feed_id", "is required")
	}

	rec, err := s.store.GetFeed(c.Request().Context(), feedID)
	if err != nil {
		return s.storeFailure(c, err, "Failed to load feed", feedID)
	}
	return success(c, newFeedView(rec))
}

func (s *Server) handleCreateFeed(c echo.Context) error {
	var req createFeedRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failField(c, "body", err.Error())
	}

	fieldErrors := map[string]string{}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		fieldErrors["name"] = "is required"
	}
	visibility, err := db.NormalizeVisibility(req.Visibility)
	if err != nil {
		fieldErrors["visibility"] = err.Error()
	}

	input := db.CreateFeedInput{Name: name, Visibility: visibility}
	switch {
	case len(req.Expression) > 0 && strings.TrimSpace(req.Query) != "":
		fieldErrors["expression"] = "cannot be combined with query"
	case len(req.Expression) > 0:
		root, err := payloadschema.ValidateExpressionPayload(req.Expression)
		if err != nil {
			fieldErrors["expression"] = err.Error()
			break
		}
		if input.DataExpression, err = expr.Encode(root); err != nil {
			return internalError(c, "Failed to encode expression")
		}
	case strings.TrimSpace(req.Query) != "":
		terms := query.Tokenize(req.Query)
		queriesTokenized.Inc()
		input.FilterQuery = query.Serialize(terms)
		if input.DataExpression, err = expr.Encode(expr.FromTerms(terms)); err != nil {
			return internalError(c, "Failed to encode expression")
		}
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	rec, err := s.store.CreateFeed(c.Request().Context(), input)
	if err != nil {
		s.logger.Error().Err(err).Str("name", name).Msg("create feed failed")
		return internalError(c, "Failed to create feed")
	}
	return created(c, newFeedView(rec))
}

// handlePutExpression replaces the whole expression tree. A null expression
// clears the filter.
func (s *Server) handlePutExpression(c echo.Context) error {
	feedID := strings.TrimSpace(c.Param("feed_id"))
	var req expressionRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failField(c, "body", err.Error())
	}

	root, err := payloadschema.ValidateExpressionPayload(req.Expression)
	if err != nil {
		expressionEdits.WithLabelValues("put", "rejected").Inc()
		return failField(c, "expression", err.Error())
	}
	encoded, err := expr.Encode(root)
	if err != nil {
		return internalError(c, "Failed to encode expression")
	}

	rec, err := s.store.UpdateFeedFilter(c.Request().Context(), feedID, nil, encoded)
	if err != nil {
		return s.storeFailure(c, err, "Failed to update expression", feedID)
	}
	expressionEdits.WithLabelValues("put", "ok").Inc()
	return success(c, newFeedView(rec))
}

// handlePutQuery stores a search query and rebuilds the expression from it.
func (s *Server) handlePutQuery(c echo.Context) error {
	feedID := strings.TrimSpace(c.Param("feed_id"))
	var req queryRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failField(c, "body", err.Error())
	}

	terms := query.Tokenize(req.Query)
	queriesTokenized.Inc()
	normalized := query.Serialize(terms)
	encoded, err := expr.Encode(expr.FromTerms(terms))
	if err != nil {
		return internalError(c, "Failed to encode expression")
	}

	rec, err := s.store.UpdateFeedFilter(c.Request().Context(), feedID, &normalized, encoded)
	if err != nil {
		return s.storeFailure(c, err, "Failed to update query", feedID)
	}
	expressionEdits.WithLabelValues("query", "ok").Inc()
	return success(c, map[string]any{
		"feed":  newFeedView(rec),
		"terms": nonNilTerms(terms),
	})
}

// handleAddPlaceholder appends an empty node to the container parent_id, or
// installs it as the root of a feed without an expression. The body may be
// empty.
func (s *Server) handleAddPlaceholder(c echo.Context) error {
	var req placeholderRequest
	if err := decodeJSONBody(c, &req); err != nil && !errors.Is(err, io.EOF) {
		return failField(c, "body", err.Error())
	}

	placeholder := expr.NewPlaceholder()
	parentID := strings.TrimSpace(req.ParentID)
	return s.editExpression(c, "placeholder", func(root *expr.Wrapper) (*expr.Wrapper, error) {
		if parentID == "" {
			if root != nil {
				return nil, errRootExists
			}
			return placeholder, nil
		}
		if err := expr.Append(root, parentID, placeholder); err != nil {
			return nil, err
		}
		return root, nil
	}, map[string]any{"placeholder_id": placeholder.ID})
}

// handleAttachNode sets the expression of an existing node. The body is a
// wrapper without an id, e.g. {"expr":{"pred":{...}}}; null empties the node.
func (s *Server) handleAttachNode(c echo.Context) error {
	nodeID := strings.TrimSpace(c.Param("node_id"))
	body, err := readRawBody(c)
	if err != nil {
		return failField(c, "body", err.Error())
	}
	incoming, err := payloadschema.ValidateExpressionPayload(body)
	if err != nil {
		expressionEdits.WithLabelValues("attach", "rejected").Inc()
		return failField(c, "expression", err.Error())
	}
	var node expr.Node
	if incoming != nil {
		node = incoming.Node
	}

	return s.editExpression(c, "attach", func(root *expr.Wrapper) (*expr.Wrapper, error) {
		if err := expr.Attach(root, nodeID, node); err != nil {
			return nil, err
		}
		return root, nil
	}, nil)
}

// handleReplaceNode swaps a node for the wrapper in the body. A wrapper sent
// without an id gets a fresh one.
func (s *Server) handleReplaceNode(c echo.Context) error {
	nodeID := strings.TrimSpace(c.Param("node_id"))
	body, err := readRawBody(c)
	if err != nil {
		return failField(c, "body", err.Error())
	}
	replacement, err := payloadschema.ValidateExpressionPayload(body)
	if err != nil {
		expressionEdits.WithLabelValues("replace", "rejected").Inc()
		return failField(c, "expression", err.Error())
	}
	if replacement == nil {
		return failField(c, "expression", "is required; use DELETE to remove a node")
	}
	if replacement.ID == "" {
		replacement.ID = expr.NewID()
	}

	return s.editExpression(c, "replace", func(root *expr.Wrapper) (*expr.Wrapper, error) {
		return expr.Replace(root, nodeID, replacement)
	}, map[string]any{"node_id": replacement.ID})
}

func (s *Server) handleRemoveNode(c echo.Context) error {
	nodeID := strings.TrimSpace(c.Param("node_id"))
	return s.editExpression(c, "remove", func(root *expr.Wrapper) (*expr.Wrapper, error) {
		return expr.Remove(root, nodeID)
	}, nil)
}

// editExpression runs apply against the feed's stored tree inside the
// store's locked read-modify-write and answers with the updated feed.
func (s *Server) editExpression(c echo.Context, op string, apply func(root *expr.Wrapper) (*expr.Wrapper, error), extra map[string]any) error {
	feedID := strings.TrimSpace(c.Param("feed_id"))
	if feedID == "" {
		return failField(c, "feed_id", "is required")
	}

	rec, err := s.store.EditFeedExpression(c.Request().Context(), feedID, func(current json.RawMessage) (json.RawMessage, error) {
		root, err := expr.Parse(current)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errStoredExpression, err)
		}
		next, err := apply(root)
		if err != nil {
			return nil, err
		}
		return expr.Encode(next)
	})
	if err != nil {
		return s.editFailure(c, op, feedID, err)
	}

	expressionEdits.WithLabelValues(op, "ok").Inc()
	data := map[string]any{"feed": newFeedView(rec)}
	for key, value := range extra {
		data[key] = value
	}
	return success(c, data)
}

func (s *Server) editFailure(c echo.Context, op, feedID string, err error) error {
	switch {
	case errors.Is(err, db.ErrNoRows):
		expressionEdits.WithLabelValues(op, "not_found").Inc()
		return failNotFound(c, "Feed not found")
	case errors.Is(err, expr.ErrNotFound):
		expressionEdits.WithLabelValues(op, "not_found").Inc()
		return failNotFound(c, "Expression node not found")
	case errors.Is(err, errRootExists),
		errors.Is(err, expr.ErrEmptyID),
		errors.Is(err, expr.ErrCycle),
		errors.Is(err, expr.ErrDuplicateID),
		errors.Is(err, expr.ErrNotContainer),
		errors.Is(err, expr.ErrMalformed):
		expressionEdits.WithLabelValues(op, "rejected").Inc()
		return failField(c, "expression", err.Error())
	default:
		expressionEdits.WithLabelValues(op, "error").Inc()
		s.logger.Error().Err(err).Str("feed_id", feedID).Str("op", op).Msg("expression edit failed")
		return internalError(c, "Failed to edit expression")
	}
}

// storeFailure answers a failed store call: 404 for a missing row, 500
// otherwise.
func (s *Server) storeFailure(c echo.Context, err error, message, feedID string) error {
	if errors.Is(err, db.ErrNoRows) {
		return failNotFound(c, "Feed not found")
	}
	s.logger.Error().Err(err).Str("feed_id", feedID).Msg(strings.ToLower(message))
	return internalError(c, message)
}
