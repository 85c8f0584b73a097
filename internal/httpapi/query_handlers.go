package httpapi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/feedsift/internal/dedup"
	"horse.fit/feedsift/internal/expr"
	"horse.fit/feedsift/internal/query"
	payloadschema "horse.fit/feedsift/schema"
)

type queryRequest struct {
	Query string `json:"query"`
}

type serializeRequest struct {
	Terms []query.Term `json:"terms"`
}

type expressionRequest struct {
	Expression json.RawMessage `json:"expression"`
}

type compareItem struct {
	ID           string     `json:"id"`
	PostTime     *time.Time `json:"post_time"`
	SemanticHash string     `json:"semantic_hash"`
}

func (it compareItem) hashed() dedup.HashedItem {
	out := dedup.HashedItem{ID: it.ID, SemanticHash: it.SemanticHash}
	if it.PostTime != nil {
		out.PostTime = it.PostTime.UTC()
	}
	return out
}

type compareRequest struct {
	Left  compareItem `json:"left"`
	Right compareItem `json:"right"`
}

func (s *Server) handleTokenize(c echo.Context) error {
	var req queryRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failField(c, "body", err.Error())
	}

	terms := query.Tokenize(req.Query)
	queriesTokenized.Inc()
	return success(c, map[string]any{
		"terms": nonNilTerms(terms),
	})
}

func (s *Server) handleSerialize(c echo.Context) error {
	var req serializeRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failField(c, "body", err.Error())
	}

	return success(c, map[string]any{
		"query": query.Serialize(req.Terms),
	})
}

// handleQueryExpression previews the expression a feed would get for a query
// without storing anything.
func (s *Server) handleQueryExpression(c echo.Context) error {
	var req queryRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failField(c, "body", err.Error())
	}

	terms := query.Tokenize(req.Query)
	queriesTokenized.Inc()
	root := expr.FromTerms(terms)
	return success(c, map[string]any{
		"terms":      nonNilTerms(terms),
		"query":      query.Serialize(terms),
		"expression": root,
		"valid":      expr.IsValid(root),
	})
}

func (s *Server) handleValidateExpression(c echo.Context) error {
	var req expressionRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failField(c, "body", err.Error())
	}

	root, err := payloadschema.ValidateExpressionPayload(req.Expression)
	if err != nil {
		return failField(c, "expression", err.Error())
	}

	placeholders := 0
	expr.Walk(root, func(w *expr.Wrapper) bool {
		if w.IsPlaceholder() {
			placeholders++
		}
		return true
	})

	return success(c, map[string]any{
		"valid":        expr.IsValid(root),
		"placeholders": placeholders,
	})
}

func (s *Server) handleCompare(c echo.Context) error {
	var req compareRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failField(c, "body", err.Error())
	}
	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.Left.SemanticHash) == "" {
		fieldErrors["left.semantic_hash"] = "is required"
	}
	if strings.TrimSpace(req.Right.SemanticHash) == "" {
		fieldErrors["right.semantic_hash"] = "is required"
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	result := s.classifier.Explain(req.Left.hashed(), req.Right.hashed())
	dedupComparisons.WithLabelValues(strconv.FormatBool(result.Duplicate)).Inc()
	return success(c, map[string]any{
		"result":                        result,
		"similarity_threshold":          s.classifier.MaxDistance,
		"similarity_window_millisecond": s.classifier.Window.Milliseconds(),
	})
}

func nonNilTerms(terms []query.Term) []query.Term {
	if terms == nil {
		return []query.Term{}
	}
	return terms
}
