package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/feedsift/internal/expr"
)

//go:embed feed_item.schema.json
var feedItemSchemaJSON string

//go:embed filter_expression.schema.json
var filterExpressionSchemaJSON string

const (
	feedItemSchemaName         = "feed_item.schema.json"
	filterExpressionSchemaName = "filter_expression.schema.json"
)

// FeedItem is an inbound item for a feed. At least one of Title, BodyText,
// HTML or URL carries its content.
type FeedItem struct {
	PayloadVersion string   `json:"payload_version"`
	ExternalID     string   `json:"external_id"`
	Title          string   `json:"title,omitempty"`
	BodyText       *string  `json:"body_text,omitempty"`
	HTML           *string  `json:"html,omitempty"`
	URL            *string  `json:"url,omitempty"`
	PostTime       *string  `json:"post_time,omitempty"`
	SemanticHash   *string  `json:"semantic_hash,omitempty"`
	Language       *string  `json:"language,omitempty"`
	Author         *string  `json:"author,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// PostedAt returns the parsed post time, or the zero time when absent.
func (it *FeedItem) PostedAt() time.Time {
	if it == nil || it.PostTime == nil {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*it.PostTime))
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

type compiled struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

var (
	feedItemSchema         compiled
	filterExpressionSchema compiled
)

func ValidateFeedItemPayload(payload json.RawMessage) (*FeedItem, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := feedItemSchema.load(feedItemSchemaName, feedItemSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var item FeedItem
	if err := json.Unmarshal(normalized, &item); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateItemSemantics(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ValidateExpressionPayload checks a filter expression against the wire
// schema and decodes it. A null payload is the empty filter and yields nil.
func ValidateExpressionPayload(payload json.RawMessage) (*expr.Wrapper, error) {
	trimmed := bytes.TrimSpace(payload)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	value, err := decodeStrictJSON(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode expression JSON: %w", err)
	}

	schema, err := filterExpressionSchema.load(filterExpressionSchemaName, filterExpressionSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	root, err := expr.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode expression: %w", err)
	}
	if err := validateUniqueIDs(root); err != nil {
		return nil, err
	}
	return root, nil
}

func (c *compiled) load(name, source string) (*jsonschema.Schema, error) {
	c.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
			c.err = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile(name)
		if err != nil {
			c.err = fmt.Errorf("compile schema: %w", err)
			return
		}

		c.schema = schema
	})

	if c.err != nil {
		return nil, c.err
	}
	if c.schema == nil {
		return nil, fmt.Errorf("schema %s not initialized", name)
	}
	return c.schema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateUniqueIDs(root *expr.Wrapper) error {
	seen := make(map[string]struct{})
	var dup string
	expr.Walk(root, func(w *expr.Wrapper) bool {
		if w.ID == "" {
			return true
		}
		if _, ok := seen[w.ID]; ok {
			dup = w.ID
			return false
		}
		seen[w.ID] = struct{}{}
		return true
	})
	if dup != "" {
		return fmt.Errorf("%w: %q", expr.ErrDuplicateID, dup)
	}
	return nil
}

func validateItemSemantics(item *FeedItem) error {
	if item == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(item.ExternalID) == "" {
		return fmt.Errorf("external_id must not be empty")
	}
	if strings.TrimSpace(item.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(item.Title) == "" && blank(item.BodyText) && blank(item.HTML) && blank(item.URL) {
		return fmt.Errorf("one of title, body_text, html or url is required")
	}

	if item.URL != nil {
		if err := validateURI("url", *item.URL); err != nil {
			return err
		}
	}
	if item.PostTime != nil {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(*item.PostTime)); err != nil {
			return fmt.Errorf("post_time must be RFC3339: %w", err)
		}
	}
	if item.SemanticHash != nil && strings.TrimSpace(*item.SemanticHash) == "" {
		return fmt.Errorf("semantic_hash must not be blank")
	}

	for i, tag := range item.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("tags[%d] must not be empty", i)
		}
	}

	return nil
}

func blank(value *string) bool {
	return value == nil || strings.TrimSpace(*value) == ""
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
