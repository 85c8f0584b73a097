package expr

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire format, one object per wrapper:
//
//	{"id": "...", "expr": {"allOf": [wrapper, ...]}}
//	{"id": "...", "expr": {"anyOf": [wrapper, ...]}}
//	{"id": "...", "expr": {"notTrue": wrapper}}
//	{"id": "...", "expr": {"pred": {"type": "LITERAL", "param": {"text": "..."}}}}
//
// A placeholder has no "expr" member; a placeholder without id is {}.

type wirePredicate struct {
	Type  PredicateType     `json:"type"`
	Param map[string]string `json:"param,omitempty"`
}

// MarshalJSON encodes the wrapper in the backend wire format.
func (w Wrapper) MarshalJSON() ([]byte, error) {
	out := struct {
		ID   string          `json:"id,omitempty"`
		Expr json.RawMessage `json:"expr,omitempty"`
	}{ID: w.ID}

	if w.Node != nil {
		body, err := marshalNode(w.Node)
		if err != nil {
			return nil, err
		}
		out.Expr = body
	}
	return json.Marshal(out)
}

func marshalNode(node Node) ([]byte, error) {
	switch n := node.(type) {
	case *AllOf:
		return json.Marshal(map[string][]*Wrapper{string(KindAllOf): nonNil(n.Children)})
	case *AnyOf:
		return json.Marshal(map[string][]*Wrapper{string(KindAnyOf): nonNil(n.Children)})
	case *Not:
		return json.Marshal(map[string]*Wrapper{string(KindNot): n.Child})
	case *Predicate:
		return json.Marshal(map[string]wirePredicate{
			string(KindPredicate): {Type: n.Type, Param: n.Param},
		})
	default:
		return nil, fmt.Errorf("%w: unsupported node %T", ErrMalformed, node)
	}
}

func nonNil(group []*Wrapper) []*Wrapper {
	if group == nil {
		return []*Wrapper{}
	}
	return group
}

// UnmarshalJSON decodes the backend wire format. An expression object must
// hold exactly one of allOf, anyOf, notTrue or pred.
func (w *Wrapper) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   string          `json:"id"`
		Expr json.RawMessage `json:"expr"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	w.ID = raw.ID
	w.Node = nil
	if isNullJSON(raw.Expr) {
		return nil
	}

	node, err := unmarshalNode(raw.Expr)
	if err != nil {
		return err
	}
	w.Node = node
	return nil
}

func unmarshalNode(data []byte) (Node, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(fields) != 1 {
		return nil, fmt.Errorf("%w: expression needs exactly one of allOf, anyOf, notTrue, pred; got %d members", ErrMalformed, len(fields))
	}

	for key, value := range fields {
		switch Kind(key) {
		case KindAllOf:
			group, err := unmarshalGroup(key, value)
			if err != nil {
				return nil, err
			}
			return &AllOf{Children: group}, nil
		case KindAnyOf:
			group, err := unmarshalGroup(key, value)
			if err != nil {
				return nil, err
			}
			return &AnyOf{Children: group}, nil
		case KindNot:
			if isNullJSON(value) {
				return &Not{}, nil
			}
			var child Wrapper
			if err := json.Unmarshal(value, &child); err != nil {
				return nil, err
			}
			return &Not{Child: &child}, nil
		case KindPredicate:
			var pred wirePredicate
			if err := json.Unmarshal(value, &pred); err != nil {
				return nil, fmt.Errorf("%w: pred: %v", ErrMalformed, err)
			}
			if pred.Type == "" {
				return nil, fmt.Errorf("%w: pred.type is required", ErrMalformed)
			}
			return &Predicate{Type: pred.Type, Param: pred.Param}, nil
		default:
			return nil, fmt.Errorf("%w: unknown expression member %q", ErrMalformed, key)
		}
	}
	return nil, ErrMalformed
}

func unmarshalGroup(key string, value json.RawMessage) ([]*Wrapper, error) {
	if isNullJSON(value) {
		return []*Wrapper{}, nil
	}
	var group []*Wrapper
	if err := json.Unmarshal(value, &group); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return group, nil
}

func isNullJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Parse decodes a wire-format tree. An empty or null payload is the empty
// filter and yields nil.
func Parse(data []byte) (*Wrapper, error) {
	if isNullJSON(data) {
		return nil, nil
	}
	var root Wrapper
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// Encode renders a tree in wire format. The empty filter encodes as nil.
func Encode(root *Wrapper) (json.RawMessage, error) {
	if root == nil {
		return nil, nil
	}
	return json.Marshal(root)
}
