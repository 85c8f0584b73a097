// Package expr models the logical data expression a feed sends to the backend
// for filtering. The tree is built and edited here but never evaluated.
//
// Every Wrapper may carry an id that is unique within its tree. Edits locate
// their target by id alone, so callers never need a parent reference.
package expr

import "github.com/google/uuid"

// Kind identifies which variant a Node is.
type Kind string

const (
	KindAllOf     Kind = "allOf"
	KindAnyOf     Kind = "anyOf"
	KindNot       Kind = "notTrue"
	KindPredicate Kind = "pred"
)

// PredicateType names a leaf test understood by the backend.
type PredicateType string

const (
	// PredicateLiteral matches items whose text contains Param["text"].
	PredicateLiteral PredicateType = "LITERAL"
)

// Parameter names used by predicates.
const (
	ParamText  = "text"
	ParamField = "field"
)

// Wrapper is the identity-bearing handle around a Node. A Wrapper whose Node
// is nil is a placeholder waiting for the user to fill it in.
type Wrapper struct {
	ID   string
	Node Node
}

// Node is one of *AllOf, *AnyOf, *Not or *Predicate.
type Node interface {
	Kind() Kind
	isNode()
}

// AllOf holds when every child holds.
type AllOf struct {
	Children []*Wrapper
}

// AnyOf holds when at least one child holds.
type AnyOf struct {
	Children []*Wrapper
}

// Not holds when its child does not.
type Not struct {
	Child *Wrapper
}

// Predicate is a leaf test.
type Predicate struct {
	Type  PredicateType
	Param map[string]string
}

func (*AllOf) Kind() Kind     { return KindAllOf }
func (*AnyOf) Kind() Kind     { return KindAnyOf }
func (*Not) Kind() Kind       { return KindNot }
func (*Predicate) Kind() Kind { return KindPredicate }

func (*AllOf) isNode()     {}
func (*AnyOf) isNode()     {}
func (*Not) isNode()       {}
func (*Predicate) isNode() {}

// NewID returns a fresh wrapper id.
func NewID() string {
	return uuid.NewString()
}

// NewPlaceholder returns an empty wrapper with a fresh id.
func NewPlaceholder() *Wrapper {
	return &Wrapper{ID: NewID()}
}

// Wrap returns a wrapper with a fresh id around node.
func Wrap(node Node) *Wrapper {
	return &Wrapper{ID: NewID(), Node: node}
}

// Literal returns a literal text predicate.
func Literal(text string) *Predicate {
	return &Predicate{
		Type:  PredicateLiteral,
		Param: map[string]string{ParamText: text},
	}
}

// IsPlaceholder reports whether w has no node attached.
func (w *Wrapper) IsPlaceholder() bool {
	return w != nil && w.Node == nil
}

// children returns the child wrappers of a node, in order. A Not whose child
// is missing has none, and neither does a nil node pointer.
func children(node Node) []*Wrapper {
	if isNilNode(node) {
		return nil
	}
	switch n := node.(type) {
	case *AllOf:
		return n.Children
	case *AnyOf:
		return n.Children
	case *Not:
		if n.Child == nil {
			return nil
		}
		return []*Wrapper{n.Child}
	default:
		return nil
	}
}

// isNilNode reports whether node is nil or a nil pointer of one of the node
// types.
func isNilNode(node Node) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *AllOf:
		return n == nil
	case *AnyOf:
		return n == nil
	case *Not:
		return n == nil
	case *Predicate:
		return n == nil
	default:
		return false
	}
}
