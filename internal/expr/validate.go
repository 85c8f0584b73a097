package expr

import (
	"maps"
	"strings"
)

// IsValid reports whether the tree can be handed to the backend.
//
// Every AllOf and AnyOf needs at least one child with a node; placeholders
// among filled siblings are tolerated, but placeholders alone are not. A Not
// needs a filled child, the root must not be a placeholder, and predicates
// must be of a known type with their required parameters. A nil tree is not
// valid.
func IsValid(root *Wrapper) bool {
	return valid(root, make(map[*Wrapper]struct{}))
}

func valid(w *Wrapper, seen map[*Wrapper]struct{}) bool {
	if w == nil || isNilNode(w.Node) {
		return false
	}
	if _, ok := seen[w]; ok {
		return false
	}
	seen[w] = struct{}{}

	switch n := w.Node.(type) {
	case *AllOf:
		return validGroup(n.Children, seen)
	case *AnyOf:
		return validGroup(n.Children, seen)
	case *Not:
		return valid(n.Child, seen)
	case *Predicate:
		return validPredicate(n)
	default:
		return false
	}
}

func validGroup(group []*Wrapper, seen map[*Wrapper]struct{}) bool {
	filled := 0
	for _, child := range group {
		if child == nil {
			return false
		}
		if child.Node == nil {
			continue
		}
		if !valid(child, seen) {
			return false
		}
		filled++
	}
	return filled > 0
}

func validPredicate(p *Predicate) bool {
	switch p.Type {
	case PredicateLiteral:
		return strings.TrimSpace(p.Param[ParamText]) != ""
	default:
		return false
	}
}

// Clone returns a deep copy of the tree, ids included.
func Clone(w *Wrapper) *Wrapper {
	if w == nil {
		return nil
	}
	return &Wrapper{ID: w.ID, Node: cloneNode(w.Node)}
}

func cloneNode(node Node) Node {
	if isNilNode(node) {
		return nil
	}
	switch n := node.(type) {
	case *AllOf:
		return &AllOf{Children: cloneAll(n.Children)}
	case *AnyOf:
		return &AnyOf{Children: cloneAll(n.Children)}
	case *Not:
		return &Not{Child: Clone(n.Child)}
	case *Predicate:
		return &Predicate{Type: n.Type, Param: maps.Clone(n.Param)}
	default:
		return nil
	}
}

func cloneAll(group []*Wrapper) []*Wrapper {
	out := make([]*Wrapper, len(group))
	for i, child := range group {
		out[i] = Clone(child)
	}
	return out
}

// Equal reports whether two trees have the same shape, ids and predicates.
func Equal(a, b *Wrapper) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID {
		return false
	}
	return equalNode(a.Node, b.Node)
}

func equalNode(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch left := a.(type) {
	case *AllOf:
		return equalGroup(left.Children, b.(*AllOf).Children)
	case *AnyOf:
		return equalGroup(left.Children, b.(*AnyOf).Children)
	case *Not:
		return Equal(left.Child, b.(*Not).Child)
	case *Predicate:
		right := b.(*Predicate)
		return left.Type == right.Type && maps.Equal(left.Param, right.Param)
	default:
		return false
	}
}

func equalGroup(a, b []*Wrapper) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
