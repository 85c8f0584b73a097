package expr

import (
	"fmt"
	"slices"
)

// Walk visits root and its descendants depth-first, parents first. Returning
// false from fn stops the walk. A wrapper reachable twice is visited once.
func Walk(root *Wrapper, fn func(w *Wrapper) bool) {
	seen := make(map[*Wrapper]struct{})
	walk(root, seen, fn)
}

func walk(w *Wrapper, seen map[*Wrapper]struct{}, fn func(*Wrapper) bool) bool {
	if w == nil {
		return true
	}
	if _, ok := seen[w]; ok {
		return true
	}
	seen[w] = struct{}{}
	if !fn(w) {
		return false
	}
	for _, child := range children(w.Node) {
		if !walk(child, seen, fn) {
			return false
		}
	}
	return true
}

// Find returns the wrapper carrying id, or nil.
func Find(root *Wrapper, id string) *Wrapper {
	if id == "" {
		return nil
	}
	var found *Wrapper
	Walk(root, func(w *Wrapper) bool {
		if w.ID == id {
			found = w
			return false
		}
		return true
	})
	return found
}

// location is where a wrapper sits. It exists only for the duration of one
// edit and is never stored in the tree.
type location struct {
	target *Wrapper
	parent *Wrapper
	index  int
}

func locate(root *Wrapper, id string) (location, bool) {
	if root == nil {
		return location{}, false
	}
	if root.ID == id {
		return location{target: root, index: -1}, true
	}

	seen := map[*Wrapper]struct{}{root: {}}
	var search func(parent *Wrapper) (location, bool)
	search = func(parent *Wrapper) (location, bool) {
		for i, child := range children(parent.Node) {
			if child == nil {
				continue
			}
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			if child.ID == id {
				if _, isNot := parent.Node.(*Not); isNot {
					i = -1
				}
				return location{target: child, parent: parent, index: i}, true
			}
			if loc, ok := search(child); ok {
				return loc, true
			}
		}
		return location{}, false
	}
	return search(root)
}

// Attach sets the node of the wrapper carrying id, typically filling a
// placeholder. A nil node turns the wrapper back into a placeholder.
func Attach(root *Wrapper, id string, node Node) error {
	const op = "attach"
	if id == "" {
		return nodeError(op, id, ErrEmptyID)
	}
	loc, ok := locate(root, id)
	if !ok {
		return nodeError(op, id, ErrNotFound)
	}

	if node != nil && isNilNode(node) {
		return nodeError(op, id, fmt.Errorf("%w: nil %s node", ErrMalformed, node.Kind()))
	}

	existing := footprintOf(root, loc.target, true)
	if err := existing.admit(children(node)); err != nil {
		return nodeError(op, id, err)
	}

	loc.target.Node = node
	return nil
}

// Replace swaps the wrapper carrying id for replacement, which keeps its own
// id. The returned root is replacement itself when id names the root.
func Replace(root *Wrapper, id string, replacement *Wrapper) (*Wrapper, error) {
	const op = "replace"
	if id == "" {
		return root, nodeError(op, id, ErrEmptyID)
	}
	if replacement == nil {
		return root, nodeError(op, id, fmt.Errorf("%w: replacement is nil", ErrMalformed))
	}
	loc, ok := locate(root, id)
	if !ok {
		return root, nodeError(op, id, ErrNotFound)
	}

	existing := footprintOf(root, loc.target, false)
	if err := existing.admit([]*Wrapper{replacement}); err != nil {
		return root, nodeError(op, id, err)
	}

	if loc.parent == nil {
		return replacement, nil
	}
	switch n := loc.parent.Node.(type) {
	case *AllOf:
		n.Children[loc.index] = replacement
	case *AnyOf:
		n.Children[loc.index] = replacement
	case *Not:
		n.Child = replacement
	}
	return root, nil
}

// Remove deletes the wrapper carrying id from whatever holds it and returns
// the root. Removing the root yields nil, the empty filter.
//
// A Not cannot exist without its child, so removing that child turns the
// wrapper holding the Not into a placeholder. The placeholder keeps the
// wrapper's id so the editor can fill it again.
func Remove(root *Wrapper, id string) (*Wrapper, error) {
	const op = "remove"
	if id == "" {
		return root, nodeError(op, id, ErrEmptyID)
	}
	loc, ok := locate(root, id)
	if !ok {
		return root, nodeError(op, id, ErrNotFound)
	}
	if loc.parent == nil {
		return nil, nil
	}

	switch n := loc.parent.Node.(type) {
	case *AllOf:
		n.Children = slices.Delete(n.Children, loc.index, loc.index+1)
	case *AnyOf:
		n.Children = slices.Delete(n.Children, loc.index, loc.index+1)
	case *Not:
		loc.parent.Node = nil
	}
	return root, nil
}

// Append adds child to the container carrying parentID. AllOf and AnyOf
// append to their children; a Not accepts a child only while it has none.
func Append(root *Wrapper, parentID string, child *Wrapper) error {
	const op = "append"
	if parentID == "" {
		return nodeError(op, parentID, ErrEmptyID)
	}
	if child == nil {
		return nodeError(op, parentID, fmt.Errorf("%w: child is nil", ErrMalformed))
	}
	loc, ok := locate(root, parentID)
	if !ok {
		return nodeError(op, parentID, ErrNotFound)
	}

	existing := footprintOf(root, nil, true)
	if err := existing.admit([]*Wrapper{child}); err != nil {
		return nodeError(op, parentID, err)
	}
	if isNilNode(loc.target.Node) {
		return nodeError(op, parentID, ErrNotContainer)
	}

	switch n := loc.target.Node.(type) {
	case *AllOf:
		n.Children = append(n.Children, child)
	case *AnyOf:
		n.Children = append(n.Children, child)
	case *Not:
		if n.Child != nil {
			return nodeError(op, parentID, ErrNotContainer)
		}
		n.Child = child
	default:
		return nodeError(op, parentID, ErrNotContainer)
	}
	return nil
}

// footprint is the set of wrappers and ids that stay in a tree during an edit.
type footprint struct {
	wrappers map[*Wrapper]struct{}
	ids      map[string]struct{}
}

// footprintOf collects root's tree without the subtree at cut. With keepCut
// the cut wrapper itself stays and only its descendants are left out.
func footprintOf(root, cut *Wrapper, keepCut bool) footprint {
	fp := footprint{
		wrappers: make(map[*Wrapper]struct{}),
		ids:      make(map[string]struct{}),
	}
	var visit func(w *Wrapper)
	visit = func(w *Wrapper) {
		if w == nil {
			return
		}
		if _, ok := fp.wrappers[w]; ok {
			return
		}
		if w == cut && !keepCut {
			return
		}
		fp.wrappers[w] = struct{}{}
		if w.ID != "" {
			fp.ids[w.ID] = struct{}{}
		}
		if w == cut {
			return
		}
		for _, child := range children(w.Node) {
			visit(child)
		}
	}
	visit(root)
	return fp
}

// admit checks that the incoming subtrees can join the tree: none of their
// wrappers may already be in it or appear twice, and their ids must be new.
func (fp footprint) admit(incoming []*Wrapper) error {
	seen := make(map[*Wrapper]struct{})
	ids := make(map[string]struct{})

	var visit func(w *Wrapper) error
	visit = func(w *Wrapper) error {
		if w == nil {
			return nil
		}
		if _, ok := fp.wrappers[w]; ok {
			return ErrCycle
		}
		if _, ok := seen[w]; ok {
			return ErrCycle
		}
		seen[w] = struct{}{}

		if w.ID != "" {
			if _, ok := fp.ids[w.ID]; ok {
				return fmt.Errorf("%w: %q", ErrDuplicateID, w.ID)
			}
			if _, ok := ids[w.ID]; ok {
				return fmt.Errorf("%w: %q", ErrDuplicateID, w.ID)
			}
			ids[w.ID] = struct{}{}
		}
		if w.Node != nil && isNilNode(w.Node) {
			return fmt.Errorf("%w: nil %s node", ErrMalformed, w.Node.Kind())
		}
		for _, child := range children(w.Node) {
			if err := visit(child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, w := range incoming {
		if err := visit(w); err != nil {
			return err
		}
	}
	return nil
}
