package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no wrapper in the tree carries the requested id. It
	// usually points at an editor that is out of sync with the stored tree.
	ErrNotFound = errors.New("expression node not found")

	ErrEmptyID      = errors.New("expression id is empty")
	ErrCycle        = errors.New("expression subtree is shared or cyclic")
	ErrDuplicateID  = errors.New("expression id already in use")
	ErrNotContainer = errors.New("expression node cannot hold another child")
	ErrMalformed    = errors.New("malformed expression")
)

// NodeError records a failed id-addressed edit.
type NodeError struct {
	Op  string
	ID  string
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("expr %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func nodeError(op, id string, err error) error {
	return &NodeError{Op: op, ID: id, Err: err}
}
