package confdiff

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompatibleShape reports that current and desired disagree on the
	// root kind (tree vs sequence), or that a root is a scalar.
	ErrIncompatibleShape = errors.New("confdiff: incompatible shape")
	// ErrDuplicateIdentity reports sibling records sharing one identity when
	// strict identity checking is enabled.
	ErrDuplicateIdentity = errors.New("confdiff: duplicate identity")
)

// ShapeError captures the operation and kinds involved in a shape mismatch.
type ShapeError struct {
	Op      string
	Path    string
	Current Kind
	Desired Kind
}

func (e *ShapeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("confdiff: %s %s: incompatible shape current=%s desired=%s",
		describeOp(e.Op), describePath(e.Path), e.Current, e.Desired)
}

// Is matches ErrIncompatibleShape.
func (e *ShapeError) Is(target error) bool {
	return target == ErrIncompatibleShape
}

// DuplicateIdentityError names the record list and identity that collided.
type DuplicateIdentityError struct {
	Op        string
	Path      string
	Key       IdentityKey
	Positions []int
}

func (e *DuplicateIdentityError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("confdiff: %s %s: duplicate identity %s at positions %v",
		describeOp(e.Op), describePath(e.Path), e.Key, e.Positions)
}

// Is matches ErrDuplicateIdentity.
func (e *DuplicateIdentityError) Is(target error) bool {
	return target == ErrDuplicateIdentity
}

func describeOp(op string) string {
	if op == "" {
		return "op=<unknown>"
	}
	return "op=" + op
}

func describePath(path string) string {
	if path == "" {
		return "path=<root>"
	}
	return fmt.Sprintf("path=%q", path)
}

// withOp fills the operation name on engine errors that lack one. Other
// errors are wrapped with the operation prefix.
func withOp(op string, side string, err error) error {
	if err == nil {
		return nil
	}
	var shapeErr *ShapeError
	if errors.As(err, &shapeErr) {
		if shapeErr.Op == "" {
			shapeErr.Op = op
		}
		return shapeErr
	}
	var dupErr *DuplicateIdentityError
	if errors.As(err, &dupErr) {
		if dupErr.Op == "" {
			dupErr.Op = op
		}
		if side != "" && dupErr.Path == "" {
			dupErr.Path = side
		} else if side != "" {
			dupErr.Path = side + ":" + dupErr.Path
		}
		return dupErr
	}
	return fmt.Errorf("confdiff: %s: %w", op, err)
}
