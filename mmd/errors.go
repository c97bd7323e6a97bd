package mmd

import (
	"errors"
	"fmt"
)

var (
	// Indicates an index that points outside its target array.
	ErrIndexOutOfRange = errors.New("index out of range")
	// Indicates an IK chain that reaches the root before its configured
	// length.
	ErrChainLength = errors.New("ik chain length mismatch")
	// Indicates a name that does not resolve to any entity.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// Indicates a bone whose parent does not precede it.
	ErrInvalidHierarchy = errors.New("invalid bone hierarchy")
	// Indicates a malformed pose file.
	ErrInvalidPose = errors.New("invalid pose data")
	// Indicates a file that is not a model of the expected format.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// IndexError is an ErrIndexOutOfRange with context.
type IndexError struct {
	Kind  string
	Index int
	Len   int
}

func (err IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", err.Kind, err.Index, err.Len)
}

func (err IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

// ChainError is an ErrChainLength with context.
type ChainError struct {
	IK   string
	Want int
	Got  int
}

func (err ChainError) Error() string {
	return fmt.Sprintf("ik %q: chain reached root after %d of %d links", err.IK, err.Got, err.Want)
}

func (err ChainError) Unwrap() error {
	return ErrChainLength
}

// ReferenceError is an ErrUnresolvedReference with context.
type ReferenceError struct {
	Kind string
	Name string
}

func (err ReferenceError) Error() string {
	return fmt.Sprintf("unresolved %s %q", err.Kind, err.Name)
}

func (err ReferenceError) Unwrap() error {
	return ErrUnresolvedReference
}

// HierarchyError is an ErrInvalidHierarchy with context.
type HierarchyError struct {
	Bone   string
	Index  int
	Parent int
}

func (err HierarchyError) Error() string {
	return fmt.Sprintf("bone %q (%d) has parent %d", err.Bone, err.Index, err.Parent)
}

func (err HierarchyError) Unwrap() error {
	return ErrInvalidHierarchy
}

// WriteError wraps a failure of the output sink.
type WriteError struct {
	Section string
	Offset  int64
	Cause   error
}

func (err WriteError) Error() string {
	return fmt.Sprintf("writing %s at offset %d: %s", err.Section, err.Offset, err.Cause)
}

func (err WriteError) Unwrap() error {
	return err.Cause
}

// PoseError is an ErrInvalidPose with the offending line (1-based, 0 at end
// of input).
type PoseError struct {
	Line   int
	Reason string
}

func (err PoseError) Error() string {
	if err.Line == 0 {
		return "vpd: " + err.Reason
	}
	return fmt.Sprintf("vpd: line %d: %s", err.Line, err.Reason)
}

func (err PoseError) Unwrap() error {
	return ErrInvalidPose
}

// LimitError is an ErrIndexOutOfRange raised when a count does not fit the
// field the format stores it in.
type LimitError struct {
	Format Format
	Kind   string
	Count  int
	Max    int
}

func (err LimitError) Error() string {
	return fmt.Sprintf("%s: %d %s exceed the limit of %d", err.Format, err.Count, err.Kind, err.Max)
}

func (err LimitError) Unwrap() error {
	return ErrIndexOutOfRange
}
