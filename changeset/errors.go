package changeset

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvariantViolationError reports a case where the DOM and the model have
// diverged beyond reconciliation. Recovery is the caller's
// responsibility: re-render from the model and surface via onError.
type InvariantViolationError struct {
	Detail string
	cause  error
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}

func (e *InvariantViolationError) Unwrap() error { return e.cause }

// NewInvariantViolation builds an InvariantViolationError, wrapping cause
// (which may be nil) with a stack trace via pkg/errors so onError handlers
// and logs carry one.
func NewInvariantViolation(detail string, cause error) error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &InvariantViolationError{Detail: detail, cause: cause}
}

// UnknownBlockTypeError reports a paste/deserialization reference to an
// unregistered block type name; the caller drops the element.
type UnknownBlockTypeError struct {
	TypeName string
}

func (e *UnknownBlockTypeError) Error() string {
	return fmt.Sprintf("unknown block type %q", e.TypeName)
}

// ReentrantApplyError reports a Changeset.Apply call made while another
// apply is already in progress on the same State.
type ReentrantApplyError struct{}

func (e *ReentrantApplyError) Error() string {
	return "changeset apply rejected: a changeset is already applying on this state"
}

// IsReentrantApply reports whether err is (or wraps) a ReentrantApplyError.
func IsReentrantApply(err error) bool {
	var target *ReentrantApplyError
	return errors.As(err, &target)
}

// IsUnknownBlockType reports whether err is (or wraps) an
// UnknownBlockTypeError.
func IsUnknownBlockType(err error) bool {
	var target *UnknownBlockTypeError
	return errors.As(err, &target)
}

// IsInvariantViolation reports whether err is (or wraps) an
// InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var target *InvariantViolationError
	return errors.As(err, &target)
}
