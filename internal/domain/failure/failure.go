// Package failure defines the error taxonomy shared by the domain services.
// Handlers translate these kinds into transport status codes in one place.
package failure

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrSignature is returned when a webhook payload fails signature
// verification. Such events are rejected and never reconciled.
var ErrSignature = errors.New("invalid webhook signature")

// ValidationError reports user-correctable input problems.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid is shorthand for constructing a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError indicates the referenced entity does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// NotFound is shorthand for constructing a *NotFoundError.
func NotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// ConflictError indicates the request contradicts existing state.
type ConflictError struct {
	Entity string
	Key    string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Entity, e.Key, e.Reason)
}

// UpstreamError wraps a failure of an external collaborator such as the
// payment provider.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an *UpstreamError for operation op.
func Upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is (or wraps) a *NotFoundError.
func IsNotFound(err error) bool {
	var v *NotFoundError
	return errors.As(err, &v)
}

// IsConflict reports whether err is (or wraps) a *ConflictError.
func IsConflict(err error) bool {
	var v *ConflictError
	return errors.As(err, &v)
}

// IsUpstream reports whether err is (or wraps) an *UpstreamError.
func IsUpstream(err error) bool {
	var v *UpstreamError
	return errors.As(err, &v)
}
