package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// InvalidRangeError rejects a malformed interval.
type InvalidRangeError struct {
	Reason string
}

func (e InvalidRangeError) Error() string {
	if e.Reason == "" {
		return "invalid time range"
	}
	return fmt.Sprintf("invalid time range: %s", e.Reason)
}

func (e InvalidRangeError) Is(target error) bool {
	_, ok := target.(InvalidRangeError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidRangeError)
	return ok
}

// ConflictError means the requested slot overlaps an existing claim.
type ConflictError struct {
	Range Range
}

func (e ConflictError) Error() string {
	return "this time block is already claimed or overlaps with another"
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// TargetNotFoundError means a transfer target could not be resolved to an identity.
type TargetNotFoundError struct {
	Identifier string
}

func (e TargetNotFoundError) Error() string {
	return "target user not found"
}

func (e TargetNotFoundError) Is(target error) bool {
	_, ok := target.(TargetNotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*TargetNotFoundError)
	return ok
}

// StoreError wraps a persistence failure. It is never retried by the service.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store %s failed", e.Op)
	}
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error {
	return e.Err
}

func (e StoreError) Is(target error) bool {
	_, ok := target.(StoreError)
	if ok {
		return true
	}
	_, ok = target.(*StoreError)
	return ok
}

// Sentinels for errors.Is matching.
var (
	ErrNotFound       = NotFoundError{}
	ErrInvalidRange   = InvalidRangeError{}
	ErrConflict       = ConflictError{}
	ErrTargetNotFound = TargetNotFoundError{}
	ErrStore          = StoreError{}
)
