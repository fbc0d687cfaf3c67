package domain

import "fmt"

// ValidationError reports a precondition failure detected before any write:
// a missing foreign key or a uniqueness invariant that would be violated.
// Workflows returning it have produced no side effects.
type ValidationError struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s %q: %s", e.Entity, e.ID, e.Reason)
}

// ConflictError reports a constraint rejection raised by the store itself,
// typically when a pre-check raced a concurrent writer. It is propagated
// as-is; callers own any retry policy.
type ConflictError struct {
	Entity EntityType
	ID     string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %q conflicts with existing state", e.Entity, e.ID)
}

// AssetError reports a failed object-store operation. Whether it aborts the
// enclosing workflow depends on the step: uploads during create/add and
// removals during delete are best-effort, while an update's new-image upload
// is fatal.
type AssetError struct {
	Op  string // "upload" or "remove"
	Ref AssetRef
	Err error
}

func (e AssetError) Error() string {
	return fmt.Sprintf("asset %s %s: %v", e.Op, e.Ref, e.Err)
}

// Unwrap exposes the underlying store error for errors.Is/As.
func (e AssetError) Unwrap() error { return e.Err }
