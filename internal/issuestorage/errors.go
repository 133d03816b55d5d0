package issuestorage

import "errors"

// Sentinel errors returned by Store implementations. Callers test them
// with errors.Is; implementations wrap them with context.
var (
	ErrNotFound            = errors.New("issue not found")
	ErrAlreadyExists       = errors.New("issue already exists")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrCycle               = errors.New("operation would create a cycle")
	ErrSelfDependency      = errors.New("issue cannot depend on itself")
	ErrDuplicateDependency = errors.New("dependency already exists")
)
