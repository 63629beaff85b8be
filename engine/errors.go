package engine

import "github.com/jmgilman/go/errors"

// Sentinel failures. Errors returned by the engine wrap exactly one of these,
// so callers match with errors.Is and read the code with errors.GetCode.
var (
	ErrNotFound  = errors.New(errors.CodeNotFound, "record not found")
	ErrConflict  = errors.New(errors.CodeConflict, "record already exists")
	ErrIOFailure = errors.New(errors.CodeInternal, "storage failure")
	ErrTooLarge  = errors.New(errors.CodeInvalidInput, "payload too large")
)
