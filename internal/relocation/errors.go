package relocation

import "splice/internal/services"

// ConflictError reports a relocation whose destination already exists.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return "relocation: target directory already exists: " + e.Path
}

func (e *ConflictError) Unwrap() error {
	return services.ErrRelocationConflict
}
