package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse marks malformed scene text.
	ErrParse = errors.New("parse error")
	// ErrStructural marks scene text that parsed but cannot form a timeline.
	ErrStructural = errors.New("structural error")
	// ErrIO marks write, move and read failures.
	ErrIO = errors.New("io error")
	// ErrLockConflict marks a companion held by a live process.
	ErrLockConflict = errors.New("lock conflict")
	// ErrRelocationConflict marks a relocation whose destination already exists.
	ErrRelocationConflict = errors.New("relocation conflict")
	// ErrBusy marks an operation rejected because another one is in flight.
	ErrBusy        = errors.New("operation in progress")
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether an open failure can be retried through a backup
// or the lenient recovery parse. Parse and structural failures qualify; I/O
// failures do not.
func Recoverable(err error) bool {
	return errors.Is(err, ErrParse) || errors.Is(err, ErrStructural)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "session failure"
	}
	return strings.Join(parts, ": ")
}
