package scene

import (
	"fmt"

	"splice/internal/services"
)

// ParseError reports malformed scene text. It matches services.ErrParse.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	msg := "scene: " + e.Msg
	if e.Line > 0 {
		msg = fmt.Sprintf("scene: line %d: %s", e.Line, e.Msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrParse}
	}
	return []error{services.ErrParse, e.Err}
}

// Warning describes something Parse tolerated or repaired.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return w.Message
}
