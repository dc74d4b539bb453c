package timeline

import (
	"fmt"

	"splice/internal/services"
)

// StructuralError reports a graph that parsed but cannot form a timeline.
type StructuralError struct {
	Reason string
	// Element is the id of the offending element, if any.
	Element string
}

func (e *StructuralError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("timeline: %s: %s", e.Element, e.Reason)
	}
	return "timeline: " + e.Reason
}

func (e *StructuralError) Unwrap() error {
	return services.ErrStructural
}
