package notifications

// Event names a session lifecycle notification.
type Event string

const (
	EventDocumentOpened     Event = "document_opened"
	EventDocumentWillClose  Event = "document_will_close"
	EventLoadProgress       Event = "load_progress"
	EventCorruptionWarning  Event = "corruption_warning"
	EventAdvisory           Event = "advisory"
	EventRelocationProgress Event = "relocation_progress"
	EventRelocationFinished Event = "relocation_finished"
	EventExternalChange     Event = "external_change"
	EventTest               Event = "test"
)

// Payload carries event fields. Keys are documented next to the publisher.
type Payload map[string]any

// String returns the payload value for key as a string, or "".
func (p Payload) String(key string) string {
	if p == nil {
		return ""
	}
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the payload value for key as an int, or 0.
func (p Payload) Int(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
