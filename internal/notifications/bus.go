package notifications

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"splice/internal/logging"
)

// Handler receives events published on a Bus.
type Handler func(Event, Payload)

// Bus fans session events out to in-process subscribers and forwards the
// remote-worthy ones to a Service. Handlers run synchronously on the
// publisher's goroutine and must not call back into the session controller.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	remote   Service
	logger   *slog.Logger
}

// NewBus constructs a bus. remote may be nil.
func NewBus(remote Service, logger *slog.Logger) *Bus {
	if remote == nil {
		remote = noopService{}
	}
	return &Bus{
		handlers: make(map[int]Handler),
		remote:   remote,
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers the event to every subscriber, then to the remote service.
// Remote delivery failures are logged, never returned.
func (b *Bus) Publish(ctx context.Context, event Event, payload Payload) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event, payload)
	}

	if err := b.remote.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(b.logger, "remote notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			logging.String(logging.FieldImpact, "push notification not delivered"),
		)
	}
}
