package notifications_test

import (
	"context"
	"errors"
	"testing"

	"splice/internal/logging"
	"splice/internal/notifications"
)

type recordingService struct {
	events []notifications.Event
	err    error
}

func (r *recordingService) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return r.err
}

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	remote := &recordingService{}
	bus := notifications.NewBus(remote, logging.NewNop())

	var order []string
	bus.Subscribe(func(e notifications.Event, p notifications.Payload) { order = append(order, "a:"+string(e)) })
	cancel := bus.Subscribe(func(e notifications.Event, p notifications.Payload) { order = append(order, "b:"+string(e)) })

	bus.Publish(context.Background(), notifications.EventDocumentOpened, notifications.Payload{"path": "/x"})
	cancel()
	bus.Publish(context.Background(), notifications.EventLoadProgress, notifications.Payload{"current": 1, "total": 2})

	want := []string{"a:document_opened", "b:document_opened", "a:load_progress"}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
	if len(remote.events) != 2 {
		t.Fatalf("expected every event forwarded to remote filter, got %v", remote.events)
	}
}

func TestBusSwallowsRemoteErrors(t *testing.T) {
	remote := &recordingService{err: errors.New("offline")}
	bus := notifications.NewBus(remote, nil)
	delivered := false
	bus.Subscribe(func(notifications.Event, notifications.Payload) { delivered = true })
	bus.Publish(context.Background(), notifications.EventCorruptionWarning, nil)
	if !delivered {
		t.Fatal("expected local delivery despite remote failure")
	}
}

func TestPayloadAccessors(t *testing.T) {
	p := notifications.Payload{"s": "v", "i": 3, "f": float64(4), "bad": true}
	if p.String("s") != "v" || p.String("i") != "" {
		t.Fatalf("unexpected string access")
	}
	if p.Int("i") != 3 || p.Int("f") != 4 || p.Int("bad") != 0 {
		t.Fatalf("unexpected int access")
	}
	var nilPayload notifications.Payload
	if nilPayload.String("x") != "" || nilPayload.Int("x") != 0 {
		t.Fatal("nil payload should return zero values")
	}
}
