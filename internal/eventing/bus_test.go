package eventing

import (
	"context"
	"errors"
	"testing"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var first, second []string
	bus.SubscribePrintStarted(func(_ context.Context, event PrintStarted) error {
		first = append(first, event.Filename)
		return nil
	})
	bus.SubscribePrintStarted(func(_ context.Context, event PrintStarted) error {
		second = append(second, event.Filename)
		return nil
	})

	if err := bus.PublishPrintStarted(context.Background(), PrintStarted{DeviceID: "p1", Filename: "part.gcode"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != 1 || first[0] != "part.gcode" {
		t.Fatalf("expected first handler to see part.gcode, got %v", first)
	}
	if len(second) != 1 || second[0] != "part.gcode" {
		t.Fatalf("expected second handler to see part.gcode, got %v", second)
	}
}

func TestBusPropagatesHandlerError(t *testing.T) {
	bus := NewBus()
	wantErr := errors.New("boom")

	bus.SubscribePrintCompleted(func(context.Context, PrintCompleted) error {
		return wantErr
	})

	var reached bool
	bus.SubscribePrintCompleted(func(context.Context, PrintCompleted) error {
		reached = true
		return nil
	})

	err := bus.PublishPrintCompleted(context.Background(), PrintCompleted{DeviceID: "p1"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected boom, got %v", err)
	}
	if reached {
		t.Fatal("expected publish to stop at the failing handler")
	}
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	if err := bus.PublishStateChanged(context.Background(), StateChanged{DeviceID: "p1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
