package notify

import (
	"context"
	"sync"

	"github.com/maziggy/bambusy/internal/eventing"
)

// Bind subscribes the notifier to the state, lifecycle and archive
// events on the bus. State deltas arrive with every telemetry message;
// only job state transitions are forwarded.
func Bind(bus *eventing.Bus, notifier Notifier) {
	if bus == nil || notifier == nil {
		return
	}

	var mu sync.Mutex
	lastJobState := make(map[string]string)

	bus.SubscribeStateChanged(func(ctx context.Context, event eventing.StateChanged) error {
		mu.Lock()
		previous, seen := lastJobState[event.DeviceID]
		lastJobState[event.DeviceID] = event.State.JobState
		mu.Unlock()
		if seen && previous == event.State.JobState {
			return nil
		}
		notifier.Notify(ctx, Event{
			Type:     TypeStateChanged,
			DeviceID: event.DeviceID,
			Status:   event.State.JobState,
			Filename: event.State.GcodeFile,
			At:       event.ObservedAt,
		})
		return nil
	})

	bus.SubscribePrintStarted(func(ctx context.Context, event eventing.PrintStarted) error {
		notifier.Notify(ctx, Event{
			Type:     TypePrintStarted,
			DeviceID: event.DeviceID,
			Filename: event.Filename,
			At:       event.StartedAt,
		})
		return nil
	})

	bus.SubscribePrintCompleted(func(ctx context.Context, event eventing.PrintCompleted) error {
		notifier.Notify(ctx, Event{
			Type:     TypePrintCompleted,
			DeviceID: event.DeviceID,
			Filename: event.Filename,
			Status:   event.Status,
			At:       event.CompletedAt,
		})
		return nil
	})

	bus.SubscribeArchiveCreated(func(ctx context.Context, event eventing.ArchiveCreated) error {
		notifier.Notify(ctx, Event{
			Type:      TypeArchiveCreated,
			DeviceID:  event.DeviceID,
			Filename:  event.Filename,
			ArchiveID: event.ArchiveID,
			At:        event.CreatedAt,
		})
		return nil
	})

	bus.SubscribeArchiveUpdated(func(ctx context.Context, event eventing.ArchiveUpdated) error {
		notifier.Notify(ctx, Event{
			Type:      TypeArchiveUpdated,
			DeviceID:  event.DeviceID,
			Status:    event.Status,
			ArchiveID: event.ArchiveID,
			At:        event.UpdatedAt,
		})
		return nil
	})
}
