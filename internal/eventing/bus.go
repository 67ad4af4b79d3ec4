package eventing

import (
	"context"
	"sync"
)

// Bus is a lightweight in-process event bus connecting telemetry sessions
// to the archive pipeline and notifiers.
type Bus struct {
	mu sync.RWMutex

	stateHandlers          []func(context.Context, StateChanged) error
	startHandlers          []func(context.Context, PrintStarted) error
	completeHandlers       []func(context.Context, PrintCompleted) error
	archiveCreatedHandlers []func(context.Context, ArchiveCreated) error
	archiveUpdatedHandlers []func(context.Context, ArchiveUpdated) error
}

// NewBus constructs a new bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribeStateChanged registers a handler for StateChanged.
func (b *Bus) SubscribeStateChanged(handler func(context.Context, StateChanged) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stateHandlers = append(b.stateHandlers, handler)
}

// PublishStateChanged publishes a StateChanged event.
func (b *Bus) PublishStateChanged(ctx context.Context, event StateChanged) error {
	b.mu.RLock()
	handlers := append([]func(context.Context, StateChanged) error(nil), b.stateHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// SubscribePrintStarted registers a handler for PrintStarted.
func (b *Bus) SubscribePrintStarted(handler func(context.Context, PrintStarted) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startHandlers = append(b.startHandlers, handler)
}

// PublishPrintStarted publishes a PrintStarted event.
func (b *Bus) PublishPrintStarted(ctx context.Context, event PrintStarted) error {
	b.mu.RLock()
	handlers := append([]func(context.Context, PrintStarted) error(nil), b.startHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// SubscribePrintCompleted registers a handler for PrintCompleted.
func (b *Bus) SubscribePrintCompleted(handler func(context.Context, PrintCompleted) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completeHandlers = append(b.completeHandlers, handler)
}

// PublishPrintCompleted publishes a PrintCompleted event.
func (b *Bus) PublishPrintCompleted(ctx context.Context, event PrintCompleted) error {
	b.mu.RLock()
	handlers := append([]func(context.Context, PrintCompleted) error(nil), b.completeHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// SubscribeArchiveCreated registers a handler for ArchiveCreated.
func (b *Bus) SubscribeArchiveCreated(handler func(context.Context, ArchiveCreated) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.archiveCreatedHandlers = append(b.archiveCreatedHandlers, handler)
}

// PublishArchiveCreated publishes an ArchiveCreated event.
func (b *Bus) PublishArchiveCreated(ctx context.Context, event ArchiveCreated) error {
	b.mu.RLock()
	handlers := append([]func(context.Context, ArchiveCreated) error(nil), b.archiveCreatedHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// SubscribeArchiveUpdated registers a handler for ArchiveUpdated.
func (b *Bus) SubscribeArchiveUpdated(handler func(context.Context, ArchiveUpdated) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.archiveUpdatedHandlers = append(b.archiveUpdatedHandlers, handler)
}

// PublishArchiveUpdated publishes an ArchiveUpdated event.
func (b *Bus) PublishArchiveUpdated(ctx context.Context, event ArchiveUpdated) error {
	b.mu.RLock()
	handlers := append([]func(context.Context, ArchiveUpdated) error(nil), b.archiveUpdatedHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
