package notify

import (
	"context"
	"time"
)

// Event types emitted to notifiers.
const (
	TypeStateChanged   = "state_changed"
	TypePrintStarted   = "print_started"
	TypePrintCompleted = "print_completed"
	TypeArchiveCreated = "archive_created"
	TypeArchiveUpdated = "archive_updated"
)

// Event is one notification about a printer or its archive.
type Event struct {
	Type      string    `json:"type"`
	DeviceID  string    `json:"device_id"`
	Filename  string    `json:"filename,omitempty"`
	Status    string    `json:"status,omitempty"`
	ArchiveID string    `json:"archive_id,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier delivers events to an external consumer.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// MultiNotifier dispatches events to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards the event to all notifiers.
func (m *MultiNotifier) Notify(ctx context.Context, event Event) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}
