package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes events to the log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event.
func (n *LogNotifier) Notify(_ context.Context, event Event) {
	n.logger.Info().
		Str("type", event.Type).
		Str("device_id", event.DeviceID).
		Str("filename", event.Filename).
		Str("status", event.Status).
		Str("archive_id", event.ArchiveID).
		Msg("notification")
}
