package eventing

import (
	"time"

	printer "github.com/maziggy/bambusy/internal/printer/domain"
)

// StateChanged carries a fresh state snapshot for one printer.
type StateChanged struct {
	DeviceID   string        `json:"device_id"`
	State      printer.State `json:"state"`
	ObservedAt time.Time     `json:"observed_at"`
}

// PrintStarted signals that a printer transitioned into an active job.
type PrintStarted struct {
	DeviceID    string    `json:"device_id"`
	Filename    string    `json:"filename"`
	SubtaskName string    `json:"subtask_name,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// PrintCompleted signals that an active job reached a terminal state.
type PrintCompleted struct {
	DeviceID    string    `json:"device_id"`
	Filename    string    `json:"filename"`
	Status      string    `json:"status"` // "completed" or "failed"
	CompletedAt time.Time `json:"completed_at"`
}

// ArchiveCreated signals that a print file was captured into the archive.
type ArchiveCreated struct {
	DeviceID  string    `json:"device_id"`
	ArchiveID string    `json:"archive_id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// ArchiveUpdated signals a status change on an existing archive record.
type ArchiveUpdated struct {
	DeviceID  string    `json:"device_id"`
	ArchiveID string    `json:"archive_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
