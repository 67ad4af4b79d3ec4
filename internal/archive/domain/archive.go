package archive

import "time"

// Archive record statuses.
const (
	StatusPrinting  = "printing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// PrintArchive is one captured print job: the file pulled from the
// printer plus the lifecycle bookkeeping attached to it.
type PrintArchive struct {
	ID          string     `json:"id"`
	DeviceID    string     `json:"device_id"`
	Filename    string     `json:"filename"`
	PrintName   string     `json:"print_name"`
	Status      string     `json:"status"`
	SizeBytes   int64      `json:"size_bytes"`
	EnergyKWh   *float64   `json:"energy_kwh,omitempty"`
	EnergyCost  *float64   `json:"energy_cost,omitempty"`
	Photos      []string   `json:"photos,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
