package printer

import "encoding/json"

// Job state tokens reported by the printer firmware. The set is open:
// tokens the firmware adds later are stored verbatim.
const (
	StateUnknown = "unknown"
	StateRunning = "RUNNING"
	StateFinish  = "FINISH"
	StateFailed  = "FAILED"
)

// HMSError is a decoded Health Management System fault reported by the
// printer. Severity: 1=fatal, 2=serious, 3=common, 4=info.
type HMSError struct {
	Code     string `json:"code"`
	Module   int    `json:"module"`
	Severity int    `json:"severity"`
}

// State is the canonical reduced view of one printer, folded from every
// report delta received since the session connected. Fields absent from a
// delta keep their prior value; temperatures and HMS errors are replaced
// wholesale when present.
type State struct {
	Connected     bool               `json:"connected"`
	JobState      string             `json:"state"`
	CurrentPrint  string             `json:"current_print,omitempty"`
	SubtaskName   string             `json:"subtask_name,omitempty"`
	SubtaskID     string             `json:"subtask_id,omitempty"`
	GcodeFile     string             `json:"gcode_file,omitempty"`
	Progress      float64            `json:"progress"`
	RemainingTime int                `json:"remaining_time"`
	LayerNum      int                `json:"layer_num"`
	TotalLayers   int                `json:"total_layers"`
	Temperatures  map[string]float64 `json:"temperatures,omitempty"`
	HMSErrors     []HMSError         `json:"hms_errors,omitempty"`
	Raw           json.RawMessage    `json:"-"`
}

// NewState returns the initial state for a freshly created session.
func NewState() State {
	return State{JobState: StateUnknown}
}

// Clone returns a copy safe to hand to other goroutines while the session
// keeps mutating the original.
func (s State) Clone() State {
	out := s
	if s.Temperatures != nil {
		out.Temperatures = make(map[string]float64, len(s.Temperatures))
		for key, value := range s.Temperatures {
			out.Temperatures[key] = value
		}
	}
	if s.HMSErrors != nil {
		out.HMSErrors = append([]HMSError(nil), s.HMSErrors...)
	}
	if s.Raw != nil {
		out.Raw = append(json.RawMessage(nil), s.Raw...)
	}
	return out
}
