package printer

import "encoding/json"

// EventKind discriminates lifecycle edge events.
type EventKind string

// Lifecycle edge kinds.
const (
	EventStart    EventKind = "start"
	EventComplete EventKind = "complete"
)

// Completion statuses mapped outward from terminal job states.
const (
	CompletionCompleted = "completed"
	CompletionFailed    = "failed"
)

// Event is a print lifecycle edge derived from two consecutive reduced
// states.
type Event struct {
	Kind        EventKind
	Status      string
	Filename    string
	SubtaskName string
	Raw         json.RawMessage
}

// Tracker carries the two prior-state fields edge detection needs. It is
// owned by one session and must only be fed states in delivery order.
type Tracker struct {
	prevJobState  string
	prevGcodeFile string
}

// Observe evaluates lifecycle edges for a newly reduced state and advances
// the tracker. It returns at most one START and at most one COMPLETE per
// update.
func (t *Tracker) Observe(state *State) []Event {
	currentFile := state.GcodeFile
	if currentFile == "" {
		currentFile = state.CurrentPrint
	}

	var events []Event

	newPrint := state.JobState == StateRunning &&
		t.prevJobState != StateRunning &&
		currentFile != ""
	// A file change while still RUNNING signals a new job queued right
	// after another, without a non-running state in between.
	fileSwap := state.JobState == StateRunning &&
		currentFile != "" &&
		t.prevGcodeFile != "" &&
		currentFile != t.prevGcodeFile
	if newPrint || fileSwap {
		events = append(events, Event{
			Kind:        EventStart,
			Filename:    currentFile,
			SubtaskName: state.SubtaskName,
			Raw:         state.Raw,
		})
	}

	if t.prevJobState == StateRunning && isTerminal(state.JobState) {
		status := CompletionFailed
		if state.JobState == StateFinish {
			status = CompletionCompleted
		}
		filename := t.prevGcodeFile
		if filename == "" {
			filename = currentFile
		}
		events = append(events, Event{
			Kind:     EventComplete,
			Status:   status,
			Filename: filename,
			Raw:      state.Raw,
		})
	}

	t.prevJobState = state.JobState
	if currentFile != "" {
		t.prevGcodeFile = currentFile
	}
	return events
}

func isTerminal(jobState string) bool {
	return jobState == StateFinish || jobState == StateFailed
}
