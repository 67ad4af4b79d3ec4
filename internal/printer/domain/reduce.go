package printer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const defaultHMSSeverity = 3

// Reduce folds one report delta into the state. Absent fields keep their
// prior value; the temperature map is rebuilt only when the delta carries
// at least one recognized temperature key, and the HMS list is replaced
// whenever the delta carries one.
func Reduce(state *State, delta *ReportDelta) {
	if state == nil || delta == nil {
		return
	}
	if delta.GcodeState != nil {
		state.JobState = *delta.GcodeState
	}
	if delta.GcodeFile != nil {
		state.GcodeFile = *delta.GcodeFile
		state.CurrentPrint = *delta.GcodeFile
	}
	if delta.SubtaskName != nil {
		state.SubtaskName = *delta.SubtaskName
		// Prefer the subtask name as the human label when present.
		if *delta.SubtaskName != "" {
			state.CurrentPrint = *delta.SubtaskName
		}
	}
	if delta.SubtaskID != nil {
		state.SubtaskID = *delta.SubtaskID
	}
	if delta.Percent != nil {
		state.Progress = *delta.Percent
	}
	if delta.RemainingTime != nil {
		state.RemainingTime = *delta.RemainingTime
	}
	if delta.LayerNum != nil {
		state.LayerNum = *delta.LayerNum
	}
	if delta.TotalLayerNum != nil {
		state.TotalLayers = *delta.TotalLayerNum
	}

	temps := make(map[string]float64)
	putTemp(temps, "bed", delta.BedTemper)
	putTemp(temps, "bed_target", delta.BedTargetTemper)
	putTemp(temps, "nozzle", delta.NozzleTemper)
	putTemp(temps, "nozzle_target", delta.NozzleTargetTemper)
	putTemp(temps, "nozzle_2", delta.NozzleTemper2)
	putTemp(temps, "nozzle_2_target", delta.NozzleTargetTemper2)
	putTemp(temps, "chamber", delta.ChamberTemper)
	if len(temps) > 0 {
		state.Temperatures = temps
	}

	if delta.HMS != nil {
		faults := make([]HMSError, 0, len(delta.HMS))
		for _, entry := range delta.HMS {
			faults = append(faults, DecodeHMS(entry))
		}
		state.HMSErrors = faults
	}

	state.Raw = delta.Raw
}

func putTemp(temps map[string]float64, key string, value *float64) {
	if value != nil {
		temps[key] = *value
	}
}

// DecodeHMS extracts module and severity bits from a raw fault entry.
// A severity of 0 or an unparseable code falls back to the common
// severity; a decode failure never drops the entry.
func DecodeHMS(entry HMSEntry) HMSError {
	code := hmsCodeString(entry)
	value, err := parseHMSCode(code)
	if err != nil {
		return HMSError{Code: code, Module: 0, Severity: defaultHMSSeverity}
	}
	severity := int((value >> 16) & 0xF)
	module := int((value >> 24) & 0xFF)
	if severity == 0 {
		severity = defaultHMSSeverity
	}
	return HMSError{Code: code, Module: module, Severity: severity}
}

func hmsCodeString(entry HMSEntry) string {
	for _, raw := range []json.RawMessage{entry.Code, entry.Attr} {
		if len(raw) == 0 {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text
		}
		var number uint64
		if err := json.Unmarshal(raw, &number); err == nil {
			return fmt.Sprintf("%#x", number)
		}
	}
	return "0"
}

func parseHMSCode(code string) (uint64, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(code), "0x", "")
	return strconv.ParseUint(trimmed, 16, 64)
}
