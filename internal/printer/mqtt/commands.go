package mqtt

import "fmt"

// PushAllCommand requests a full status report from the printer.
func PushAllCommand() map[string]any {
	return map[string]any{
		"pushing": map[string]any{"command": "pushall"},
	}
}

// StartPrintCommand builds the project_file command that starts a print
// job for a named archive file and plate.
func StartPrintCommand(filename string, plate int) map[string]any {
	if plate <= 0 {
		plate = 1
	}
	return map[string]any{
		"print": map[string]any{
			"command":        "project_file",
			"param":          fmt.Sprintf("Metadata/plate_%d.gcode", plate),
			"subtask_name":   filename,
			"url":            "ftp://" + filename,
			"bed_type":       "auto",
			"timelapse":      false,
			"bed_leveling":   true,
			"flow_cali":      true,
			"vibration_cali": true,
			"layer_inspect":  false,
			"use_ams":        true,
		},
	}
}
