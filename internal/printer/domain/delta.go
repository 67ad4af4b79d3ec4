package printer

import "encoding/json"

// ReportDelta is one inbound "print" report fragment. Every field is
// independently optional: nil means the delta did not carry the field and
// the prior state value is kept.
type ReportDelta struct {
	GcodeState          *string    `json:"gcode_state"`
	GcodeFile           *string    `json:"gcode_file"`
	SubtaskName         *string    `json:"subtask_name"`
	SubtaskID           *string    `json:"subtask_id"`
	Percent             *float64   `json:"mc_percent"`
	RemainingTime       *int       `json:"mc_remaining_time"`
	LayerNum            *int       `json:"layer_num"`
	TotalLayerNum       *int       `json:"total_layer_num"`
	BedTemper           *float64   `json:"bed_temper"`
	BedTargetTemper     *float64   `json:"bed_target_temper"`
	NozzleTemper        *float64   `json:"nozzle_temper"`
	NozzleTargetTemper  *float64   `json:"nozzle_target_temper"`
	NozzleTemper2       *float64   `json:"nozzle_temper_2"`
	NozzleTargetTemper2 *float64   `json:"nozzle_target_temper_2"`
	ChamberTemper       *float64   `json:"chamber_temper"`
	HMS                 []HMSEntry `json:"hms"`

	// Raw is the delta object as received, kept on the state for fields
	// not otherwise modeled.
	Raw json.RawMessage `json:"-"`
}

// HMSEntry is one raw health fault as published by the printer. The code
// arrives either as an integer or a hex string, under "code" or "attr".
type HMSEntry struct {
	Attr json.RawMessage `json:"attr"`
	Code json.RawMessage `json:"code"`
}

type reportEnvelope struct {
	Print json.RawMessage `json:"print"`
}

// ParseReport decodes one MQTT report payload. It returns nil when the
// payload is valid JSON but carries no "print" object; a decode error
// means the message should be dropped without touching state.
func ParseReport(payload []byte) (*ReportDelta, error) {
	var envelope reportEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Print) == 0 {
		return nil, nil
	}
	var delta ReportDelta
	if err := json.Unmarshal(envelope.Print, &delta); err != nil {
		return nil, err
	}
	delta.Raw = envelope.Print
	return &delta, nil
}
