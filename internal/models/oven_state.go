package models

import "time"

// OvenState is the last published snapshot of the controller.
type OvenState struct {
	ID               int       `json:"id"`
	Stage            string    `json:"stage"`          // IDLE | PROBE_CHECK | PREHEAT | SOAK | REFLOW | COOL | COMPLETE | FAULT
	CurrentTempC     float64   `json:"current_temp_c"` // °C, guarded value
	SetpointC        float64   `json:"setpoint_c"`     // °C
	Output           float64   `json:"output"`         // controller output, ms of relay on-time per window
	HeaterOn         bool      `json:"heater_on"`
	Profile          string    `json:"profile"`         // leaded | lead-free
	Fault            string    `json:"fault,omitempty"` // e.g. OPEN_CIRCUIT
	InterruptedStage string    `json:"interrupted_stage,omitempty"`
	Resume           bool      `json:"resume"` // operator's pending choice while in FAULT
	CountdownSeconds int       `json:"countdown_seconds,omitempty"`
	ErrorCodes       []string  `json:"error_codes,omitempty"` // e.g. ["OVER_TEMPERATURE"]
	IsRunning        bool      `json:"is_running"`
	UpdatedAt        time.Time `json:"updated_at"`
}
