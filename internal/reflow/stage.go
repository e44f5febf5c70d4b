// Package reflow sequences a reflow oven through its thermal profile and
// keeps the heater relay under closed-loop control.
package reflow

// Stage is the active phase of a reflow run. Exactly one is active at a time.
type Stage string

const (
	StageIdle       Stage = "IDLE"
	StageProbeCheck Stage = "PROBE_CHECK"
	StagePreheat    Stage = "PREHEAT"
	StageSoak       Stage = "SOAK"
	StageReflow     Stage = "REFLOW"
	StageCool       Stage = "COOL"
	StageComplete   Stage = "COMPLETE"
	StageFault      Stage = "FAULT"
)

// Running reports whether a run is in progress and can be interrupted by a fault.
func (s Stage) Running() bool {
	return s != StageIdle && s != StageFault && s != ""
}

// Heating reports whether the controller output drives the relay in this stage.
func (s Stage) Heating() bool {
	switch s {
	case StagePreheat, StageSoak, StageReflow, StageCool:
		return true
	default:
		return false
	}
}

func (s Stage) String() string { return string(s) }
