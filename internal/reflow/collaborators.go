package reflow

import "time"

// Sensor returns a calibrated temperature in °C. Native sensor faults are
// reported as a FaultCode error.
type Sensor interface {
	ReadTemperature() (float64, error)
}

// Controller is the PID collaborator. The sequencer only talks to it through
// this interface.
type Controller interface {
	Configure(kp, ki, kd float64, sample time.Duration)
	SetOutputLimits(min, max float64)
	SetEnabled(enabled bool)
	Compute(input, setpoint float64) float64
}

// Actuator switches the heater relay.
type Actuator interface {
	SetRelay(on bool) error
}

// Display receives status snapshots. Implementations must not block.
type Display interface {
	Render(st Status)
}

// EventSink receives notable sequencer events (start, stage changes,
// faults). Implementations must not block.
type EventSink interface {
	Record(n Notice)
}

// Notice types.
const (
	NoticeStart    = "START"
	NoticeStop     = "STOP"
	NoticeStage    = "STAGE"
	NoticeFault    = "FAULT"
	NoticeResume   = "RESUME"
	NoticeComplete = "COMPLETE"
	NoticeProfile  = "PROFILE"
	NoticeError    = "ERROR"
)

// Notice is a single sequencer event destined for the event log.
type Notice struct {
	At          time.Time
	Type        string
	Stage       Stage
	Description string
	Metadata    map[string]any
}

// Status is what a display renders.
type Status struct {
	Stage       Stage         `json:"stage"`
	Temperature float64       `json:"temperature_c"`
	Setpoint    float64       `json:"setpoint_c"`
	Output      float64       `json:"output"`
	OutputLimit float64       `json:"output_limit"`
	Heater      bool          `json:"heater"`
	Solder      SolderType    `json:"solder"`
	Profile     string        `json:"profile"`
	Fault       FaultCode     `json:"fault"`
	Interrupted Stage         `json:"interrupted_stage,omitempty"`
	Resume      bool          `json:"resume"`
	Recovered   bool          `json:"recovered"`
	Countdown   time.Duration `json:"countdown"`
}

// FaultIndicator reports whether the display should show a fault.
func (s Status) FaultIndicator() bool { return s.Stage == StageFault || s.Fault != FaultNone }
