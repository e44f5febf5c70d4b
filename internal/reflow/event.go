package reflow

// Event is a discrete operator request. Lower values are processed first
// within one main-loop iteration. A profile toggle sorts before Start so
// that "toggle, then start" posted together runs the toggled profile.
type Event uint8

const (
	EventNone Event = iota
	EventStop
	EventPause
	EventSolderToggle
	EventStart
	EventStartStop
	EventConfirmProbe
	EventResume
	EventAbandon
	EventAcknowledge
	eventCount
)

var eventNames = [...]string{
	EventNone:         "NONE",
	EventStop:         "STOP",
	EventPause:        "PAUSE",
	EventSolderToggle: "SOLDER_TOGGLE",
	EventStart:        "START",
	EventStartStop:    "START_STOP",
	EventConfirmProbe: "CONFIRM_PROBE",
	EventResume:       "RESUME",
	EventAbandon:      "ABANDON",
	EventAcknowledge:  "ACKNOWLEDGE",
}

func (e Event) String() string {
	if e < eventCount {
		return eventNames[e]
	}
	return "INVALID"
}
