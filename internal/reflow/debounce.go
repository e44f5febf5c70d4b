package reflow

import "sync/atomic"

// DefaultDebounceThreshold is the number of consecutive samples a level must
// hold before it counts.
const DefaultDebounceThreshold = 5

// Debouncer is a confidence counter over one button line. A press emits
// exactly one event however long it is held; the line must then read
// released for the same number of samples before it can fire again.
type Debouncer struct {
	threshold int
	count     int
	latched   bool
}

// NewDebouncer returns a debouncer with the given confidence threshold.
func NewDebouncer(threshold int) *Debouncer {
	if threshold <= 0 {
		threshold = DefaultDebounceThreshold
	}
	return &Debouncer{threshold: threshold}
}

// Poll feeds one raw level and reports whether a press was recognised.
func (d *Debouncer) Poll(pressed bool) bool {
	if pressed == d.latched {
		d.count = 0
		return false
	}
	d.count++
	if d.count < d.threshold {
		return false
	}
	d.count = 0
	d.latched = pressed
	return pressed
}

// ButtonLine holds the raw level of one button. Set is called from the
// edge callback; the control loop reads it with Level. No other state is
// shared between the two.
type ButtonLine struct {
	level atomic.Bool
}

// Set stores the current raw level.
func (b *ButtonLine) Set(pressed bool) { b.level.Store(pressed) }

// Level returns the last stored raw level.
func (b *ButtonLine) Level() bool { return b.level.Load() }

// InputAdapter turns the two physical buttons into semantic events. Poll is
// called from the control loop only.
type InputAdapter struct {
	Profile   *ButtonLine
	StartStop *ButtonLine

	profile   *Debouncer
	startStop *Debouncer
}

// NewInputAdapter wires the two lines with the given debounce threshold.
func NewInputAdapter(profile, startStop *ButtonLine, threshold int) *InputAdapter {
	if profile == nil {
		profile = &ButtonLine{}
	}
	if startStop == nil {
		startStop = &ButtonLine{}
	}
	return &InputAdapter{
		Profile:   profile,
		StartStop: startStop,
		profile:   NewDebouncer(threshold),
		startStop: NewDebouncer(threshold),
	}
}

// Poll samples both lines once and returns the recognised events.
func (a *InputAdapter) Poll() []Event {
	var out []Event
	if a.startStop.Poll(a.StartStop.Level()) {
		out = append(out, EventStartStop)
	}
	if a.profile.Poll(a.Profile.Level()) {
		out = append(out, EventSolderToggle)
	}
	return out
}
