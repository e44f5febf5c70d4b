package reflow

import "time"

// DefaultRelayWindow is the time-proportioning window.
const DefaultRelayWindow = 2 * time.Second

// TimeProportioner turns a controller output in [0, window ms] into relay
// on/off decisions over a fixed window. The zero value is unusable; build
// it with NewTimeProportioner.
type TimeProportioner struct {
	windowSize  time.Duration
	windowStart time.Time
}

// NewTimeProportioner returns a proportioner for the given window.
func NewTimeProportioner(window time.Duration) TimeProportioner {
	if window <= 0 {
		window = DefaultRelayWindow
	}
	return TimeProportioner{windowSize: window}
}

// Reset starts a new window at now.
func (p *TimeProportioner) Reset(now time.Time) { p.windowStart = now }

// Realign moves the window start forward by whole windows so that now falls
// inside the current window. Used after the relay was idle for a while.
func (p *TimeProportioner) Realign(now time.Time) {
	if p.windowStart.IsZero() || !now.After(p.windowStart) {
		return
	}
	n := now.Sub(p.windowStart) / p.windowSize
	p.windowStart = p.windowStart.Add(n * p.windowSize)
}

// Limit is the upper bound the controller output must be clamped to, in
// milliseconds of on-time per window.
func (p *TimeProportioner) Limit() float64 {
	return float64(p.windowSize) / float64(time.Millisecond)
}

// WindowSize returns the window length.
func (p *TimeProportioner) WindowSize() time.Duration { return p.windowSize }

// WindowStart returns the start of the current window.
func (p *TimeProportioner) WindowStart() time.Time { return p.windowStart }

// Drive reports whether the relay should be on at now for the given output.
// The window advances by at most one window per call, so after a stall the
// relay stays off until the window catches up.
func (p *TimeProportioner) Drive(now time.Time, output float64) bool {
	if p.windowStart.IsZero() {
		p.windowStart = now
	}
	if now.Sub(p.windowStart) > p.windowSize {
		p.windowStart = p.windowStart.Add(p.windowSize)
	}
	elapsed := float64(now.Sub(p.windowStart)) / float64(time.Millisecond)
	return output > elapsed
}
