// Package pid is a sampled PID controller for slow thermal loads.
//
// Compute only updates the output once per sample period and holds it in
// between. The integral term is clamped to the output limits, the
// derivative acts on the measurement rather than the error, and
// re-enabling the controller seeds the integral with the last output so
// the switch is bumpless.
//
// Not safe for concurrent use.
package pid

import "time"

// DefaultSampleTime is used until Configure sets one.
const DefaultSampleTime = 100 * time.Millisecond

// Controller implements reflow.Controller.
type Controller struct {
	kp, ki, kd float64
	sample     time.Duration
	outMin     float64
	outMax     float64
	enabled    bool

	iTerm     float64
	lastInput float64
	output    float64
	lastAt    time.Time
	primed    bool

	now func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New returns a disabled controller with output limits [0, 255].
func New(opts ...Option) *Controller {
	c := &Controller{
		sample: DefaultSampleTime,
		outMax: 255,
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configure sets the tuning constants and sample period. Gains are given
// per second; negative values are ignored.
func (c *Controller) Configure(kp, ki, kd float64, sample time.Duration) {
	if kp < 0 || ki < 0 || kd < 0 {
		return
	}
	if sample > 0 {
		c.sample = sample
	}
	c.kp, c.ki, c.kd = kp, ki, kd
}

// Tunings returns the current constants.
func (c *Controller) Tunings() (kp, ki, kd float64) { return c.kp, c.ki, c.kd }

// SetOutputLimits clamps the output and integral to [min, max].
func (c *Controller) SetOutputLimits(min, max float64) {
	if min >= max {
		return
	}
	c.outMin, c.outMax = min, max
	if c.enabled {
		c.output = c.clamp(c.output)
		c.iTerm = c.clamp(c.iTerm)
	}
}

// SetEnabled switches between automatic and manual. Going from manual to
// automatic re-initialises the internal state on the next Compute.
func (c *Controller) SetEnabled(enabled bool) {
	if enabled && !c.enabled {
		c.primed = false
	}
	c.enabled = enabled
}

// Enabled reports whether the controller is in automatic mode.
func (c *Controller) Enabled() bool { return c.enabled }

// Output returns the last computed output.
func (c *Controller) Output() float64 { return c.output }

// Compute returns the controller output for the given measurement and
// set-point. While disabled, or before a sample period has elapsed, the
// previous output is returned unchanged.
func (c *Controller) Compute(input, setpoint float64) float64 {
	if !c.enabled {
		return c.output
	}
	now := c.now()
	if !c.primed {
		c.iTerm = c.clamp(c.output)
		c.lastInput = input
		c.lastAt = now.Add(-c.sample)
		c.primed = true
	}
	if now.Sub(c.lastAt) < c.sample {
		return c.output
	}

	dt := c.sample.Seconds()
	err := setpoint - input
	c.iTerm = c.clamp(c.iTerm + c.ki*dt*err)
	dInput := input - c.lastInput

	c.output = c.clamp(c.kp*err + c.iTerm - (c.kd/dt)*dInput)
	c.lastInput = input
	c.lastAt = now
	return c.output
}

func (c *Controller) clamp(v float64) float64 {
	switch {
	case v > c.outMax:
		return c.outMax
	case v < c.outMin:
		return c.outMin
	}
	return v
}
