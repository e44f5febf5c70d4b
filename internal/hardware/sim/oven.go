// Package sim is a two-node thermal model of a toaster oven, used by the
// simulate command and in place of real hardware when hardware.driver is
// "sim". The element heats and loses heat to ambient; the chamber, where
// the thermocouple sits, follows the element with a first-order lag.
package sim

import (
	"math/rand"
	"sync"
	"time"

	"reflow_oven/internal/reflow"
)

// Simulation defaults.
const (
	AmbientC       = 25.0
	HeatRateCPerS  = 2.5   // °C per second with the element fully on
	LossCoeffPerS  = 0.005 // Newtonian loss towards ambient
	Lag            = 20 * time.Second
	MaxStepSeconds = 0.1 // integration step
)

// Config tunes the model.
type Config struct {
	Ambient   float64 `mapstructure:"ambient"`
	HeatRate  float64 `mapstructure:"heat_rate"`
	LossCoeff float64 `mapstructure:"loss_coeff"`
	// Lag is the chamber time constant behind the element.
	Lag time.Duration `mapstructure:"lag"`
	// Noise is the amplitude of uniform measurement noise in °C.
	Noise float64 `mapstructure:"noise"`
}

// DefaultConfig returns the default model.
func DefaultConfig() Config {
	return Config{
		Ambient:   AmbientC,
		HeatRate:  HeatRateCPerS,
		LossCoeff: LossCoeffPerS,
		Lag:       Lag,
	}
}

// Clock is a manually advanced clock.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock starts a clock at start.
func NewClock(start time.Time) *Clock { return &Clock{t: start} }

// Now returns the current virtual time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Oven implements reflow.Sensor and reflow.Actuator. The model is
// integrated lazily up to the clock's current time on every call.
type Oven struct {
	mu      sync.Mutex
	cfg     Config
	now     func() time.Time
	rng     *rand.Rand
	temp    float64
	element float64
	heater  bool
	last    time.Time

	fault     reflow.FaultCode
	faultLeft int

	switches int
}

// Option configures an Oven.
type Option func(*Oven)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Oven) { o.now = now }
}

// WithSeed makes the noise reproducible.
func WithSeed(seed int64) Option {
	return func(o *Oven) { o.rng = rand.New(rand.NewSource(seed)) }
}

// NewOven returns an oven at ambient temperature with the heater off.
func NewOven(cfg Config, opts ...Option) *Oven {
	def := DefaultConfig()
	if cfg.HeatRate <= 0 {
		cfg.HeatRate = def.HeatRate
	}
	if cfg.LossCoeff <= 0 {
		cfg.LossCoeff = def.LossCoeff
	}
	if cfg.Lag < time.Second {
		cfg.Lag = def.Lag
	}
	if cfg.Ambient == 0 {
		cfg.Ambient = def.Ambient
	}
	o := &Oven{
		cfg: cfg,
		now: time.Now,
		rng: rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.temp = cfg.Ambient
	o.element = cfg.Ambient
	o.last = o.now()
	return o
}

// ReadTemperature returns the modelled temperature, or the injected fault
// code while an injection is active.
func (o *Oven) ReadTemperature() (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.advance()

	if o.faultLeft > 0 {
		o.faultLeft--
		return 0, o.fault
	}
	v := o.temp
	if o.cfg.Noise > 0 {
		v += (o.rng.Float64()*2 - 1) * o.cfg.Noise
	}
	return v, nil
}

// SetRelay switches the element.
func (o *Oven) SetRelay(on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.advance()
	if on != o.heater {
		o.switches++
	}
	o.heater = on
	return nil
}

// InjectFault makes the next n reads return code.
func (o *Oven) InjectFault(code reflow.FaultCode, n int) {
	o.mu.Lock()
	o.fault, o.faultLeft = code, n
	o.mu.Unlock()
}

// SetTemperature puts both nodes at c.
func (o *Oven) SetTemperature(c float64) {
	o.mu.Lock()
	o.advance()
	o.temp, o.element = c, c
	o.mu.Unlock()
}

// Temperature returns the true chamber temperature without noise.
func (o *Oven) Temperature() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.advance()
	return o.temp
}

// Heater reports the element state.
func (o *Oven) Heater() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.heater
}

// Switches counts relay transitions.
func (o *Oven) Switches() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.switches
}

func (o *Oven) advance() {
	now := o.now()
	elapsed := now.Sub(o.last).Seconds()
	if elapsed <= 0 {
		return
	}
	o.last = now
	for elapsed > 0 {
		dt := elapsed
		if dt > MaxStepSeconds {
			dt = MaxStepSeconds
		}
		rate := -o.cfg.LossCoeff * (o.element - o.cfg.Ambient)
		if o.heater {
			rate += o.cfg.HeatRate
		}
		o.element += rate * dt
		o.temp += (o.element - o.temp) / o.cfg.Lag.Seconds() * dt
		elapsed -= dt
	}
}
