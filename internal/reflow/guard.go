package reflow

// GuardConfig sets the plausibility band and fault confirmation rule.
type GuardConfig struct {
	Low  float64 `mapstructure:"low"`
	High float64 `mapstructure:"high"`
	// BadThreshold bad samples within one window confirm a fault.
	BadThreshold int `mapstructure:"bad_threshold"`
	// WindowSamples is the length of the rolling window in samples. Both
	// counters reset when it elapses.
	WindowSamples int `mapstructure:"window_samples"`
	// RecoverySamples consecutive good samples are needed before a
	// sensor fault may be resumed.
	RecoverySamples int `mapstructure:"recovery_samples"`
}

// DefaultGuardConfig returns the design defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Low:             20,
		High:            265,
		BadThreshold:    200,
		WindowSamples:   4000,
		RecoverySamples: 10,
	}
}

// Reading is the guarded view of one sensor sample.
type Reading struct {
	// Value is the trusted temperature: the sample itself when accepted,
	// otherwise the last known-good value.
	Value float64
	// Raw is the numeric sample as reported (zero for native fault codes).
	Raw float64
	// Kind classifies this sample; FaultNone when accepted.
	Kind FaultCode
	// Fault is set once bad samples are confirmed within the window.
	Fault FaultCode
}

// Valid reports whether no fault is confirmed.
func (r Reading) Valid() bool { return r.Fault == FaultNone }

// Accepted reports whether this particular sample passed the guard.
func (r Reading) Accepted() bool { return r.Kind == FaultNone }

// numeric reports whether the sensor produced a number rather than a fault code.
func (r Reading) numeric() bool { return r.Kind == FaultNone || r.Kind == FaultOutOfRange }

// Guard filters raw samples. Not safe for concurrent use; it lives on the
// control path.
type Guard struct {
	cfg      GuardConfig
	lastGood float64
	good     int
	bad      int
	ticks    int
	lastBad  FaultCode
}

// NewGuard returns a guard whose initial known-good value is the low bound.
func NewGuard(cfg GuardConfig) *Guard {
	def := DefaultGuardConfig()
	if cfg.High <= cfg.Low {
		cfg.Low, cfg.High = def.Low, def.High
	}
	if cfg.BadThreshold <= 0 {
		cfg.BadThreshold = def.BadThreshold
	}
	if cfg.WindowSamples <= 0 {
		cfg.WindowSamples = def.WindowSamples
	}
	if cfg.RecoverySamples <= 0 {
		cfg.RecoverySamples = def.RecoverySamples
	}
	return &Guard{cfg: cfg, lastGood: cfg.Low}
}

// Config returns the effective configuration.
func (g *Guard) Config() GuardConfig { return g.cfg }

// Sample classifies one sensor read.
func (g *Guard) Sample(v float64, err error) Reading {
	g.ticks++
	if g.ticks > g.cfg.WindowSamples {
		g.good, g.bad, g.ticks = 0, 0, 1
	}

	r := Reading{Raw: v}
	switch {
	case err != nil:
		r.Kind = classify(err)
		r.Raw = 0
	case !(v > g.cfg.Low && v < g.cfg.High):
		r.Kind = FaultOutOfRange
	}

	if r.Kind == FaultNone {
		g.lastGood = v
		g.good++
	} else {
		g.bad++
		g.lastBad = r.Kind
	}
	r.Value = g.lastGood
	if g.bad >= g.cfg.BadThreshold {
		r.Fault = g.lastBad
	}
	return r
}

// LastGood returns the last accepted value.
func (g *Guard) LastGood() float64 { return g.lastGood }

// Counts returns the good and bad sample counts of the current window.
func (g *Guard) Counts() (good, bad int) { return g.good, g.bad }

// Reset clears both counters and restarts the window. The last known-good
// value is kept.
func (g *Guard) Reset() {
	g.good, g.bad, g.ticks = 0, 0, 0
	g.lastBad = FaultNone
}
