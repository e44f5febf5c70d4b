package reflow

import (
	"time"

	"reflow_oven/internal/logger"
)

// Config holds the sequencer constants that are not part of a profile.
type Config struct {
	// Ceiling is the absolute over-temperature cutoff, enforced in every stage.
	Ceiling float64 `mapstructure:"ceiling"`
	// Band is the width of the stage exit bands above each set-point.
	Band float64 `mapstructure:"band"`
	// SafeLow and SafeHigh bound the safe-to-open band (SafeLow, SafeHigh].
	SafeLow  float64 `mapstructure:"safe_low"`
	SafeHigh float64 `mapstructure:"safe_high"`
	// ProbeCountdown runs after the probe is confirmed, before preheat.
	ProbeCountdown time.Duration `mapstructure:"probe_countdown"`
	// CompleteDwell is how long COMPLETE is shown before returning to idle.
	CompleteDwell time.Duration `mapstructure:"complete_dwell"`
	// RelayWindow is the time-proportioning window.
	RelayWindow time.Duration `mapstructure:"relay_window"`
	// SkipProbeCheck starts runs directly in preheat.
	SkipProbeCheck bool `mapstructure:"skip_probe_check"`

	Tunings Tunings     `mapstructure:"-"`
	Guard   GuardConfig `mapstructure:"-"`
}

// DefaultConfig returns the design defaults.
func DefaultConfig() Config {
	return Config{
		Ceiling:        265,
		Band:           5,
		SafeLow:        50,
		SafeHigh:       60,
		ProbeCountdown: 5 * time.Second,
		CompleteDwell:  2 * time.Second,
		RelayWindow:    DefaultRelayWindow,
		Tunings:        DefaultTunings(),
		Guard:          DefaultGuardConfig(),
	}
}

// ControlState is the closed-loop state of a run.
type ControlState struct {
	Setpoint float64
	Input    float64
	Output   float64
	Tuning   Tuning
	Relay    TimeProportioner
}

// FaultState exists only while the sequencer is in StageFault.
type FaultState struct {
	Kind                   FaultCode
	InterruptedStage       Stage
	ConsecutiveGoodSamples int
	ConsecutiveBadSamples  int
	LastGoodInput          float64
	// AcknowledgePending stays set until the operator commits a choice.
	AcknowledgePending bool
	// Resume is the operator's current choice; false abandons the run.
	Resume bool
	// TimerLeft is what was left of the interrupted stage's timer (soak
	// step, probe countdown or complete dwell).
	TimerLeft time.Duration
}

// Manual reports whether the fault came from an operator pause.
func (f *FaultState) Manual() bool { return f.Kind == FaultManual }

// SequencerContext is all state owned by the sequencer.
type SequencerContext struct {
	Stage   Stage
	Solder  SolderType
	Profile Profile
	Control ControlState
	Fault   *FaultState

	probeConfirmed bool
	soakDeadline   time.Time
	countdownEnd   time.Time
	heater         bool

	// deferred holds the events of a drain that were not applied because
	// an earlier one changed the stage.
	deferred []Event
}

// Sequencer is the reflow stage state machine. All methods must be called
// from the control loop goroutine.
type Sequencer struct {
	cfg      Config
	profiles ProfileTable
	guard    *Guard
	ctrl     Controller
	relay    Actuator
	sink     EventSink
	log      *logger.Logger

	sc SequencerContext
}

// NewSequencer builds an idle sequencer. sink and log may be nil.
func NewSequencer(cfg Config, profiles ProfileTable, ctrl Controller, relay Actuator, sink EventSink, log *logger.Logger) *Sequencer {
	def := DefaultConfig()
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = def.Ceiling
	}
	if cfg.Band <= 0 {
		cfg.Band = def.Band
	}
	if cfg.SafeHigh <= cfg.SafeLow {
		cfg.SafeLow, cfg.SafeHigh = def.SafeLow, def.SafeHigh
	}
	if cfg.RelayWindow <= 0 {
		cfg.RelayWindow = def.RelayWindow
	}
	if cfg.Tunings == (Tunings{}) {
		cfg.Tunings = def.Tunings
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sequencer{
		cfg:      cfg,
		profiles: profiles,
		guard:    NewGuard(cfg.Guard),
		ctrl:     ctrl,
		relay:    relay,
		sink:     sink,
		log:      log,
		sc:       SequencerContext{Stage: StageIdle},
	}
}

// Stage returns the active stage.
func (s *Sequencer) Stage() Stage { return s.sc.Stage }

// Context returns a copy of the sequencer state.
func (s *Sequencer) Context() SequencerContext {
	c := s.sc
	if s.sc.Fault != nil {
		f := *s.sc.Fault
		c.Fault = &f
	}
	return c
}

// Guard exposes the temperature guard.
func (s *Sequencer) Guard() *Guard { return s.guard }

// Step runs one main-loop iteration: guard the raw sample, apply operator
// events, evaluate the stage, and drive the relay.
func (s *Sequencer) Step(now time.Time, raw float64, rawErr error, events []Event) {
	r := s.guard.Sample(raw, rawErr)
	s.sc.Control.Input = r.Value

	if s.overCeiling(r) {
		s.cutoff(now, r)
		return
	}

	s.handleEvents(now, events)

	if r.Fault != FaultNone && s.sc.Stage.Running() {
		s.enterFault(now, r.Fault)
	}

	s.advance(now, r)
	s.drive(now)
}

func (s *Sequencer) overCeiling(r Reading) bool {
	if r.Value >= s.cfg.Ceiling {
		return true
	}
	return r.numeric() && r.Raw >= s.cfg.Ceiling
}

// cutoff is the hard over-temperature stop. It is not resumable.
func (s *Sequencer) cutoff(now time.Time, r Reading) {
	s.setHeater(false)
	if s.sc.Stage == StageIdle {
		return
	}
	temp := r.Value
	if r.Raw > temp {
		temp = r.Raw
	}
	s.log.Errorw("safety_ceiling_reached", "temp_c", temp, "ceiling_c", s.cfg.Ceiling, "stage", s.sc.Stage)
	s.notify(now, NoticeError, "Safety ceiling reached; run aborted", map[string]any{
		"temp_c":    temp,
		"ceiling_c": s.cfg.Ceiling,
		"stage":     s.sc.Stage,
	})
	s.clearRun(now)
}

// handleEvents applies operator events against the current stage. A Stop
// discards everything else. Once an event changes the stage, the rest are
// kept for the next iteration so they are read against the new stage.
func (s *Sequencer) handleEvents(now time.Time, events []Event) {
	if len(s.sc.deferred) > 0 {
		events = append(s.sc.deferred, events...)
		s.sc.deferred = nil
	}
	for _, ev := range events {
		if ev == EventStop {
			s.stop(now)
			return
		}
	}
	for i, ev := range events {
		stage := s.sc.Stage
		s.handle(now, ev)
		if s.sc.Stage != stage {
			if rest := events[i+1:]; len(rest) > 0 {
				s.sc.deferred = append([]Event(nil), rest...)
			}
			return
		}
	}
}

func (s *Sequencer) handle(now time.Time, ev Event) {
	switch s.sc.Stage {
	case StageIdle:
		switch ev {
		case EventStart, EventStartStop:
			s.start(now)
		case EventSolderToggle:
			s.sc.Solder = s.sc.Solder.Toggle()
			s.log.Infow("profile_selected", "solder", s.sc.Solder)
			s.notify(now, NoticeProfile, "Profile set to "+s.sc.Solder.String(), nil)
		}

	case StageProbeCheck:
		switch ev {
		case EventConfirmProbe, EventStartStop:
			if !s.sc.probeConfirmed {
				s.sc.probeConfirmed = true
				s.sc.countdownEnd = now.Add(s.cfg.ProbeCountdown)
				s.log.Infow("probe_confirmed", "countdown", s.cfg.ProbeCountdown)
			} else if ev == EventStartStop {
				s.stop(now)
			}
		case EventSolderToggle:
			if !s.sc.probeConfirmed {
				s.stop(now)
			}
		case EventPause:
			s.enterFault(now, FaultManual)
		}

	case StageFault:
		f := s.sc.Fault
		switch ev {
		case EventSolderToggle:
			f.Resume = !f.Resume
		case EventResume:
			f.Resume = true
			s.acknowledge(now)
		case EventAbandon:
			f.Resume = false
			s.acknowledge(now)
		case EventStartStop, EventAcknowledge:
			s.acknowledge(now)
		}

	default:
		switch ev {
		case EventStartStop:
			s.stop(now)
		case EventPause:
			s.enterFault(now, FaultManual)
		}
	}
}

// start loads the selected profile and arms the controller.
func (s *Sequencer) start(now time.Time) {
	p := s.profiles.Select(s.sc.Solder)
	relay := NewTimeProportioner(s.cfg.RelayWindow)
	relay.Reset(now)

	s.sc.Profile = p
	s.sc.Control = ControlState{
		Setpoint: p.SoakMin,
		Input:    s.sc.Control.Input,
		Relay:    relay,
	}
	s.sc.Fault = nil
	s.sc.probeConfirmed = false

	s.ctrl.SetOutputLimits(0, relay.Limit())
	s.retune(s.cfg.Tunings.Preheat)
	s.ctrl.SetEnabled(true)
	s.guard.Reset()

	s.log.Infow("run_started", "profile", p.Label, "setpoint_c", p.SoakMin)
	s.notify(now, NoticeStart, "Run started with "+p.Label+" profile", map[string]any{
		"profile":    p.Label,
		"soak_min_c": p.SoakMin,
		"reflow_c":   p.ReflowMax,
	})

	if s.cfg.SkipProbeCheck {
		s.transition(now, StagePreheat)
		return
	}
	s.transition(now, StageProbeCheck)
}

// stop abandons the run from any stage.
func (s *Sequencer) stop(now time.Time) {
	if s.sc.Stage == StageIdle {
		return
	}
	s.log.Infow("run_stopped", "stage", s.sc.Stage)
	s.notify(now, NoticeStop, "Run stopped by operator", map[string]any{"stage": s.sc.Stage})
	s.clearRun(now)
}

func (s *Sequencer) enterFault(now time.Time, kind FaultCode) {
	if !s.sc.Stage.Running() {
		return
	}
	var left time.Duration
	switch s.sc.Stage {
	case StageSoak:
		left = timeLeft(now, s.sc.soakDeadline)
	case StageProbeCheck, StageComplete:
		left = timeLeft(now, s.sc.countdownEnd)
	}
	s.sc.Fault = &FaultState{
		Kind:               kind,
		InterruptedStage:   s.sc.Stage,
		LastGoodInput:      s.guard.LastGood(),
		AcknowledgePending: true,
		TimerLeft:          left,
	}
	s.ctrl.SetEnabled(false)
	s.setHeater(false)
	s.guard.Reset()

	s.log.Warnw("fault_entered", "kind", kind, "interrupted", s.sc.Stage)
	s.notify(now, NoticeFault, "Fault: "+kind.String(), map[string]any{
		"kind":        kind.String(),
		"interrupted": s.sc.Stage,
		"last_good_c": s.guard.LastGood(),
	})
	s.transition(now, StageFault)
}

// acknowledge commits the operator's resume choice.
func (s *Sequencer) acknowledge(now time.Time) {
	f := s.sc.Fault
	if !f.Resume {
		s.log.Infow("fault_abandoned", "interrupted", f.InterruptedStage)
		s.notify(now, NoticeStop, "Run abandoned after fault", map[string]any{"interrupted": f.InterruptedStage})
		s.clearRun(now)
		return
	}
	if !f.Manual() && f.ConsecutiveGoodSamples < s.guard.Config().RecoverySamples {
		s.log.Warnw("resume_refused", "good_samples", f.ConsecutiveGoodSamples, "needed", s.guard.Config().RecoverySamples)
		return
	}

	stage := f.InterruptedStage
	switch stage {
	case StageSoak:
		s.sc.soakDeadline = now.Add(f.TimerLeft)
	case StageProbeCheck, StageComplete:
		s.sc.countdownEnd = now.Add(f.TimerLeft)
	}
	s.sc.Control.Relay.Realign(now)
	s.sc.Fault = nil
	s.guard.Reset()
	s.ctrl.SetEnabled(true)
	s.log.Infow("run_resumed", "stage", stage)
	s.notify(now, NoticeResume, "Run resumed at "+stage.String(), nil)
	s.transition(now, stage)
}

// clearRun discards all run state and returns to idle.
func (s *Sequencer) clearRun(now time.Time) {
	s.ctrl.SetEnabled(false)
	s.setHeater(false)
	s.guard.Reset()
	s.sc.Control = ControlState{Input: s.sc.Control.Input}
	s.sc.Profile = Profile{}
	s.sc.Fault = nil
	s.sc.probeConfirmed = false
	s.sc.soakDeadline = time.Time{}
	s.sc.countdownEnd = time.Time{}
	s.sc.deferred = nil
	s.transition(now, StageIdle)
}

func (s *Sequencer) advance(now time.Time, r Reading) {
	p := s.sc.Profile
	in := s.sc.Control.Input

	switch s.sc.Stage {
	case StageProbeCheck:
		if s.sc.probeConfirmed && !now.Before(s.sc.countdownEnd) {
			s.transition(now, StagePreheat)
		}

	case StagePreheat:
		if in >= p.SoakMin && in < p.SoakMin+s.cfg.Band {
			s.retune(s.cfg.Tunings.Soak)
			s.sc.soakDeadline = now.Add(p.SoakMicroPeriod)
			s.transition(now, StageSoak)
		}

	case StageSoak:
		if in > p.SoakMax && in < p.SoakMax+s.cfg.Band {
			s.retune(s.cfg.Tunings.Reflow)
			s.sc.Control.Setpoint = p.ReflowMax
			s.transition(now, StageReflow)
			return
		}
		if !now.Before(s.sc.soakDeadline) {
			sp := s.sc.Control.Setpoint + p.SoakStep
			if limit := p.SoakMax + s.cfg.Band; sp > limit {
				sp = limit
			}
			s.sc.Control.Setpoint = sp
			s.sc.soakDeadline = now.Add(p.SoakMicroPeriod)
		}

	case StageReflow:
		if in >= p.ReflowMax && in < p.ReflowMax+s.cfg.Band {
			s.sc.Control.Setpoint = p.CoolMin
			s.transition(now, StageCool)
		}

	case StageCool:
		if in > s.cfg.SafeLow && in <= s.cfg.SafeHigh {
			s.ctrl.SetEnabled(false)
			s.sc.countdownEnd = now.Add(s.cfg.CompleteDwell)
			s.notify(now, NoticeComplete, "Reflow complete; safe to open", map[string]any{"temp_c": in})
			s.transition(now, StageComplete)
		}

	case StageComplete:
		if !now.Before(s.sc.countdownEnd) {
			s.clearRun(now)
		}

	case StageFault:
		f := s.sc.Fault
		if r.Accepted() {
			f.ConsecutiveGoodSamples++
			f.ConsecutiveBadSamples = 0
			f.LastGoodInput = r.Value
		} else {
			f.ConsecutiveBadSamples++
			f.ConsecutiveGoodSamples = 0
		}
	}
}

// drive computes the controller output and switches the relay. Outside
// the heating stages the relay is always off and the last output is kept
// for a bumpless resume.
func (s *Sequencer) drive(now time.Time) {
	c := &s.sc.Control
	if !s.sc.Stage.Heating() {
		s.setHeater(false)
		return
	}
	c.Output = s.ctrl.Compute(c.Input, c.Setpoint)
	s.setHeater(c.Relay.Drive(now, c.Output))
}

// retune changes the controller constants. Only called on stage entry.
func (s *Sequencer) retune(t Tuning) {
	s.sc.Control.Tuning = t
	s.ctrl.Configure(t.Kp, t.Ki, t.Kd, s.sc.Profile.SamplingPeriod)
}

func (s *Sequencer) setHeater(on bool) {
	if on == s.sc.heater {
		return
	}
	if s.relay != nil {
		if err := s.relay.SetRelay(on); err != nil {
			s.log.Errorw("relay_write_failed", "on", on, "err", err)
			return
		}
	}
	s.sc.heater = on
}

func (s *Sequencer) transition(now time.Time, to Stage) {
	from := s.sc.Stage
	if from == to {
		return
	}
	s.sc.Stage = to
	s.log.Infow("stage_changed", "from", from, "to", to, "setpoint_c", s.sc.Control.Setpoint)
	s.notify(now, NoticeStage, string(from)+" -> "+string(to), map[string]any{
		"from":       from,
		"to":         to,
		"setpoint_c": s.sc.Control.Setpoint,
		"temp_c":     s.sc.Control.Input,
	})
}

func (s *Sequencer) notify(now time.Time, typ, desc string, meta map[string]any) {
	if s.sink == nil {
		return
	}
	s.sink.Record(Notice{At: now, Type: typ, Stage: s.sc.Stage, Description: desc, Metadata: meta})
}

// Status returns the display snapshot at now.
func (s *Sequencer) Status(now time.Time) Status {
	st := Status{
		Stage:       s.sc.Stage,
		Temperature: s.sc.Control.Input,
		Setpoint:    s.sc.Control.Setpoint,
		Output:      s.sc.Control.Output,
		OutputLimit: s.sc.Control.Relay.Limit(),
		Heater:      s.sc.heater,
		Solder:      s.sc.Solder,
		Profile:     s.profiles.Select(s.sc.Solder).Label,
	}
	if s.sc.Stage == StageIdle {
		st.OutputLimit = 0
	}
	switch s.sc.Stage {
	case StageProbeCheck:
		if s.sc.probeConfirmed {
			st.Countdown = remaining(now, s.sc.countdownEnd)
		}
	case StageComplete:
		st.Countdown = remaining(now, s.sc.countdownEnd)
	case StageFault:
		f := s.sc.Fault
		st.Fault = f.Kind
		st.Interrupted = f.InterruptedStage
		st.Resume = f.Resume
		st.Recovered = f.Manual() || f.ConsecutiveGoodSamples >= s.guard.Config().RecoverySamples
	}
	return st
}

func remaining(now, end time.Time) time.Duration {
	if d := end.Sub(now); d > 0 {
		return (d + time.Second - 1).Truncate(time.Second)
	}
	return 0
}

func timeLeft(now, end time.Time) time.Duration {
	if d := end.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Shutdown aborts any run and switches the heater off.
func (s *Sequencer) Shutdown(now time.Time) {
	if s.sc.Stage != StageIdle {
		s.log.Warnw("run_aborted_on_shutdown", "stage", s.sc.Stage)
		s.clearRun(now)
	}
	s.sc.heater = true
	s.setHeater(false)
}
