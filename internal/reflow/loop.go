package reflow

import (
	"context"
	"time"

	"reflow_oven/internal/logger"
)

// DefaultTick is the main loop period.
const DefaultTick = 100 * time.Millisecond

// Loop is the single control path: it reads the sensor, hands pending
// events to the sequencer and renders on the scheduler's cadence. Other
// goroutines talk to it only through Mailbox and the input lines.
type Loop struct {
	seq     *Sequencer
	sensor  Sensor
	mailbox *Mailbox
	input   *InputAdapter
	sched   *Scheduler
	display Display
	now     func() time.Time
	log     *logger.Logger
}

// LoopOption customises a Loop.
type LoopOption func(*Loop)

// WithClock replaces time.Now, mainly for simulation.
func WithClock(now func() time.Time) LoopOption {
	return func(l *Loop) { l.now = now }
}

// WithInput attaches debounced hardware buttons.
func WithInput(in *InputAdapter) LoopOption {
	return func(l *Loop) { l.input = in }
}

// WithDisplay attaches a display sink.
func WithDisplay(d Display) LoopOption {
	return func(l *Loop) { l.display = d }
}

// WithLogger sets the loop logger.
func WithLogger(log *logger.Logger) LoopOption {
	return func(l *Loop) { l.log = log }
}

func NewLoop(seq *Sequencer, sensor Sensor, mailbox *Mailbox, sched *Scheduler, opts ...LoopOption) *Loop {
	l := &Loop{
		seq:     seq,
		sensor:  sensor,
		mailbox: mailbox,
		sched:   sched,
		now:     time.Now,
		log:     logger.Nop(),
	}
	for _, o := range opts {
		o(l)
	}
	if l.mailbox == nil {
		l.mailbox = &Mailbox{}
	}
	if l.sched == nil {
		l.sched = NewScheduler(DefaultRenderPeriod)
	}
	return l
}

// Mailbox returns the event mailbox other goroutines post to.
func (l *Loop) Mailbox() *Mailbox { return l.mailbox }

// Sequencer returns the owned sequencer. Only touch it from the loop
// goroutine or after Run has returned.
func (l *Loop) Sequencer() *Sequencer { return l.seq }

// Tick runs one iteration and returns the resulting status.
func (l *Loop) Tick() Status {
	now := l.now()
	raw, err := l.sensor.ReadTemperature()

	events := l.mailbox.Drain()
	if l.input != nil {
		events = append(events, l.input.Poll()...)
	}
	l.seq.Step(now, raw, err, events)

	st := l.seq.Status(now)
	if l.sched.ConsumeDue() && l.display != nil {
		l.display.Render(st)
	}
	return st
}

// Run ticks every period until ctx is done. The relay is switched off on
// the way out.
func (l *Loop) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = DefaultTick
	}
	go l.sched.Run(ctx)

	t := time.NewTicker(period)
	defer t.Stop()

	l.log.Infow("control_loop_started", "tick", period, "render_period", l.sched.Period())
	for {
		select {
		case <-ctx.Done():
			l.seq.Shutdown(l.now())
			l.log.Infow("control_loop_stopped")
			return ctx.Err()
		case <-t.C:
			l.Tick()
		}
	}
}
