package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/reflow"
)

var (
	// ErrControllerOffline is returned for commands while the loop is not running.
	ErrControllerOffline = errors.New("controller offline: control loop is not running")
	ErrAlreadyRunning    = errors.New("controller already running")
)

// ControllerService owns the control loop goroutine and the recorders that
// drain its output to the database.
type ControllerService struct {
	loop   *reflow.Loop
	events *EventRecorder
	states *StateRecorder
	log    *logger.Logger

	online atomic.Bool
}

func NewControllerService(loop *reflow.Loop, events *EventRecorder, states *StateRecorder, log *logger.Logger) *ControllerService {
	if log == nil {
		log = logger.Nop()
	}
	return &ControllerService{loop: loop, events: events, states: states, log: log}
}

// Run ticks the control loop until ctx is canceled. The recorders keep
// running until the loop has switched the heater off, so the final STOP
// notice and idle state still reach the database.
func (s *ControllerService) Run(ctx context.Context, tick time.Duration) error {
	if s.loop == nil {
		return ErrControllerOffline
	}
	if !s.online.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.online.Store(false)

	rctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if s.events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.events.Run(rctx)
		}()
	}
	if s.states != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.states.Run(rctx)
		}()
	}

	err := s.loop.Run(ctx, tick)
	if s.states != nil {
		s.states.Render(s.loop.Sequencer().Status(time.Now()))
	}
	cancel()
	wg.Wait()

	if s.events != nil {
		if n := s.events.Dropped(); n > 0 {
			s.log.Warnw("events_dropped", "count", n)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Online reports whether the loop is running.
func (s *ControllerService) Online() bool { return s.online.Load() }

// Post hands a request to the loop's mailbox.
func (s *ControllerService) Post(ev reflow.Event) error {
	if !s.Online() {
		return ErrControllerOffline
	}
	s.loop.Mailbox().Post(ev)
	return nil
}
