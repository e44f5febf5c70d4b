package reflow

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultRenderPeriod is how often a render is requested.
const DefaultRenderPeriod = 250 * time.Millisecond

// Scheduler marks a render as due at a fixed period. The ticker side only
// sets a flag; the control loop consumes it when convenient.
type Scheduler struct {
	period time.Duration
	due    atomic.Bool
}

// NewScheduler returns a scheduler for the given period.
func NewScheduler(period time.Duration) *Scheduler {
	if period <= 0 {
		period = DefaultRenderPeriod
	}
	return &Scheduler{period: period}
}

// Period returns the render period.
func (s *Scheduler) Period() time.Duration { return s.period }

// Mark flags a render as due.
func (s *Scheduler) Mark() { s.due.Store(true) }

// ConsumeDue reports and clears the due flag.
func (s *Scheduler) ConsumeDue() bool { return s.due.Swap(false) }

// Run marks a render every period until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Mark()
		}
	}
}
