package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/reflow"
	"reflow_oven/internal/repository"
)

const (
	DefaultEventBuffer = 64
	writeTimeout       = 2 * time.Second
)

// EventRecorder is the sequencer's event sink. Record never blocks: notices
// are queued and a goroutine appends them to the event log. When the queue
// is full the notice is dropped and counted.
type EventRecorder struct {
	repo    repository.EventRepo
	queue   chan reflow.Notice
	dropped atomic.Uint64
	log     *logger.Logger
}

func NewEventRecorder(repo repository.EventRepo, size int, log *logger.Logger) *EventRecorder {
	if size <= 0 {
		size = DefaultEventBuffer
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EventRecorder{repo: repo, queue: make(chan reflow.Notice, size), log: log}
}

// Record implements reflow.EventSink.
func (r *EventRecorder) Record(n reflow.Notice) {
	select {
	case r.queue <- n:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many notices were lost to a full queue.
func (r *EventRecorder) Dropped() uint64 { return r.dropped.Load() }

// Run appends queued notices until ctx is canceled, then flushes what is
// left.
func (r *EventRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case n := <-r.queue:
					r.write(n)
				default:
					return
				}
			}
		case n := <-r.queue:
			r.write(n)
		}
	}
}

func (r *EventRecorder) write(n reflow.Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.repo.Append(ctx, toEvent(n))
	if err != nil {
		r.log.Errorw("event_append_failed", "type", n.Type, "err", err)
	}
}

func toEvent(n reflow.Notice) models.OvenEvent {
	ev := models.OvenEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  n.At.UTC(),
		Type:        n.Type,
		Stage:       n.Stage.String(),
		Description: n.Description,
	}
	if len(n.Metadata) > 0 {
		ev.Metadata = n.Metadata
	}
	return ev
}

// StateRecorder is a display sink that persists the latest status. Render
// only overwrites a one-slot buffer; a goroutine saves whatever is newest
// when it gets to it, so slow writes skip frames instead of stalling the
// loop.
type StateRecorder struct {
	repo repository.StateRepo
	log  *logger.Logger

	mu     sync.RWMutex
	latest models.OvenState
	have   bool
	wake   chan struct{}
}

func NewStateRecorder(repo repository.StateRepo, log *logger.Logger) *StateRecorder {
	if log == nil {
		log = logger.Nop()
	}
	return &StateRecorder{repo: repo, log: log, wake: make(chan struct{}, 1)}
}

// Render implements reflow.Display.
func (r *StateRecorder) Render(st reflow.Status) {
	snap := toState(st, time.Now().UTC())

	r.mu.Lock()
	r.latest = snap
	r.have = true
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Latest returns the most recent snapshot, if any.
func (r *StateRecorder) Latest() (models.OvenState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.have
}

// Run saves snapshots until ctx is canceled; the newest one is saved once
// more on the way out.
func (r *StateRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.save()
			return
		case <-r.wake:
			r.save()
		}
	}
}

func (r *StateRecorder) save() {
	snap, ok := r.Latest()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.Save(ctx, snap); err != nil {
		r.log.Errorw("state_save_failed", "stage", snap.Stage, "err", err)
	}
}

func toState(st reflow.Status, now time.Time) models.OvenState {
	s := models.OvenState{
		ID:               1,
		Stage:            st.Stage.String(),
		CurrentTempC:     st.Temperature,
		SetpointC:        st.Setpoint,
		Output:           st.Output,
		HeaterOn:         st.Heater,
		Profile:          st.Profile,
		CountdownSeconds: int(st.Countdown / time.Second),
		IsRunning:        st.Stage != reflow.StageIdle,
		UpdatedAt:        now,
	}
	if st.Stage == reflow.StageFault {
		s.Fault = st.Fault.String()
		s.InterruptedStage = st.Interrupted.String()
		s.Resume = st.Resume
		if st.Fault != reflow.FaultManual {
			s.ErrorCodes = []string{st.Fault.String()}
		}
	}
	return s
}
