package service

import (
	"context"
	"sync"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/reflow"
)

// memEventRepo is an in-memory repository.EventRepo.
type memEventRepo struct {
	mu        sync.Mutex
	appendErr error
	listErr   error
	events    []models.OvenEvent

	gotFrom, gotTo time.Time
	gotType        string
}

func (r *memEventRepo) Append(_ context.Context, e models.OvenEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.events = append(r.events, e)
	return nil
}

func (r *memEventRepo) List(_ context.Context, from, to time.Time, typ string) ([]models.OvenEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gotFrom, r.gotTo, r.gotType = from, to, typ
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.OvenEvent
	for _, e := range r.events {
		if typ == "" || e.Type == typ {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	var n int64
	for _, e := range r.events {
		if e.OccurredAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return n, nil
}

func (r *memEventRepo) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// memStateRepo is an in-memory repository.StateRepo.
type memStateRepo struct {
	mu      sync.Mutex
	loadErr error
	saveErr error
	state   models.OvenState
	saves   []models.OvenState
}

func (r *memStateRepo) Save(_ context.Context, s models.OvenState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.state = s
	r.saves = append(r.saves, s)
	return nil
}

func (r *memStateRepo) Load(context.Context) (models.OvenState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.loadErr
}

func (r *memStateRepo) last() (models.OvenState, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, len(r.saves)
}

// fakePoster records mailbox posts.
type fakePoster struct {
	err    error
	posted []reflow.Event
}

func (p *fakePoster) Post(ev reflow.Event) error {
	if p.err != nil {
		return p.err
	}
	p.posted = append(p.posted, ev)
	return nil
}
