package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reflow_oven/internal/models"
	"reflow_oven/internal/reflow"
	"reflow_oven/internal/repository"
)

// Poster accepts operator requests for the control loop.
type Poster interface {
	Post(ev reflow.Event) error
}

// OvenService is the remote front panel.
type OvenService struct {
	ctrl      Poster
	eventRepo repository.EventRepo
}

func NewOvenService(ctrl Poster, eventRepo repository.EventRepo) *OvenService {
	return &OvenService{ctrl: ctrl, eventRepo: eventRepo}
}

// Start requests a run with the selected profile. Ignored by the loop
// unless the oven is idle.
func (s *OvenService) Start(ctx context.Context) error {
	return s.command(ctx, reflow.EventStart, "Start requested")
}

// Stop abandons the current run from any stage.
func (s *OvenService) Stop(ctx context.Context) error {
	return s.command(ctx, reflow.EventStop, "Stop requested")
}

// Pause interrupts a run; the oven waits in FAULT for an acknowledge.
func (s *OvenService) Pause(ctx context.Context) error {
	return s.command(ctx, reflow.EventPause, "Pause requested")
}

// ToggleProfile flips leaded/lead-free while idle, or the resume choice
// while in FAULT.
func (s *OvenService) ToggleProfile(ctx context.Context) error {
	return s.command(ctx, reflow.EventSolderToggle, "Profile toggle requested")
}

// ConfirmProbe confirms the thermocouple is placed and starts the countdown.
func (s *OvenService) ConfirmProbe(ctx context.Context) error {
	return s.command(ctx, reflow.EventConfirmProbe, "Probe placement confirmed")
}

// Acknowledge answers the fault prompt: resume the interrupted stage or
// abandon the run. Outside FAULT the controller ignores both.
func (s *OvenService) Acknowledge(ctx context.Context, p AckParams) error {
	if p.Resume {
		return s.command(ctx, reflow.EventResume, "Resume requested")
	}
	return s.command(ctx, reflow.EventAbandon, "Abandon requested")
}

func (s *OvenService) command(ctx context.Context, ev reflow.Event, desc string) error {
	if err := s.ctrl.Post(ev); err != nil {
		return err
	}
	meta := map[string]any{"event": ev.String(), "source": "api"}
	if id, ok := OperatorFrom(ctx); ok {
		meta["operator_id"] = id
	}
	return s.eventRepo.Append(ctx, models.OvenEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        EventCommand,
		Description: desc,
		Metadata:    meta,
	})
}
