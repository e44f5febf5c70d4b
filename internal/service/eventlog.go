package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/reflow"
	"reflow_oven/internal/repository"
)

// EventCommand marks a request made through the API.
const EventCommand = "COMMAND"

var knownEventTypes = map[string]bool{
	reflow.NoticeStart:    true,
	reflow.NoticeStop:     true,
	reflow.NoticeStage:    true,
	reflow.NoticeFault:    true,
	reflow.NoticeResume:   true,
	reflow.NoticeComplete: true,
	reflow.NoticeProfile:  true,
	reflow.NoticeError:    true,
	EventCommand:          true,
}

var (
	ErrInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	ErrInvalidEventType = errors.New("invalid event type")
)

type EventLogService struct {
	eventRepo repository.EventRepo
	now       func() time.Time
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, now: time.Now}
}

// normalizeFilter converts bounds to UTC, uppercases the type and checks
// both.
func normalizeFilter(f LogFilter) (LogFilter, error) {
	out := LogFilter{
		From: toUTC(f.From),
		To:   toUTC(f.To),
		Type: strings.ToUpper(strings.TrimSpace(f.Type)),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return LogFilter{}, ErrInvalidTimeRange
	}
	if out.Type != "" && !knownEventTypes[out.Type] {
		return LogFilter{}, fmt.Errorf("%w: %q", ErrInvalidEventType, f.Type)
	}
	return out, nil
}

// List returns events in [From, To] of the given type, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.OvenEvent, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, f.From, f.To, f.Type)
}

// Prune drops events older than retention. A non-positive retention keeps
// everything.
func (s *EventLogService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.eventRepo.DeleteBefore(ctx, s.now().Add(-retention))
}
