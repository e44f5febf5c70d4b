package service

import (
	"context"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/reflow"
	"reflow_oven/internal/repository"
)

const defaultAmbientTempC = 25.0

// LiveState is an in-memory source of the newest snapshot.
type LiveState interface {
	Latest() (models.OvenState, bool)
}

type MonitoringService struct {
	stateRepo repository.StateRepo
	live      LiveState
}

// NewMonitoringService reads from live when it has a snapshot and falls
// back to the persisted row. live may be nil.
func NewMonitoringService(stateRepo repository.StateRepo, live LiveState) *MonitoringService {
	return &MonitoringService{stateRepo: stateRepo, live: live}
}

// GetState returns the latest oven state.
// If nothing was recorded yet, returns a baseline IDLE snapshot.
func (s *MonitoringService) GetState(ctx context.Context) (models.OvenState, error) {
	if s.live != nil {
		if st, ok := s.live.Latest(); ok {
			return st, nil
		}
	}
	state, err := s.stateRepo.Load(ctx)
	if err != nil {
		return models.OvenState{}, err
	}
	if state.ID == 0 {
		return s.baselineState(), nil
	}
	state.UpdatedAt = toUTC(state.UpdatedAt)
	return state, nil
}

// baselineState returns a sensible default snapshot for an uninitialized DB.
func (s *MonitoringService) baselineState() models.OvenState {
	return models.OvenState{
		ID:           1, // DB schema enforces single-row state with id=1
		Stage:        reflow.StageIdle.String(),
		CurrentTempC: defaultAmbientTempC,
		Profile:      reflow.Leaded.String(),
		UpdatedAt:    time.Now().UTC(),
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
