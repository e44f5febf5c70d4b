package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"reflow_oven/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	ovenStateRowID = 1

	insertOrUpdateStateSQL = `
		INSERT INTO oven_state (id, stage, temp_c, setpoint_c, output, heater, profile, fault, interrupted, resume, countdown_s, errors, running, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage=excluded.stage,
			temp_c=excluded.temp_c,
			setpoint_c=excluded.setpoint_c,
			output=excluded.output,
			heater=excluded.heater,
			profile=excluded.profile,
			fault=excluded.fault,
			interrupted=excluded.interrupted,
			resume=excluded.resume,
			countdown_s=excluded.countdown_s,
			errors=excluded.errors,
			running=excluded.running,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT id, stage, temp_c, setpoint_c, output, heater, profile, fault, interrupted, resume, countdown_s, errors, running, updated_at
		FROM oven_state WHERE id=?
	`
)

// marshalErrorCodes converts the slice to a JSON string.
func marshalErrorCodes(codes []string) (string, error) {
	b, err := json.Marshal(codes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalErrorCodes parses a JSON string into a slice.
func unmarshalErrorCodes(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var codes []string
	if err := json.Unmarshal([]byte(s), &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// Save upserts the single oven_state row.
func (r *StateSQLite) Save(ctx context.Context, state models.OvenState) error {
	errorsJSONStr, err := marshalErrorCodes(state.ErrorCodes)
	if err != nil {
		return err
	}

	tsUTC := state.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	_, err = r.db.ExecContext(ctx, insertOrUpdateStateSQL,
		ovenStateRowID,
		state.Stage,
		state.CurrentTempC,
		state.SetpointC,
		state.Output,
		state.HeaterOn,
		state.Profile,
		state.Fault,
		state.InterruptedStage,
		state.Resume,
		state.CountdownSeconds,
		errorsJSONStr,
		state.IsRunning,
		tsUTC,
	)
	return err
}

// Load fetches the oven_state row. An empty table yields the zero state.
func (r *StateSQLite) Load(ctx context.Context) (models.OvenState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, ovenStateRowID)

	var s models.OvenState
	var fault, interrupted, errorsJSONStr sql.NullString
	if err := row.Scan(
		&s.ID,
		&s.Stage,
		&s.CurrentTempC,
		&s.SetpointC,
		&s.Output,
		&s.HeaterOn,
		&s.Profile,
		&fault,
		&interrupted,
		&s.Resume,
		&s.CountdownSeconds,
		&errorsJSONStr,
		&s.IsRunning,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OvenState{}, nil
		}
		return models.OvenState{}, err
	}

	codes, err := unmarshalErrorCodes(errorsJSONStr.String)
	if err != nil {
		return models.OvenState{}, err
	}
	s.Fault = fault.String
	s.InterruptedStage = interrupted.String
	s.ErrorCodes = codes
	s.UpdatedAt = s.UpdatedAt.UTC()

	return s, nil
}
