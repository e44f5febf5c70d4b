package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"reflow_oven/internal/models"
	"reflow_oven/internal/repository"
)

var stateCols = []string{
	"id", "stage", "temp_c", "setpoint_c", "output", "heater", "profile",
	"fault", "interrupted", "resume", "countdown_s", "errors", "running", "updated_at",
}

const selectStatePrefix = "SELECT id, stage, temp_c, setpoint_c, output, heater, profile, fault, interrupted, resume, countdown_s, errors, running, updated_at"

func TestStateSQLite_Save_SetsUTCAndMarshalsErrors_WhenTimeZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	// Zero UpdatedAt should be replaced by time.Now().UTC().
	state := models.OvenState{
		Stage:        "SOAK",
		CurrentTempC: 151.4,
		SetpointC:    155,
		Output:       800,
		HeaterOn:     true,
		Profile:      "leaded",
		ErrorCodes:   []string{"E1", "E2"},
		IsRunning:    true,
	}

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO oven_state")).
		WithArgs(
			1, // single row
			state.Stage,
			state.CurrentTempC,
			state.SetpointC,
			state.Output,
			state.HeaterOn,
			state.Profile,
			"",
			"",
			false,
			0,
			`["E1","E2"]`,
			state.IsRunning,
			isUTCRecent,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_FaultFieldsAndUTCConversion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	original := time.Date(2023, 10, 5, 12, 34, 56, 0, time.FixedZone("UTC+9", 9*3600))
	expectedUTC := original.UTC()

	state := models.OvenState{
		Stage:            "FAULT",
		CurrentTempC:     201,
		SetpointC:        225,
		Profile:          "lead-free",
		Fault:            "OPEN_CIRCUIT",
		InterruptedStage: "REFLOW",
		Resume:           true,
		ErrorCodes:       []string{},
		IsRunning:        true,
		UpdatedAt:        original,
	}

	isExactUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(expectedUTC) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO oven_state")).
		WithArgs(
			1,
			"FAULT",
			201.0,
			225.0,
			0.0,
			false,
			"lead-free",
			"OPEN_CIRCUIT",
			"REFLOW",
			true,
			0,
			"[]",
			true,
			isExactUTC,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO oven_state")).
		WillReturnError(errors.New("db down"))

	if err := repo.Save(context.Background(), models.OvenState{Stage: "IDLE"}); err == nil {
		t.Fatalf("Save() expected error, got nil")
	}
}

func TestStateSQLite_Load_NoRowsReturnsZeroValueAndNilError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectStatePrefix)).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	var zero models.OvenState
	if !reflect.DeepEqual(got, zero) {
		t.Fatalf("Load() expected zero state, got: %+v", got)
	}
}

func TestStateSQLite_Load_HappyPath_UnmarshalsAndUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	nonUTC := time.Date(2024, 2, 1, 8, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))

	rows := sqlmock.NewRows(stateCols).
		AddRow(
			1,
			"FAULT",
			188.5,
			225.0,
			1200.0,
			false,
			"leaded",
			"SHORT_TO_GROUND",
			"REFLOW",
			false,
			0,
			`["OVER_TEMPERATURE"]`,
			true,
			nonUTC, // Load should convert to UTC
		)

	mock.ExpectQuery(regexp.QuoteMeta(selectStatePrefix)).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if got.ID != 1 ||
		got.Stage != "FAULT" ||
		got.CurrentTempC != 188.5 ||
		got.SetpointC != 225 ||
		got.Output != 1200 ||
		got.Fault != "SHORT_TO_GROUND" ||
		got.InterruptedStage != "REFLOW" ||
		!got.IsRunning {
		t.Fatalf("Load() unexpected fields: %+v", got)
	}

	if got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("Load() UpdatedAt not UTC: %v (%v)", got.UpdatedAt, got.UpdatedAt.Location())
	}
	if want := []string{"OVER_TEMPERATURE"}; !equalStringSlices(got.ErrorCodes, want) {
		t.Fatalf("Load() ErrorCodes mismatch: got=%v want=%v", got.ErrorCodes, want)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Load_NullFaultColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	rows := sqlmock.NewRows(stateCols).
		AddRow(1, "IDLE", 24.0, 0.0, 0.0, false, "leaded", nil, nil, false, 0, nil, false, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(selectStatePrefix)).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got.Fault != "" || got.InterruptedStage != "" || got.ErrorCodes != nil {
		t.Fatalf("Load() expected empty fault fields, got: %+v", got)
	}
}

func TestStateSQLite_Load_InvalidErrorsJSON_ReturnsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	rows := sqlmock.NewRows(stateCols).
		AddRow(1, "IDLE", 24.0, 0.0, 0.0, false, "leaded", nil, nil, false, 0, `{not: "an array"}`, false, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(selectStatePrefix)).
		WithArgs(1).
		WillReturnRows(rows)

	_, err = repo.Load(context.Background())
	if err == nil {
		t.Fatalf("Load() expected error due to invalid errors JSON, got nil")
	}
}

// Helpers

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
