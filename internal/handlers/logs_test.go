package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/service"
)

func TestLogsHandler_ListAndValidation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	logs := &mockEventLog{resp: []models.OvenEvent{
		{EventID: "e1", OccurredAt: now, Type: "START", Stage: "IDLE", Description: "Run started"},
		{EventID: "e2", OccurredAt: now.Add(time.Second), Type: "STAGE", Stage: "PROBE_CHECK", Description: "IDLE -> PROBE_CHECK"},
	}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 99}, EventLog: logs})

	// invalid 'from' → 400
	w := httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/logs/?from=notatime", nil)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// Valid range; the type is passed through for the service to normalize.
	q := url.Values{}
	q.Set("from", now.Format(time.RFC3339))
	q.Set("to", now.Add(2*time.Second).Format(time.RFC3339))
	q.Set("type", "stage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/logs/?"+q.Encode(), nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                `json:"count"`
		Events []models.OvenEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || out.Events[1].Stage != "PROBE_CHECK" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if !logs.lastFrom.Equal(now) || !logs.lastTo.Equal(now.Add(2*time.Second)) || logs.lastType != "stage" {
		t.Fatalf("unexpected filter: %v %v %q", logs.lastFrom, logs.lastTo, logs.lastType)
	}

	// date-only 'to' covers the whole day
	w = httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/logs/?to=2025-08-31", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if want := time.Date(2025, 8, 31, 23, 59, 59, 999999999, time.UTC); !logs.lastTo.Equal(want) {
		t.Fatalf("to = %v, want %v", logs.lastTo, want)
	}
}

func TestLogsHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrInvalidTimeRange, http.StatusBadRequest},
		{fmt.Errorf("%w: %q", service.ErrInvalidEventType, "bogus"), http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newTestRouter(&service.Service{Authorization: &mockAuth{}, EventLog: &mockEventLog{err: tc.err}})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/logs/", nil)))
		if w.Code != tc.code {
			t.Fatalf("%v: status=%d, want %d", tc.err, w.Code, tc.code)
		}
	}
}

func TestParseQueryTime(t *testing.T) {
	for _, s := range []string{"2025-08-27T15:04:05+02:00", "2025-08-27 13:04:05"} {
		got, err := parseQueryTime(s)
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		if want := time.Date(2025, 8, 27, 13, 4, 5, 0, time.UTC); !got.Equal(want) || got.Location() != time.UTC {
			t.Fatalf("%s: got %v", s, got)
		}
	}
	if _, err := parseQueryTime("27/08/2025"); err == nil {
		t.Fatalf("expected error")
	}
}
