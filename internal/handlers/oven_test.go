package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reflow_oven/internal/models"
	"reflow_oven/internal/reflow"
	"reflow_oven/internal/service"
)

func newOvenRouter(oven *mockOven, mon *mockMonitoring) http.Handler {
	return newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		Oven:          oven,
		Monitoring:    mon,
		Profiles:      mockProfiles{table: reflow.DefaultProfiles()},
		Controller:    mockController{online: true},
	})
}

func TestOvenHandlers_Commands(t *testing.T) {
	mon := &mockMonitoring{state: models.OvenState{ID: 1, Stage: "IDLE", CurrentTempC: 24}}

	cases := []struct {
		path string
		body string
		want string
	}{
		{"/api/v1/oven/start", "", "start"},
		{"/api/v1/oven/stop", "", "stop"},
		{"/api/v1/oven/pause", "", "pause"},
		{"/api/v1/oven/profile/toggle", "", "toggle_profile"},
		{"/api/v1/oven/probe/confirm", "", "confirm_probe"},
		{"/api/v1/oven/ack", `{"resume":true}`, "acknowledge"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			oven := &mockOven{}
			r := newOvenRouter(oven, mon)

			w := httptest.NewRecorder()
			req := withAuth(httptest.NewRequest(http.MethodPost, tc.path, bytes.NewBufferString(tc.body)))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
			}
			if len(oven.calls) != 1 || oven.calls[0] != tc.want {
				t.Fatalf("calls=%v, want [%s]", oven.calls, tc.want)
			}
			if oven.operators[0] != 7 {
				t.Fatalf("command not attributed to operator 7: %v", oven.operators)
			}
			var resp struct {
				Status  string           `json:"status"`
				Command string           `json:"command"`
				State   models.OvenState `json:"state"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Status != statusRequested || resp.Command != tc.want || resp.State.Stage != "IDLE" {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestOvenHandlers_RequireAuth(t *testing.T) {
	r := newTestRouter(&service.Service{
		Authorization: &mockAuth{parseErr: errors.New("expired")},
		Oven:          &mockOven{},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/oven/start", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}
}

func TestOvenHandlers_Ack(t *testing.T) {
	oven := &mockOven{}
	r := newOvenRouter(oven, &mockMonitoring{})

	w := httptest.NewRecorder()
	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/v1/oven/ack", bytes.NewBufferString(`{"resume":false}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || oven.lastAck.Resume {
		t.Fatalf("abandon: status=%d ack=%+v", w.Code, oven.lastAck)
	}

	// resume is required so an empty body is not read as "abandon"
	w = httptest.NewRecorder()
	req = withAuth(httptest.NewRequest(http.MethodPost, "/api/v1/oven/ack", bytes.NewBufferString(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing resume, got %d", w.Code)
	}
	if len(oven.calls) != 1 {
		t.Fatalf("expected a single Acknowledge call, got %v", oven.calls)
	}
}

func TestOvenHandlers_CommandErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"controller offline", service.ErrControllerOffline, http.StatusConflict},
		{"event log down", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newOvenRouter(&mockOven{err: tc.err}, &mockMonitoring{})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodPost, "/api/v1/oven/start", nil)))
			if w.Code != tc.code {
				t.Fatalf("status=%d, want %d", w.Code, tc.code)
			}
		})
	}
}

func TestOvenHandlers_StateAndProfiles(t *testing.T) {
	mon := &mockMonitoring{state: models.OvenState{ID: 1, Stage: "SOAK", CurrentTempC: 150, SetpointC: 153}}
	r := newOvenRouter(&mockOven{}, mon)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/oven/state", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("state status=%d", w.Code)
	}
	var st models.OvenState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st.Stage != "SOAK" || st.SetpointC != 153 {
		t.Fatalf("unexpected state: %+v", st)
	}

	mon.err = errors.New("db down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/oven/state", nil)))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/oven/profiles", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("profiles status=%d", w.Code)
	}
	var profiles map[string]ProfileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &profiles); err != nil {
		t.Fatalf("unmarshal profiles: %v", err)
	}
	if profiles["leaded"].ReflowMaxC != 225 || profiles["lead_free"].SoakMinC != 150 {
		t.Fatalf("unexpected profiles: %+v", profiles)
	}
	if profiles["leaded"].SoakMicroPeriodSeconds != 10 {
		t.Fatalf("durations should be seconds: %+v", profiles["leaded"])
	}
}

func TestHealth(t *testing.T) {
	for _, online := range []bool{true, false} {
		r := newTestRouter(&service.Service{Controller: mockController{online: online}})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		var m map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &m)
		want := "offline"
		if online {
			want = "online"
		}
		if w.Code != http.StatusOK || m["status"] != statusOK || m["controller"] != want {
			t.Fatalf("online=%v: status=%d body=%v", online, w.Code, m)
		}
	}
}
