package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"reflow_oven/internal/models"
	"reflow_oven/internal/reflow"
	"reflow_oven/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastGenUsername    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

// mockOven records which panel action was invoked.
type mockOven struct {
	err       error
	calls     []string
	lastAck   service.AckParams
	operators []int
}

func (m *mockOven) record(ctx context.Context, name string) error {
	m.calls = append(m.calls, name)
	id, _ := service.OperatorFrom(ctx)
	m.operators = append(m.operators, id)
	return m.err
}

func (m *mockOven) Start(ctx context.Context) error         { return m.record(ctx, "start") }
func (m *mockOven) Stop(ctx context.Context) error          { return m.record(ctx, "stop") }
func (m *mockOven) Pause(ctx context.Context) error         { return m.record(ctx, "pause") }
func (m *mockOven) ToggleProfile(ctx context.Context) error { return m.record(ctx, "toggle_profile") }
func (m *mockOven) ConfirmProbe(ctx context.Context) error  { return m.record(ctx, "confirm_probe") }
func (m *mockOven) Acknowledge(ctx context.Context, p service.AckParams) error {
	m.lastAck = p
	return m.record(ctx, "acknowledge")
}

type mockMonitoring struct {
	mu    sync.Mutex
	state models.OvenState
	err   error
}

func (m *mockMonitoring) GetState(context.Context) (models.OvenState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.err
}

func (m *mockMonitoring) set(st models.OvenState) {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
}

type mockEventLog struct {
	resp     []models.OvenEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.OvenEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

func (m *mockEventLog) Prune(context.Context, time.Duration) (int64, error) { return 0, nil }

type mockController struct{ online bool }

func (m mockController) Run(context.Context, time.Duration) error { return nil }
func (m mockController) Online() bool                             { return m.online }

type mockProfiles struct{ table reflow.ProfileTable }

func (m mockProfiles) Table() reflow.ProfileTable { return m.table }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHandler(s, nil).InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func withAuth(req *http.Request) *http.Request {
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
