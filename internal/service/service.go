package service

import (
	"context"
	"time"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/reflow"
	"reflow_oven/internal/repository"
)

// Authorization manages operator accounts and their bearer tokens.
type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Oven exposes the virtual front panel. Every call is turned into a
// mailbox request; the control loop decides what it means in the current
// stage.
type Oven interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	ToggleProfile(ctx context.Context) error
	ConfirmProbe(ctx context.Context) error
	Acknowledge(ctx context.Context, p AckParams) error
}

// Monitoring exposes read-only state (stage, temperatures, fault).
type Monitoring interface {
	GetState(ctx context.Context) (models.OvenState, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.OvenEvent, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Controller runs the control loop and the recorders that persist its
// output. Stop via context cancellation in main() for graceful shutdown.
type Controller interface {
	Run(ctx context.Context, tick time.Duration) error
	Online() bool
}

// Profiles exposes the active profile table.
type Profiles interface {
	Table() reflow.ProfileTable
}

// Service aggregates all sub-services.
type Service struct {
	Oven
	Monitoring
	EventLog
	Controller
	Profiles
	Authorization
}

// Deps carries what the services need besides the repositories.
type Deps struct {
	Loop     *reflow.Loop
	Events   *EventRecorder
	States   *StateRecorder
	Profiles reflow.ProfileTable
	Auth     AuthConfig
	Logger   *logger.Logger
}

// NewService wires the repository layer and the control loop into
// concrete services.
func NewService(repos *repository.Repository, deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	ctrl := NewControllerService(deps.Loop, deps.Events, deps.States, log.Named("controller"))
	var live LiveState
	if deps.States != nil {
		live = deps.States
	}
	return &Service{
		Oven:          NewOvenService(ctrl, repos.EventRepo),
		Monitoring:    NewMonitoringService(repos.StateRepo, live),
		EventLog:      NewEventLogService(repos.EventRepo),
		Controller:    ctrl,
		Profiles:      NewProfileService(deps.Profiles),
		Authorization: NewAuthService(repos.Operators, deps.Auth),
	}
}
