package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "reflow_oven/docs"
	"reflow_oven/internal/config"
	"reflow_oven/internal/display"
	"reflow_oven/internal/handlers"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/pid"
	"reflow_oven/internal/reflow"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/repository/db"
	"reflow_oven/internal/server"
	"reflow_oven/internal/service"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller and the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	sqlDB, err := openDB(cfg, log)
	if err != nil {
		log.Errorw("failed to init sqlite", "err", err)
		return err
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	profiles, err := reflow.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		return err
	}

	hw, err := openHardware(cfg, log)
	if err != nil {
		log.Errorw("failed to open hardware", "driver", cfg.Hardware.Driver, "err", err)
		return err
	}
	defer func() {
		if cerr := hw.close(); cerr != nil {
			log.Warnw("failed to release hardware", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	events := service.NewEventRecorder(repos.EventRepo, service.DefaultEventBuffer, log.Named("events"))
	states := service.NewStateRecorder(repos.StateRepo, log.Named("state"))

	seq := reflow.NewSequencer(cfg.SequencerConfig(), profiles, pid.New(), hw.relay, events, log.Named("sequencer"))
	opts := []reflow.LoopOption{
		reflow.WithDisplay(display.Multi{states}),
		reflow.WithLogger(log.Named("loop")),
	}
	if hw.input != nil {
		opts = append(opts, reflow.WithInput(hw.input))
	}
	loop := reflow.NewLoop(seq, hw.sensor, &reflow.Mailbox{}, reflow.NewScheduler(cfg.Loop.RenderPeriod), opts...)

	services := service.NewService(repos, service.Deps{
		Loop:     loop,
		Events:   events,
		States:   states,
		Profiles: profiles,
		Auth:     service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
		Logger:   log,
	})
	apiHandler := handlers.NewHandler(services, log)

	if n, err := services.EventLog.Prune(cmd.Context(), cfg.DB.EventRetention); err != nil {
		log.Warnw("failed to prune old events", "retention", cfg.DB.EventRetention, "err", err)
	} else if n > 0 {
		log.Infow("old events pruned", "count", n, "retention", cfg.DB.EventRetention)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan error, 1)
	go func() { loopDone <- services.Controller.Run(ctx, cfg.Loop.Tick) }()

	srv := &server.Server{}
	serveErr := runHTTPServer(srv, cfg.Port, apiHandler, log)

	return waitForShutdown(ctx, stop, srv, serveErr, loopDone, log)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	dbPath := cfg.DB.Path
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		dbPath = "app.db"
	}
	return db.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) <-chan error {
	errc := make(chan error, 1)
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Errorw("error starting server", "err", err)
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// waitForShutdown blocks until a signal, a server failure or a loop
// failure, then stops the loop and drains the HTTP server.
func waitForShutdown(ctx context.Context, stop context.CancelFunc, srv *server.Server, serveErr <-chan error, loopDone <-chan error, log *logger.Logger) error {
	var cause error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			cause = err
		}
	case err := <-loopDone:
		cause = err
		loopDone = nil
	}

	log.Infow("shutting down server...")

	// stop the control loop; it switches the relay off on the way out
	stop()
	if loopDone != nil {
		if err := <-loopDone; err != nil && cause == nil {
			cause = err
		}
	}

	// allow in-flight requests to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
		cause = errors.Join(cause, err)
	}
	return cause
}
