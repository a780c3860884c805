package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dokzlo13/softboxd/internal/config"
)

// App is the main application container that manages all services and their lifecycle.
type App struct {
	cfg      *config.Config
	services *Services
}

// New creates a new App instance with all services initialized but not started.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		services: services,
	}, nil
}

// Services returns the service container.
func (a *App) Services() *Services {
	return a.services
}

// ResetNetworkConfig clears the persisted network configuration.
// This is useful for re-provisioning on startup with the --reset-config flag.
func (a *App) ResetNetworkConfig() error {
	return a.services.ResetNetworkConfig()
}

// Run starts every background service and blocks until ctx is cancelled or one of
// them fails. Resources are released before it returns.
func (a *App) Run(ctx context.Context) error {
	s := a.services
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.Device.Scheduler().Run(gctx) })
	g.Go(func() error { return s.Lifecycle.Run(gctx) })
	g.Go(func() error { return s.Indicator.Run(gctx) })
	g.Go(func() error { return s.Control.Run(gctx, a.cfg.ShutdownTimeout.Duration()) })
	g.Go(func() error { return s.Button.WatchSignals(gctx, syscall.SIGUSR1) })
	g.Go(func() error {
		return s.Ledger.RunRetention(gctx, a.cfg.Ledger.Retention(), a.cfg.Ledger.CleanupInterval.Duration())
	})

	// Show the power-on state before the lifecycle opens the gate.
	s.Device.Restore()

	log.Info().Str("device", a.cfg.Device.Name).Str("version", a.cfg.Device.Version).Msg("softboxd started")

	err := g.Wait()
	a.stop()
	return err
}

// stop shuts down the network surfaces and releases resources.
func (a *App) stop() {
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout.Duration())
	defer cancel()

	s := a.services
	if err := s.Portal.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("Configuration portal shutdown error")
	}
	if err := s.Mesh.Reset(); err != nil {
		log.Warn().Err(err).Msg("Mesh shutdown error")
	}
	s.Bus.Close(ctx)
	s.Close()
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
