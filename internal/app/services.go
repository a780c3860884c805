package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/button"
	"github.com/dokzlo13/softboxd/internal/command"
	"github.com/dokzlo13/softboxd/internal/config"
	"github.com/dokzlo13/softboxd/internal/control"
	"github.com/dokzlo13/softboxd/internal/db"
	"github.com/dokzlo13/softboxd/internal/device"
	"github.com/dokzlo13/softboxd/internal/eventbus"
	"github.com/dokzlo13/softboxd/internal/indicator"
	"github.com/dokzlo13/softboxd/internal/kv"
	"github.com/dokzlo13/softboxd/internal/ledger"
	"github.com/dokzlo13/softboxd/internal/lifecycle"
	"github.com/dokzlo13/softboxd/internal/mesh"
	"github.com/dokzlo13/softboxd/internal/netconfig"
	"github.com/dokzlo13/softboxd/internal/portal"
	"github.com/dokzlo13/softboxd/internal/strip"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB        *db.DB
	Ledger    *ledger.Ledger
	Bus       *eventbus.Bus
	NetConfig *netconfig.Store

	// Output path
	Strip      *strip.Adapter
	Device     *device.Controller
	Normalizer *command.Normalizer

	// Networking
	Relay   *mesh.Relay
	Mesh    *mesh.Network
	Portal  *portal.Server
	Control *control.Server

	Lifecycle *lifecycle.Machine
	Indicator *indicator.Indicator
	Button    *button.Button
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Ledger = ledger.New(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	s.NetConfig = netconfig.NewStore(kv.Open(database.DB, netconfig.BucketName()))

	netCfg, err := s.NetConfig.Load()
	if err != nil {
		s.Close()
		return nil, err
	}

	driver, err := openDriver(cfg.Strip)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Strip = strip.NewAdapter(driver)

	seed := cfg.Animation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s.Device = device.NewController(s.Strip, device.Options{
		Name:    cfg.Device.Name,
		Version: cfg.Device.Version,
		Seed:    seed,
		Initial: device.DefaultState(),
	})

	s.Relay = mesh.NewRelay(netCfg.DeviceID, s.Device, cfg.Mesh.RelayRateLimit, cfg.Mesh.RelayBurst)
	s.Mesh = mesh.NewNetwork(mesh.Config{
		Port:      cfg.Mesh.Port,
		Broadcast: cfg.Mesh.Broadcast,
	}, s.Relay)
	s.Normalizer = command.NewNormalizer(s.Device, s.Relay)

	s.Button = button.New(s.Bus, cfg.Button.Debounce.Duration())
	s.Control = control.NewServer(control.Config{
		Host:      cfg.Control.Host,
		Port:      cfg.Control.Port,
		RateLimit: cfg.Control.RateLimitRPS,
		Burst:     cfg.Control.Burst,
	}, s.Device, s.Normalizer, s.Button)
	s.Portal = portal.NewServer(cfg.Portal.Host, cfg.Portal.Port, cfg.Device.Name, cfg.Device.Version)

	lc := cfg.Lifecycle
	s.Lifecycle = lifecycle.New(s.Mesh, s.Portal, s.NetConfig, s.Device, lifecycle.Timing{
		ConfigTimeout:     lc.ConfigTimeout.Duration(),
		ConfigPoll:        lc.ConfigPoll.Duration(),
		ScanTimeout:       lc.ScanTimeout.Duration(),
		Backoff:           lc.Backoff.Duration(),
		ConnectivityCheck: lc.ConnectivityCheck.Duration(),
		LoopInterval:      lc.LoopInterval.Duration(),
		MaxRetries:        lc.MaxRetries,
	})
	s.Indicator = indicator.New(s.Lifecycle.State, indicator.LogOutput{}, cfg.Indicator.Refresh.Duration())

	s.wire()

	log.Info().
		Uint8("device_id", netCfg.DeviceID).
		Bool("configured", netCfg.IsConfigured).
		Str("strip", cfg.Strip.Driver).
		Msg("Services initialized")

	return s, nil
}

// wire connects the notification paths between services.
func (s *Services) wire() {
	s.Device.Subscribe(s.Control.Hub().Notify)
	s.Device.Subscribe(func(snap device.Snapshot, src device.Source) {
		s.Bus.Publish(eventbus.Event{
			Type:    eventbus.EventTypeStatus,
			Source:  string(src),
			Payload: snap.State,
		})
	})

	s.Bus.Subscribe(eventbus.EventTypeButton, button.Handler(s.Device, s.Relay))

	rec := newRecorder(s.Ledger)
	s.Bus.Subscribe(eventbus.EventTypeButton, rec.buttonPressed)
	s.Bus.Subscribe(eventbus.EventTypeStatus, rec.stateCommitted)
	s.Bus.Subscribe(eventbus.EventTypeLifecycle, rec.lifecycleTransition)

	s.Lifecycle.OnTransition(func(tr lifecycle.Transition) {
		s.Bus.Publish(eventbus.Event{
			Type:    eventbus.EventTypeLifecycle,
			Source:  string(device.SourceLifecycle),
			Payload: tr,
		})
	})
}

func openDriver(cfg config.StripConfig) (strip.Driver, error) {
	switch cfg.Driver {
	case "none":
		return strip.NewMemoryDriver(1), nil
	case "log":
		return strip.NewLogDriver(), nil
	case "serial":
		d, err := strip.OpenSerial(cfg.Device, cfg.Baud)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown strip driver %q", cfg.Driver)
	}
}

// ResetNetworkConfig clears the configured flag so the next boot enters
// configuration mode.
func (s *Services) ResetNetworkConfig() error {
	return s.NetConfig.Unconfigure()
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Strip != nil {
		if err := s.Strip.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close strip driver")
		}
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
