package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/animation"
	"github.com/dokzlo13/softboxd/internal/color"
	"github.com/dokzlo13/softboxd/internal/device"
	"github.com/dokzlo13/softboxd/internal/netconfig"
)

// Network is the mesh transport as seen by the supervisor.
type Network interface {
	SetNetworkName(name string)
	Init(ctx context.Context) error
	Scan(ctx context.Context, timeout time.Duration) (bool, error)
	Join(ctx context.Context) error
	Create(ctx context.Context) error
	Connected() bool
	Reset() error
}

// Portal is the captive configuration server.
type Portal interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Submitted returns the network name once a form was accepted.
	Submitted() (string, bool)
}

// ConfigStore persists the network configuration.
type ConfigStore interface {
	Load() (netconfig.Config, error)
	Save(c netconfig.Config) error
	Unconfigure() error
}

// Output is the device side gated by the lifecycle.
type Output interface {
	SetGate(open bool)
	ApplyDelta(d device.Delta, src device.Source) device.Result
}

// Timing holds the supervisor's durations and retry policy.
type Timing struct {
	ConfigTimeout     time.Duration
	ConfigPoll        time.Duration
	ScanTimeout       time.Duration
	Backoff           time.Duration
	ConnectivityCheck time.Duration
	LoopInterval      time.Duration
	MaxRetries        int
}

// DefaultTiming returns the stock durations.
func DefaultTiming() Timing {
	return Timing{
		ConfigTimeout:     5 * time.Minute,
		ConfigPoll:        time.Second,
		ScanTimeout:       30 * time.Second,
		Backoff:           5 * time.Second,
		ConnectivityCheck: 100 * time.Millisecond,
		LoopInterval:      100 * time.Millisecond,
		MaxRetries:        3,
	}
}

// Transition describes one state change.
type Transition struct {
	From    State
	To      State
	Retries int
	At      time.Time
}

// Observer is notified after every transition.
type Observer func(Transition)

// Machine is the lifecycle supervisor. Step runs the current phase to completion;
// Run calls Step until the context ends.
type Machine struct {
	network Network
	portal  Portal
	store   ConfigStore
	output  Output
	timing  Timing

	// step serializes phases
	step sync.Mutex

	mu        sync.RWMutex
	state     State
	retries   int
	defaulted bool
	observers []Observer

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a machine in StateInit.
func New(network Network, portal Portal, store ConfigStore, output Output, timing Timing) *Machine {
	return &Machine{
		network: network,
		portal:  portal,
		store:   store,
		output:  output,
		timing:  timing,
		state:   StateInit,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OnTransition registers an observer.
func (m *Machine) OnTransition(fn Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Retries returns the error-recovery counter.
func (m *Machine) Retries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retries
}

func (m *Machine) transition(to State) {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return
	}
	m.state = to
	t := Transition{From: from, To: to, Retries: m.retries, At: m.now()}
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	log.Info().Str("from", from.String()).Str("to", to.String()).Msg("State transition")
	for _, fn := range observers {
		fn(t)
	}
}

// Run drives the machine until ctx is done.
func (m *Machine) Run(ctx context.Context) error {
	log.Info().Str("state", m.State().String()).Msg("Lifecycle started")
	for {
		if err := m.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info().Msg("Lifecycle stopping")
				return nil
			}
			return err
		}
		if err := m.sleep(ctx, m.timing.LoopInterval); err != nil {
			log.Info().Msg("Lifecycle stopping")
			return nil
		}
	}
}

// Step executes the handler of the current state once. It returns an error only
// when ctx ends mid-phase.
func (m *Machine) Step(ctx context.Context) error {
	m.step.Lock()
	defer m.step.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	switch s := m.State(); s {
	case StateInit:
		return m.handleInit(ctx)
	case StateConfigMode:
		return m.handleConfigMode(ctx)
	case StateNetworkScan:
		return m.handleNetworkScan(ctx)
	case StateMeshClient:
		return m.handleJoin(ctx, false)
	case StateMeshMaster:
		return m.handleJoin(ctx, true)
	case StateOperational:
		return m.handleOperational(ctx)
	case StateConnectionLost:
		return m.handleConnectionLost(ctx)
	case StateErrorRecovery:
		return m.handleErrorRecovery(ctx)
	default:
		log.Error().Int("state", int(s)).Msg("Invalid lifecycle state")
		m.transition(StateErrorRecovery)
		return nil
	}
}

func (m *Machine) handleInit(ctx context.Context) error {
	cfg, err := m.store.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load network config")
		m.transition(StateErrorRecovery)
		return nil
	}

	if cfg.Valid() {
		m.network.SetNetworkName(cfg.NetworkName)
		m.transition(StateNetworkScan)
	} else {
		m.transition(StateConfigMode)
	}
	return nil
}

func (m *Machine) handleConfigMode(ctx context.Context) error {
	log.Info().Dur("timeout", m.timing.ConfigTimeout).Msg("Entering configuration mode")

	if err := m.portal.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to start configuration portal")
		m.transition(StateErrorRecovery)
		return nil
	}
	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := m.portal.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to stop configuration portal")
		}
	}

	deadline := m.now().Add(m.timing.ConfigTimeout)
	for {
		if name, ok := m.portal.Submitted(); ok {
			if err := m.saveNetwork(name); err != nil {
				log.Error().Err(err).Msg("Failed to persist configuration")
				stop()
				m.transition(StateErrorRecovery)
				return nil
			}
			stop()
			m.network.SetNetworkName(name)
			m.transition(StateNetworkScan)
			return nil
		}

		if !m.now().Before(deadline) {
			log.Warn().Msg("Configuration timeout")
			stop()
			m.transition(StateErrorRecovery)
			return nil
		}

		if err := m.sleep(ctx, m.timing.ConfigPoll); err != nil {
			stop()
			return err
		}
	}
}

func (m *Machine) saveNetwork(name string) error {
	cfg, err := m.store.Load()
	if err != nil {
		return err
	}
	cfg.NetworkName = name
	cfg.IsConfigured = true
	return m.store.Save(cfg)
}

func (m *Machine) handleNetworkScan(ctx context.Context) error {
	if err := m.network.Init(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to initialize mesh network")
		m.transition(StateErrorRecovery)
		return nil
	}

	found, err := m.network.Scan(ctx, m.timing.ScanTimeout)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		log.Warn().Err(err).Msg("Mesh scan failed")
	}

	if found {
		log.Info().Msg("Found existing mesh network")
		m.transition(StateMeshClient)
	} else {
		log.Info().Msg("No existing network found, becoming master")
		m.transition(StateMeshMaster)
	}
	return nil
}

func (m *Machine) handleJoin(ctx context.Context, master bool) error {
	var err error
	if master {
		err = m.network.Create(ctx)
	} else {
		err = m.network.Join(ctx)
	}
	if err != nil {
		log.Error().Err(err).Bool("master", master).Msg("Failed to bring up mesh network")
		m.transition(StateErrorRecovery)
		return nil
	}
	m.transition(StateOperational)
	return nil
}

// DefaultPattern is armed on the first entry into Operational.
func DefaultPattern() device.Delta {
	on, auto := true, true
	brightness := uint8(128)
	pattern := animation.Breathing
	speed := uint32(100)
	c := color.RGB{R: 100, G: 100, B: 100}
	return device.Delta{
		Power:      &on,
		Brightness: &brightness,
		R:          &c.R,
		G:          &c.G,
		B:          &c.B,
		AutoMode:   &auto,
		Pattern:    &pattern,
		SpeedMs:    &speed,
	}
}

func (m *Machine) handleOperational(ctx context.Context) error {
	m.output.SetGate(true)

	m.mu.Lock()
	first := !m.defaulted
	m.defaulted = true
	m.mu.Unlock()

	if first {
		log.Info().Msg("System operational")
		m.output.ApplyDelta(DefaultPattern(), device.SourceLifecycle)
	}

	if !m.network.Connected() {
		log.Warn().Msg("Mesh network connection lost")
		m.transition(StateConnectionLost)
		return nil
	}
	return m.sleep(ctx, m.timing.ConnectivityCheck)
}

func (m *Machine) handleConnectionLost(ctx context.Context) error {
	m.output.SetGate(false)
	m.transition(StateErrorRecovery)
	return nil
}

// handleErrorRecovery resets the transport, backs off and retries. The counter only
// resets when the ceiling forces re-provisioning.
func (m *Machine) handleErrorRecovery(ctx context.Context) error {
	m.output.SetGate(false)

	m.mu.RLock()
	attempt := m.retries + 1
	m.mu.RUnlock()
	log.Info().Int("attempt", attempt).Msg("Error recovery")

	if err := m.network.Reset(); err != nil {
		log.Warn().Err(err).Msg("Failed to reset mesh network")
	}

	if err := m.sleep(ctx, m.timing.Backoff); err != nil {
		return err
	}

	m.mu.Lock()
	m.retries++
	exhausted := m.retries >= m.timing.MaxRetries
	if exhausted {
		m.retries = 0
	}
	m.mu.Unlock()

	if !exhausted {
		m.transition(StateNetworkScan)
		return nil
	}

	log.Warn().Msg("Too many recovery attempts, returning to config mode")
	if err := m.store.Unconfigure(); err != nil {
		log.Error().Err(err).Msg("Failed to clear configured flag")
	}
	m.transition(StateConfigMode)
	return nil
}
