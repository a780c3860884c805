// Package button turns button presses into events handled off the raising context.
package button

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/device"
	"github.com/dokzlo13/softboxd/internal/eventbus"
)

// DefaultDebounce ignores contact bounce.
const DefaultDebounce = 50 * time.Millisecond

// Button raises press events on the bus. Press only signals; the palette step runs
// in a bus worker.
type Button struct {
	bus      *eventbus.Bus
	debounce time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// New creates a button publishing to bus.
func New(bus *eventbus.Bus, debounce time.Duration) *Button {
	return &Button{bus: bus, debounce: debounce, now: time.Now}
}

// Press raises a press event. Presses within the debounce window are dropped and
// reported as false.
func (b *Button) Press(source string) bool {
	b.mu.Lock()
	now := b.now()
	if !b.last.IsZero() && now.Sub(b.last) < b.debounce {
		b.mu.Unlock()
		return false
	}
	b.last = now
	b.mu.Unlock()

	b.bus.Publish(eventbus.Event{Type: eventbus.EventTypeButton, Source: source})
	return true
}

// WatchSignals presses the button whenever one of sigs arrives, until ctx is done.
func (b *Button) WatchSignals(ctx context.Context, sigs ...os.Signal) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			log.Debug().Str("signal", sig.String()).Msg("Button signal")
			b.Press("signal")
		}
	}
}

// Presser steps the device palette.
type Presser interface {
	PressButton() device.Result
}

// Broadcaster forwards a state to mesh peers.
type Broadcaster interface {
	Broadcast(st device.State) error
}

// Handler returns the bus handler that performs the palette step and mirrors the
// result to the mesh. mesh may be nil.
func Handler(dev Presser, mesh Broadcaster) eventbus.Handler {
	return func(e eventbus.Event) {
		res := dev.PressButton()
		log.Info().
			Str("source", e.Source).
			Bool("power", res.Snapshot.Power).
			Str("color", res.Snapshot.Color.String()).
			Msg("Button pressed")

		if mesh == nil {
			return
		}
		if err := mesh.Broadcast(res.Snapshot.State); err != nil {
			log.Debug().Err(err).Msg("Button state not broadcast")
		}
	}
}
