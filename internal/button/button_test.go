package button

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/softboxd/internal/color"
	"github.com/dokzlo13/softboxd/internal/device"
	"github.com/dokzlo13/softboxd/internal/eventbus"
	"github.com/dokzlo13/softboxd/internal/strip"
)

func TestPressDebounce(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close(context.Background())

	b := New(bus, DefaultDebounce)
	clock := time.Unix(0, 0)
	b.now = func() time.Time { return clock }

	tests := []struct {
		advance time.Duration
		want    bool
	}{
		{0, true},
		{10 * time.Millisecond, false},
		{30 * time.Millisecond, false},
		{60 * time.Millisecond, true},
		{DefaultDebounce, true},
	}
	for i, tt := range tests {
		clock = clock.Add(tt.advance)
		if got := b.Press("test"); got != tt.want {
			t.Errorf("press %d = %v, want %v", i, got, tt.want)
		}
	}
}

type captureMesh struct {
	mu   sync.Mutex
	sent []device.State
}

func (m *captureMesh) Broadcast(st device.State) error {
	m.mu.Lock()
	m.sent = append(m.sent, st)
	m.mu.Unlock()
	return nil
}

func TestHandlerStepsPaletteInWorker(t *testing.T) {
	out := strip.NewAdapter(strip.NewMemoryDriver(1))
	initial := device.DefaultState()
	initial.Brightness = 255
	dev := device.NewController(out, device.Options{Seed: 1, Initial: initial})

	bus := eventbus.New()
	mesh := &captureMesh{}
	done := make(chan struct{}, 1)
	handle := Handler(dev, mesh)
	bus.Subscribe(eventbus.EventTypeButton, func(e eventbus.Event) {
		handle(e)
		done <- struct{}{}
	})

	New(bus, DefaultDebounce).Press("test")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("button event not handled")
	}
	bus.Close(context.Background())

	if got := out.Last()[0]; got != color.Red {
		t.Errorf("pixel = %v, want red", got)
	}
	mesh.mu.Lock()
	defer mesh.mu.Unlock()
	if len(mesh.sent) != 1 || mesh.sent[0].Color != color.Red {
		t.Errorf("mesh broadcasts = %+v", mesh.sent)
	}
}
