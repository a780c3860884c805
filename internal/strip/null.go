package strip

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/color"
)

// MemoryDriver keeps written frames in memory. It backs the "none" driver and tests.
type MemoryDriver struct {
	mu     sync.Mutex
	frames [][]color.RGB
	keep   int
	logged bool
}

// NewMemoryDriver creates a driver that retains at most keep frames (0 keeps only the last).
func NewMemoryDriver(keep int) *MemoryDriver {
	if keep <= 0 {
		keep = 1
	}
	return &MemoryDriver{keep: keep}
}

// NewLogDriver creates a memory driver that also logs every frame at trace level.
func NewLogDriver() *MemoryDriver {
	d := NewMemoryDriver(1)
	d.logged = true
	return d
}

// Write records a copy of pixels.
func (d *MemoryDriver) Write(pixels []color.RGB) error {
	frame := make([]color.RGB, len(pixels))
	copy(frame, pixels)

	d.mu.Lock()
	d.frames = append(d.frames, frame)
	if len(d.frames) > d.keep {
		d.frames = d.frames[len(d.frames)-d.keep:]
	}
	d.mu.Unlock()

	if d.logged {
		log.Trace().Interface("pixels", frame).Msg("Strip frame")
	}
	return nil
}

// Frames returns the retained frames, oldest first.
func (d *MemoryDriver) Frames() [][]color.RGB {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]color.RGB, len(d.frames))
	copy(out, d.frames)
	return out
}

// Close is a no-op.
func (d *MemoryDriver) Close() error {
	return nil
}
