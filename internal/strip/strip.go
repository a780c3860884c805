// Package strip owns the fixed-size pixel buffer and the single call that pushes it
// to the LED hardware.
package strip

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/color"
)

// NumPixels is the number of addressable LEDs on the strip.
const NumPixels = 8

// ErrStripNotReady is returned when the driver cannot reach the hardware at startup.
var ErrStripNotReady = errors.New("led strip not ready")

// Frame is one full strip worth of pixels.
type Frame [NumPixels]color.RGB

// Driver writes raw pixels to a physical (or simulated) strip.
type Driver interface {
	Write(pixels []color.RGB) error
	Close() error
}

// Adapter gates the pixel buffer on power and forwards it to the driver.
// It is safe for concurrent use.
type Adapter struct {
	mu     sync.Mutex
	driver Driver
	last   Frame
	writes uint64
}

// NewAdapter wraps a driver.
func NewAdapter(driver Driver) *Adapter {
	return &Adapter{driver: driver}
}

// Push writes the frame to the hardware. When powerOn is false an all-zero frame is
// written regardless of the frame contents.
func (a *Adapter) Push(frame Frame, powerOn bool) error {
	if !powerOn {
		frame = Frame{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.driver.Write(frame[:]); err != nil {
		return fmt.Errorf("failed to write strip: %w", err)
	}
	a.last = frame
	a.writes++
	return nil
}

// Last returns the most recently pushed frame.
func (a *Adapter) Last() Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Writes returns the number of successful pushes.
func (a *Adapter) Writes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writes
}

// Close blanks the strip and releases the driver.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var blank Frame
	if err := a.driver.Write(blank[:]); err != nil {
		log.Warn().Err(err).Msg("Failed to blank strip on close")
	}
	return a.driver.Close()
}
