package animation

import (
	"github.com/dokzlo13/softboxd/internal/color"
)

// Engine renders the active pattern one frame at a time. It is not safe for
// concurrent use; the device controller serializes access.
type Engine struct {
	pattern Pattern
	state   *State
}

// NewEngine creates an engine for n pixels, starting on Static.
func NewEngine(n int, seed uint64) *Engine {
	return &Engine{
		pattern: registry[Static],
		state:   NewState(n, seed),
	}
}

// Start selects a pattern and resets the animation state.
func (e *Engine) Start(id ID) {
	e.pattern = Lookup(id)
	e.state.Reset()
}

// Pattern returns the active pattern.
func (e *Engine) Pattern() Pattern {
	return e.pattern
}

// Frame returns the number of frames rendered since the last Start.
func (e *Engine) Frame() uint32 {
	return e.state.Frame
}

// SetFrame moves the frame counter without resetting pattern state.
func (e *Engine) SetFrame(frame uint32) {
	e.state.Frame = frame
}

// State exposes the scratch state for inspection.
func (e *Engine) State() *State {
	return e.state
}

// Render draws the next frame into dst and advances the frame counter. The global
// brightness scale is applied unless the pattern scales itself.
func (e *Engine) Render(dst []color.RGB, base color.RGB, brightness uint8) {
	st := e.state
	e.pattern.Render(st.Canvas, st.Frame, st, base, brightness)

	if e.pattern.SelfScaling {
		copy(dst, st.Canvas)
	} else {
		color.ScaleAll(dst, st.Canvas, brightness)
	}
	st.Frame++
}
