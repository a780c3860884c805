// Package animation implements the LED pattern registry and the per-tick render engine.
//
// Every pattern is a pure function of the animation state, the frame counter, the
// device color and the device brightness. Patterns never sleep; the render scheduler
// decides when the next frame is drawn.
package animation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dokzlo13/softboxd/internal/color"
)

// ID identifies a pattern. Ids are stable and part of the control and mesh protocols.
type ID uint8

const (
	Static ID = iota
	RainbowCycle
	Breathing
	ColorWipe
	RainbowWave
	Fire
	Twinkle
	Chase
	PulseColors
	RunningLight
	Sparkle
	Wave
	Off

	// Count is the number of registered patterns and the exclusive ceiling for ids.
	Count
)

// RenderFunc draws one frame into canvas. The canvas keeps the previous frame's
// contents, so decaying patterns can build on it.
type RenderFunc func(canvas []color.RGB, frame uint32, st *State, base color.RGB, brightness uint8)

// Pattern is a registry entry.
type Pattern struct {
	ID     ID
	Name   string
	Render RenderFunc
	// SelfScaling patterns bake the device brightness into their own math; the
	// engine skips the global brightness post-scale for them.
	SelfScaling bool
}

var registry = [Count]Pattern{
	Static:       {ID: Static, Name: "static", Render: renderStatic},
	RainbowCycle: {ID: RainbowCycle, Name: "rainbow_cycle", Render: renderRainbowCycle},
	Breathing:    {ID: Breathing, Name: "breathing", Render: renderBreathing, SelfScaling: true},
	ColorWipe:    {ID: ColorWipe, Name: "color_wipe", Render: renderColorWipe},
	RainbowWave:  {ID: RainbowWave, Name: "rainbow_wave", Render: renderRainbowWave},
	Fire:         {ID: Fire, Name: "fire", Render: renderFire},
	Twinkle:      {ID: Twinkle, Name: "twinkle", Render: renderTwinkle},
	Chase:        {ID: Chase, Name: "chase", Render: renderChase},
	PulseColors:  {ID: PulseColors, Name: "pulse_colors", Render: renderPulseColors},
	RunningLight: {ID: RunningLight, Name: "running_light", Render: renderRunningLight},
	Sparkle:      {ID: Sparkle, Name: "sparkle", Render: renderSparkle},
	Wave:         {ID: Wave, Name: "wave", Render: renderWave},
	Off:          {ID: Off, Name: "off", Render: renderOff},
}

// Valid reports whether id names a registered pattern.
func Valid(id int) bool {
	return id >= 0 && id < int(Count)
}

// Lookup returns the pattern for id. Unknown ids fall back to Static.
func Lookup(id ID) Pattern {
	if !Valid(int(id)) {
		return registry[Static]
	}
	return registry[id]
}

// All returns every registered pattern in id order.
func All() []Pattern {
	out := make([]Pattern, len(registry))
	copy(out, registry[:])
	return out
}

// String returns the pattern name.
func (id ID) String() string {
	if !Valid(int(id)) {
		return fmt.Sprintf("ID(%d)", uint8(id))
	}
	return registry[id].Name
}

// Parse resolves a pattern from its name or decimal id.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		if !Valid(n) {
			return 0, fmt.Errorf("pattern id %d out of range [0,%d)", n, Count)
		}
		return ID(n), nil
	}
	for _, p := range registry {
		if p.Name == s {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown pattern %q", s)
}
