// Package device owns the shared device state record and every transition of the
// rendering mode.
package device

import (
	"time"

	"github.com/dokzlo13/softboxd/internal/animation"
	"github.com/dokzlo13/softboxd/internal/color"
)

// Speed limits for the render period.
const (
	DefaultSpeed = 100 * time.Millisecond
	MinSpeed     = 20 * time.Millisecond
)

// Source identifies who requested a state change.
type Source string

const (
	SourceControl   Source = "control"
	SourceMesh      Source = "mesh"
	SourceButton    Source = "button"
	SourceLifecycle Source = "lifecycle"
)

// MeshIdentity is passed through to the mesh relay.
type MeshIdentity struct {
	Provisioned bool   `json:"provisioned"`
	Address     uint16 `json:"address"`
	NetIndex    uint16 `json:"net_index"`
	AppIndex    uint16 `json:"app_index"`
}

// State is the device state record.
type State struct {
	Power      bool         `json:"power"`
	Brightness uint8        `json:"brightness"`
	Color      color.RGB    `json:"color"`
	AutoMode   bool         `json:"auto_mode"`
	Pattern    animation.ID `json:"effect"`
	SpeedMs    uint32       `json:"speed"`
	Mesh       MeshIdentity `json:"mesh"`
}

// DefaultState is the power-on state: lit, mid brightness, white, static.
func DefaultState() State {
	return State{
		Power:      true,
		Brightness: 128,
		Color:      color.White,
		Pattern:    animation.Static,
		SpeedMs:    uint32(DefaultSpeed / time.Millisecond),
	}
}

// Period returns the render period for SpeedMs.
func (s State) Period() time.Duration {
	return time.Duration(s.SpeedMs) * time.Millisecond
}

// NormalizeSpeed maps a requested speed to the effective one: 0 means the default,
// anything below the floor is raised to it.
func NormalizeSpeed(ms uint32) uint32 {
	switch {
	case ms == 0:
		return uint32(DefaultSpeed / time.Millisecond)
	case ms < uint32(MinSpeed/time.Millisecond):
		return uint32(MinSpeed / time.Millisecond)
	default:
		return ms
	}
}

// Delta is a partial update. Nil fields are left untouched.
type Delta struct {
	Power      *bool
	Brightness *uint8
	R, G, B    *uint8
	AutoMode   *bool
	Pattern    *animation.ID
	SpeedMs    *uint32
}

// ColorPresent reports whether any color channel is set.
func (d Delta) ColorPresent() bool {
	return d.R != nil || d.G != nil || d.B != nil
}

// Empty reports whether the delta carries no recognized field.
func (d Delta) Empty() bool {
	return d.Power == nil && d.Brightness == nil && !d.ColorPresent() &&
		d.AutoMode == nil && d.Pattern == nil && d.SpeedMs == nil
}

// DeltaFromState builds a delta that sets every field of s.
func DeltaFromState(s State) Delta {
	return Delta{
		Power:      &s.Power,
		Brightness: &s.Brightness,
		R:          &s.Color.R,
		G:          &s.Color.G,
		B:          &s.Color.B,
		AutoMode:   &s.AutoMode,
		Pattern:    &s.Pattern,
		SpeedMs:    &s.SpeedMs,
	}
}

// merge applies d to s and reports which kinds of change it caused.
func (s *State) merge(d Delta) (colorChanged, stateChanged bool) {
	if d.Power != nil && *d.Power != s.Power {
		s.Power = *d.Power
		stateChanged = true
	}
	if d.Brightness != nil && *d.Brightness != s.Brightness {
		s.Brightness = *d.Brightness
		stateChanged = true
	}
	if d.R != nil {
		s.Color.R = *d.R
	}
	if d.G != nil {
		s.Color.G = *d.G
	}
	if d.B != nil {
		s.Color.B = *d.B
	}
	colorChanged = d.ColorPresent()
	if d.AutoMode != nil && *d.AutoMode != s.AutoMode {
		s.AutoMode = *d.AutoMode
		stateChanged = true
	}
	if d.Pattern != nil && animation.Valid(int(*d.Pattern)) && *d.Pattern != s.Pattern {
		s.Pattern = *d.Pattern
		stateChanged = true
	}
	if d.SpeedMs != nil {
		if ms := NormalizeSpeed(*d.SpeedMs); ms != s.SpeedMs {
			s.SpeedMs = ms
			stateChanged = true
		}
	}
	return colorChanged, stateChanged
}

// Snapshot is a consistent copy of the controller taken under its lock.
type Snapshot struct {
	State
	Pixels    []color.RGB `json:"pixels"`
	Frame     uint32      `json:"frame"`
	Animating bool        `json:"animating"`
	Gate      bool        `json:"gate"`
}

// Result reports the outcome of ApplyDelta.
type Result struct {
	ColorChanged bool
	StateChanged bool
	Snapshot     Snapshot
}

// Applied reports whether the delta had any effect.
func (r Result) Applied() bool {
	return r.ColorChanged || r.StateChanged
}

// Info is the device information record.
type Info struct {
	Device      string `json:"device"`
	Version     string `json:"version"`
	MeshAddress uint16 `json:"mesh_addr"`
	Provisioned bool   `json:"provisioned"`
	Pixels      int    `json:"pixels"`
	Effects     int    `json:"effects"`
}
