package command

import (
	"encoding/json"

	"github.com/dokzlo13/softboxd/internal/color"
	"github.com/dokzlo13/softboxd/internal/device"
)

// StatusPixels is how many leading pixels the status payload reports.
const StatusPixels = 4

// Status is the status read/notify payload.
type Status struct {
	Power      bool        `json:"power"`
	Brightness uint8       `json:"brightness"`
	Color      color.RGB   `json:"color"`
	AutoMode   bool        `json:"auto_mode"`
	Effect     uint8       `json:"effect"`
	Speed      uint32      `json:"speed"`
	Pixels     []color.RGB `json:"current_pixels,omitempty"`
}

// NewStatus projects a snapshot onto the status payload.
func NewStatus(s device.Snapshot) Status {
	st := Status{
		Power:      s.Power,
		Brightness: s.Brightness,
		Color:      s.Color,
		AutoMode:   s.AutoMode,
		Effect:     uint8(s.Pattern),
		Speed:      s.SpeedMs,
	}
	if n := min(StatusPixels, len(s.Pixels)); n > 0 {
		st.Pixels = append([]color.RGB(nil), s.Pixels[:n]...)
	}
	return st
}

// EncodeStatus renders the status payload.
func EncodeStatus(s device.Snapshot) ([]byte, error) {
	return json.Marshal(NewStatus(s))
}

// EncodeInfo renders the device info payload.
func EncodeInfo(info device.Info) ([]byte, error) {
	return json.Marshal(info)
}
