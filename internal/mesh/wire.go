// Package mesh relays device commands between softboxes on the local network.
package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dokzlo13/softboxd/internal/animation"
	"github.com/dokzlo13/softboxd/internal/color"
	"github.com/dokzlo13/softboxd/internal/device"
)

// Opcode distinguishes mesh commands.
type Opcode byte

const (
	OpSet    Opcode = 0x01
	OpGet    Opcode = 0x02
	OpStatus Opcode = 0x03
)

func (o Opcode) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpGet:
		return "get"
	case OpStatus:
		return "status"
	}
	return fmt.Sprintf("opcode(0x%02x)", byte(o))
}

// Frame layout, little endian:
// Op(1) | Sender(1) | Flags(1) | Brightness(1) | R(1) | G(1) | B(1) | Pattern(1) | Speed(2)
const FrameSize = 10

const (
	flagPower byte = 1 << 0
	flagAuto  byte = 1 << 1
)

var (
	ErrFrameSize     = fmt.Errorf("mesh frame must be %d bytes", FrameSize)
	ErrUnknownOpcode = errors.New("unknown mesh opcode")
	ErrNotConnected  = errors.New("mesh not connected")
)

// Command is one decoded mesh frame.
type Command struct {
	Op         Opcode
	Sender     uint8
	Power      bool
	AutoMode   bool
	Brightness uint8
	Color      color.RGB
	Pattern    animation.ID
	SpeedMs    uint16
}

// CommandFromState builds a command carrying st. Speed saturates at the wire width.
func CommandFromState(op Opcode, sender uint8, st device.State) Command {
	return Command{
		Op:         op,
		Sender:     sender,
		Power:      st.Power,
		AutoMode:   st.AutoMode,
		Brightness: st.Brightness,
		Color:      st.Color,
		Pattern:    st.Pattern,
		SpeedMs:    uint16(min(st.SpeedMs, math.MaxUint16)),
	}
}

// Delta converts a set or status command into a device delta.
func (c Command) Delta() device.Delta {
	speed := uint32(c.SpeedMs)
	return device.Delta{
		Power:      &c.Power,
		Brightness: &c.Brightness,
		R:          &c.Color.R,
		G:          &c.Color.G,
		B:          &c.Color.B,
		AutoMode:   &c.AutoMode,
		Pattern:    &c.Pattern,
		SpeedMs:    &speed,
	}
}

// Encode serializes c into a FrameSize byte slice.
func Encode(c Command) []byte {
	b := make([]byte, FrameSize)
	b[0] = byte(c.Op)
	b[1] = c.Sender
	if c.Power {
		b[2] |= flagPower
	}
	if c.AutoMode {
		b[2] |= flagAuto
	}
	b[3] = c.Brightness
	b[4], b[5], b[6] = c.Color.R, c.Color.G, c.Color.B
	b[7] = byte(c.Pattern)
	binary.LittleEndian.PutUint16(b[8:10], c.SpeedMs)
	return b
}

// Decode parses a frame. Frames of any other size are rejected whole.
func Decode(b []byte) (Command, error) {
	if len(b) != FrameSize {
		return Command{}, fmt.Errorf("%w: got %d", ErrFrameSize, len(b))
	}
	op := Opcode(b[0])
	switch op {
	case OpSet, OpGet, OpStatus:
	default:
		return Command{}, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, b[0])
	}
	return Command{
		Op:         op,
		Sender:     b[1],
		Power:      b[2]&flagPower != 0,
		AutoMode:   b[2]&flagAuto != 0,
		Brightness: b[3],
		Color:      color.RGB{R: b[4], G: b[5], B: b[6]},
		Pattern:    animation.ID(b[7]),
		SpeedMs:    binary.LittleEndian.Uint16(b[8:10]),
	}, nil
}
