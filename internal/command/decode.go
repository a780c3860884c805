// Package command turns inbound control payloads into device state deltas.
package command

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/softboxd/internal/animation"
	"github.com/dokzlo13/softboxd/internal/device"
)

// MaxPayload is the largest accepted control payload in bytes.
const MaxPayload = 512

const maxInt = 1<<31 - 1

var (
	ErrEmptyPayload    = errors.New("empty payload")
	ErrPayloadTooLarge = fmt.Errorf("payload exceeds %d bytes", MaxPayload)
	ErrMalformed       = errors.New("malformed payload")
)

// Fields is the decoded form of a payload: the recognized keys with their parsed
// values. Keys that were absent are nil.
type Fields struct {
	Power      *bool
	Brightness *uint8
	R, G, B    *uint8
	AutoMode   *bool
	Effect     *animation.ID
	Speed      *uint32
}

// Delta converts the fields into a device delta.
func (f Fields) Delta() device.Delta {
	return device.Delta{
		Power:      f.Power,
		Brightness: f.Brightness,
		R:          f.R,
		G:          f.G,
		B:          f.B,
		AutoMode:   f.AutoMode,
		Pattern:    f.Effect,
		SpeedMs:    f.Speed,
	}
}

// Empty reports whether no recognized key was present.
func (f Fields) Empty() bool {
	return f.Delta().Empty()
}

// CheckSize rejects empty and oversized payloads.
func CheckSize(payload []byte) error {
	switch {
	case len(payload) == 0:
		return ErrEmptyPayload
	case len(payload) > MaxPayload:
		return ErrPayloadTooLarge
	}
	return nil
}

// Decode parses a control payload. The payload is a flat key/value mapping in
// either JSON or YAML form:
//
//	{"power":true,"brightness":128,"r":10,"g":20,"b":30}
//	effect: 1
//	auto_mode: true
//
// Unknown keys are ignored. A recognized key holding a list or mapping rejects the
// whole payload. Numbers are parsed leniently: leading digits are used
// and text without any yields 0. Channel values are clamped to [0,255]. Effects
// outside the pattern registry are dropped.
func Decode(payload []byte) (Fields, error) {
	var f Fields
	if err := CheckSize(payload); err != nil {
		return f, err
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(payload, &raw); err != nil {
		return f, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for key, node := range raw {
		key = strings.ToLower(key)
		if !knownKeys[key] {
			continue
		}
		if node.Kind != yaml.ScalarNode {
			return Fields{}, fmt.Errorf("%w: %s is not a scalar", ErrMalformed, key)
		}
		value := strings.TrimSpace(node.Value)
		switch key {
		case "power":
			f.Power = ptr(parseBool(value))
		case "brightness":
			f.Brightness = ptr(clampByte(parseInt(value)))
		case "r":
			f.R = ptr(clampByte(parseInt(value)))
		case "g":
			f.G = ptr(clampByte(parseInt(value)))
		case "b":
			f.B = ptr(clampByte(parseInt(value)))
		case "auto_mode":
			f.AutoMode = ptr(parseBool(value))
		case "effect":
			if n := parseInt(value); animation.Valid(n) {
				f.Effect = ptr(animation.ID(n))
			}
		case "speed":
			f.Speed = ptr(uint32(max(parseInt(value), 0)))
		}
	}
	return f, nil
}

var knownKeys = map[string]bool{
	"power": true, "brightness": true,
	"r": true, "g": true, "b": true,
	"auto_mode": true, "effect": true, "speed": true,
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1":
		return true
	}
	return false
}

// parseInt reads an optional sign and the leading decimal digits of s. Anything
// else yields 0.
func parseInt(s string) int {
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		if n > maxInt {
			n = maxInt
			break
		}
	}
	if neg {
		return -n
	}
	return n
}

func clampByte(n int) uint8 {
	return uint8(min(max(n, 0), 255))
}

func ptr[T any](v T) *T {
	return &v
}
