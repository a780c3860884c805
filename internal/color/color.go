// Package color provides the pixel color type and the integer color math shared by
// the animation engine and the strip drivers.
package color

import (
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGB is an 8-bit per channel pixel color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Common colors used by patterns and the button palette.
var (
	Black   = RGB{0, 0, 0}
	Red     = RGB{255, 0, 0}
	Green   = RGB{0, 255, 0}
	Blue    = RGB{0, 0, 255}
	Yellow  = RGB{255, 255, 0}
	Magenta = RGB{255, 0, 255}
	Cyan    = RGB{0, 255, 255}
	White   = RGB{255, 255, 255}
)

// String returns the color as #rrggbb.
func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// IsBlack reports whether all channels are zero.
func (c RGB) IsBlack() bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

// Scale returns the color with every channel multiplied by brightness/255 (truncated).
func (c RGB) Scale(brightness uint8) RGB {
	return RGB{
		R: ScaleChannel(c.R, brightness),
		G: ScaleChannel(c.G, brightness),
		B: ScaleChannel(c.B, brightness),
	}
}

// Div returns the color with every channel divided by n.
func (c RGB) Div(n uint8) RGB {
	if n == 0 {
		return c
	}
	return RGB{R: c.R / n, G: c.G / n, B: c.B / n}
}

// ScaleChannel computes value*brightness/255 with integer truncation.
func ScaleChannel(value, brightness uint8) uint8 {
	return uint8(uint16(value) * uint16(brightness) / 255)
}

// Scale8 computes value*scale/256, the cheaper fade used for decays.
func Scale8(value, scale uint8) uint8 {
	return uint8((uint16(value) * uint16(scale)) >> 8)
}

// HSV converts a hue in degrees [0,360) with saturation and value in [0,255] to RGB.
// Hues outside the range wrap.
func HSV(hue float64, saturation, value uint8) RGB {
	hue = math.Mod(hue, 360)
	if hue < 0 {
		hue += 360
	}
	c := colorful.Hsv(hue, float64(saturation)/255, float64(value)/255)
	r, g, b := c.Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}

// Fill sets every pixel of buf to c.
func Fill(buf []RGB, c RGB) {
	for i := range buf {
		buf[i] = c
	}
}

// ScaleAll applies Scale to every pixel of src and writes the result to dst.
// dst and src may be the same slice.
func ScaleAll(dst, src []RGB, brightness uint8) {
	for i := range src {
		if i >= len(dst) {
			return
		}
		dst[i] = src[i].Scale(brightness)
	}
}
