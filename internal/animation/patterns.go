package animation

import (
	"math"

	"github.com/dokzlo13/softboxd/internal/color"
)

const (
	breathStep    = 3
	breathCeiling = 255

	rainbowStep     = 3.0 // degrees per frame
	rainbowWaveStep = 7.0
	rainbowWaveSpan = 28.0 // degrees between neighbouring pixels

	wipePadding = 10

	chaseLength = 3

	pulsePeriodFrames = 60

	twinkleDecay      = 250
	twinkleSaturation = 200
	twinkleOdds       = 4 // one new twinkle per N frames on average

	sparkleChancePct = 10
	sparkleDim       = 10

	fireCooling     = 15
	fireSparkPct    = 60
	fireSparkZone   = 3
	fireSparkMin    = 160
	fireSparkJitter = 95
)

var (
	wipePalette  = []color.RGB{color.Red, color.Green, color.Blue, color.Yellow, color.Magenta, color.Cyan}
	pulsePalette = []color.RGB{color.Red, color.Green, color.Blue}

	chaseColor = color.RGB{R: 255, G: 100, B: 0}
)

func renderStatic(canvas []color.RGB, _ uint32, _ *State, base color.RGB, _ uint8) {
	color.Fill(canvas, base)
}

func renderOff(canvas []color.RGB, _ uint32, _ *State, _ color.RGB, _ uint8) {
	color.Fill(canvas, color.Black)
}

// renderBreathing walks a triangle wave between breathFloor and breathCeiling.
// The device brightness is folded into the intensity here.
func renderBreathing(canvas []color.RGB, _ uint32, st *State, base color.RGB, brightness uint8) {
	level := color.ScaleChannel(st.BreathIntensity, brightness)
	color.Fill(canvas, base.Scale(level))

	v := int(st.BreathIntensity)
	if st.BreathRising {
		v += breathStep
		if v >= breathCeiling {
			v = breathCeiling
			st.BreathRising = false
		}
	} else {
		v -= breathStep
		if v <= breathFloor {
			v = breathFloor
			st.BreathRising = true
		}
	}
	st.BreathIntensity = uint8(v)
}

func renderRainbowCycle(canvas []color.RGB, _ uint32, st *State, _ color.RGB, _ uint8) {
	n := len(canvas)
	for i := range canvas {
		canvas[i] = color.HSV(st.HueOffset+float64(i)*360/float64(n), 255, 255)
	}
	st.HueOffset = math.Mod(st.HueOffset+rainbowStep, 360)
}

func renderRainbowWave(canvas []color.RGB, _ uint32, st *State, _ color.RGB, _ uint8) {
	for i := range canvas {
		canvas[i] = color.HSV(st.WavePhase+float64(i)*rainbowWaveSpan, 255, 255)
	}
	st.WavePhase = math.Mod(st.WavePhase+rainbowWaveStep, 360)
}

// renderColorWipe fills the strip one pixel per frame, pauses for wipePadding
// frames, then repeats with the next palette color.
func renderColorWipe(canvas []color.RGB, frame uint32, _ *State, _ color.RGB, _ uint8) {
	n := len(canvas)
	window := uint32(n + wipePadding)
	c := wipePalette[(frame/window)%uint32(len(wipePalette))]
	pos := int(frame % window)
	for i := range canvas {
		if i < pos {
			canvas[i] = c
		} else {
			canvas[i] = color.Black
		}
	}
}

// renderChase runs a fixed orange window regardless of the device color.
func renderChase(canvas []color.RGB, frame uint32, _ *State, _ color.RGB, _ uint8) {
	n := len(canvas)
	color.Fill(canvas, color.Black)
	pos := int(frame % uint32(2*n))
	for i := 0; i < chaseLength; i++ {
		canvas[(pos+i)%n] = chaseColor
	}
}

func renderRunningLight(canvas []color.RGB, frame uint32, _ *State, base color.RGB, _ uint8) {
	n := len(canvas)
	color.Fill(canvas, color.Black)
	pos := int(frame % uint32(n))
	canvas[pos] = base
	canvas[(pos+n-1)%n] = base.Div(3)
}

func renderPulseColors(canvas []color.RGB, frame uint32, _ *State, _ color.RGB, _ uint8) {
	c := pulsePalette[(frame/pulsePeriodFrames)%uint32(len(pulsePalette))]
	pulse := uint8(128 + 127*math.Sin(float64(frame)*0.1))
	color.Fill(canvas, c.Scale(pulse))
}

func renderWave(canvas []color.RGB, frame uint32, _ *State, base color.RGB, _ uint8) {
	n := float64(len(canvas))
	for i := range canvas {
		w := (math.Sin(float64(frame)*0.1+float64(i)*math.Pi/n) + 1) / 2
		canvas[i] = base.Scale(uint8(w * 255))
	}
}

// renderTwinkle fades the previous frame and occasionally lights a random pixel
// with a random hue.
func renderTwinkle(canvas []color.RGB, _ uint32, st *State, _ color.RGB, _ uint8) {
	for i, c := range canvas {
		canvas[i] = color.RGB{
			R: color.Scale8(c.R, twinkleDecay),
			G: color.Scale8(c.G, twinkleDecay),
			B: color.Scale8(c.B, twinkleDecay),
		}
	}
	if st.intn(twinkleOdds) == 0 {
		canvas[st.intn(len(canvas))] = color.HSV(st.float()*360, twinkleSaturation, 255)
	}
}

func renderSparkle(canvas []color.RGB, _ uint32, st *State, base color.RGB, _ uint8) {
	color.Fill(canvas, base.Div(sparkleDim))
	if st.intn(100) < sparkleChancePct {
		canvas[st.intn(len(canvas))] = base
	}
}

// renderFire is a one-dimensional heat simulation: cool every cell, let heat drift
// upward, spark near the bottom, then map heat onto a black-red-yellow-white ramp.
func renderFire(canvas []color.RGB, _ uint32, st *State, _ color.RGB, _ uint8) {
	heat := st.Heat
	n := len(heat)

	for i := range heat {
		cool := st.intn(fireCooling)
		if int(heat[i]) <= cool {
			heat[i] = 0
		} else {
			heat[i] -= uint8(cool)
		}
	}

	for i := n - 1; i >= 2; i-- {
		heat[i] = uint8((int(heat[i-1]) + 2*int(heat[i-2])) / 3)
	}

	if st.intn(100) < fireSparkPct {
		pos := st.intn(min(fireSparkZone, n))
		h := int(heat[pos]) + fireSparkMin + st.intn(fireSparkJitter)
		heat[pos] = uint8(min(h, 255))
	}

	for i := range canvas {
		canvas[i] = heatColor(heat[i])
	}
}

func heatColor(h uint8) color.RGB {
	switch {
	case h < 85:
		return color.RGB{R: h * 3}
	case h < 170:
		return color.RGB{R: 255, G: (h - 85) * 3}
	default:
		return color.RGB{R: 255, G: 255, B: (h - 170) * 3}
	}
}
