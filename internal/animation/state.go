package animation

import (
	"math/rand/v2"

	"github.com/dokzlo13/softboxd/internal/color"
)

const breathFloor = 20

// State is the scratch state owned by the engine. It is reset whenever the pattern
// changes or animated mode is re-entered.
type State struct {
	Frame uint32

	HueOffset       float64
	BreathIntensity uint8
	BreathRising    bool
	WavePhase       float64
	Heat            []uint8

	// Canvas holds the unscaled output of the last frame.
	Canvas []color.RGB

	seed uint64
	rng  *rand.Rand
}

// NewState allocates state for a strip of n pixels. Random patterns draw from a PCG
// source seeded with seed, so the output is reproducible.
func NewState(n int, seed uint64) *State {
	st := &State{
		Heat:   make([]uint8, n),
		Canvas: make([]color.RGB, n),
		seed:   seed,
	}
	st.Reset()
	return st
}

// Reset returns the state to its defaults: frame 0, breathing rising from the floor,
// zero heat, blank canvas, and a freshly seeded random source.
func (st *State) Reset() {
	st.Frame = 0
	st.HueOffset = 0
	st.BreathIntensity = breathFloor
	st.BreathRising = true
	st.WavePhase = 0
	for i := range st.Heat {
		st.Heat[i] = 0
	}
	for i := range st.Canvas {
		st.Canvas[i] = color.Black
	}
	st.rng = rand.New(rand.NewPCG(st.seed, st.seed^0x9e3779b97f4a7c15))
}

func (st *State) intn(n int) int {
	return st.rng.IntN(n)
}

func (st *State) float() float64 {
	return st.rng.Float64()
}
