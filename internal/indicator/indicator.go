// Package indicator projects the lifecycle state onto the red/green status LED.
package indicator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/lifecycle"
)

// Pattern is a status LED blink pattern.
type Pattern int

const (
	PatternFastBlink   Pattern = iota // init, error
	PatternAlternating                // config mode
	PatternSlowBlink                  // connecting
	PatternSolid                      // operational
)

const (
	fastPeriod        = 100 * time.Millisecond
	alternatingPeriod = 500 * time.Millisecond
	slowPeriod        = time.Second
)

func (p Pattern) String() string {
	switch p {
	case PatternFastBlink:
		return "fast_blink"
	case PatternAlternating:
		return "alternating"
	case PatternSlowBlink:
		return "slow_blink"
	case PatternSolid:
		return "solid"
	}
	return "unknown"
}

// Level is the on/off state of both LED channels.
type Level struct {
	Red   bool
	Green bool
}

// PatternFor maps a lifecycle state to its blink pattern.
func PatternFor(s lifecycle.State) Pattern {
	switch {
	case s == lifecycle.StateOperational:
		return PatternSolid
	case s == lifecycle.StateConfigMode:
		return PatternAlternating
	case s.Connecting():
		return PatternSlowBlink
	default:
		return PatternFastBlink
	}
}

// LevelAt returns the LED level elapsed into a pattern.
func LevelAt(p Pattern, elapsed time.Duration) Level {
	phase := func(period time.Duration) bool {
		return (elapsed/period)%2 == 0
	}
	switch p {
	case PatternFastBlink:
		return Level{Red: phase(fastPeriod)}
	case PatternAlternating:
		on := phase(alternatingPeriod)
		return Level{Red: on, Green: !on}
	case PatternSlowBlink:
		return Level{Green: phase(slowPeriod)}
	case PatternSolid:
		return Level{Green: true}
	}
	return Level{}
}

// Output drives the physical LED.
type Output interface {
	Set(Level) error
}

// LogOutput writes level changes to the debug log.
type LogOutput struct{}

// Set logs the level.
func (LogOutput) Set(l Level) error {
	log.Debug().Bool("red", l.Red).Bool("green", l.Green).Msg("Status LED")
	return nil
}

// Indicator refreshes the LED from a state source.
type Indicator struct {
	state   func() lifecycle.State
	out     Output
	refresh time.Duration
}

// New creates an indicator that polls state every refresh.
func New(state func() lifecycle.State, out Output, refresh time.Duration) *Indicator {
	if refresh <= 0 {
		refresh = 50 * time.Millisecond
	}
	return &Indicator{state: state, out: out, refresh: refresh}
}

// Run updates the LED until ctx is done. The pattern clock restarts whenever the
// pattern changes.
func (i *Indicator) Run(ctx context.Context) error {
	ticker := time.NewTicker(i.refresh)
	defer ticker.Stop()

	var (
		current = Pattern(-1)
		since   time.Time
		last    Level
		written bool
	)
	for {
		now := time.Now()
		if p := PatternFor(i.state()); p != current {
			log.Debug().Str("pattern", p.String()).Msg("Status pattern changed")
			current, since = p, now
		}
		if lvl := LevelAt(current, now.Sub(since)); !written || lvl != last {
			if err := i.out.Set(lvl); err != nil {
				log.Warn().Err(err).Msg("Failed to set status LED")
			}
			last, written = lvl, true
		}

		select {
		case <-ctx.Done():
			_ = i.out.Set(Level{})
			return nil
		case <-ticker.C:
		}
	}
}
